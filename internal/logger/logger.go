package logger

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

type Logger struct {
	level Level
}

type entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

var defaultLogger = &Logger{level: INFO}

func New(level Level) *Logger {
	return &Logger{level: level}
}

func SetLevel(level Level) {
	defaultLogger.level = level
}

func (l *Logger) log(level Level, message string, fields map[string]any) {
	if level < l.level {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   message,
		Fields:    redact(fields),
	}

	jsonBytes, err := json.Marshal(e)
	if err != nil {
		log.Printf("failed to marshal log entry: %v", err)
		return
	}

	log.Println(string(jsonBytes))
}

func (l *Logger) Debug(message string, fields ...map[string]any) {
	l.log(DEBUG, message, merge(fields...))
}

func (l *Logger) Info(message string, fields ...map[string]any) {
	l.log(INFO, message, merge(fields...))
}

func (l *Logger) Warn(message string, fields ...map[string]any) {
	l.log(WARN, message, merge(fields...))
}

func (l *Logger) Error(message string, fields ...map[string]any) {
	l.log(ERROR, message, merge(fields...))
}

// Package-level convenience functions
func Debug(message string, fields ...map[string]any) {
	defaultLogger.Debug(message, fields...)
}

func Info(message string, fields ...map[string]any) {
	defaultLogger.Info(message, fields...)
}

func Warn(message string, fields ...map[string]any) {
	defaultLogger.Warn(message, fields...)
}

func Error(message string, fields ...map[string]any) {
	defaultLogger.Error(message, fields...)
}

func merge(fieldMaps ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, fields := range fieldMaps {
		for k, v := range fields {
			result[k] = v
		}
	}
	return result
}

var sensitiveKeys = []string{
	"key", "token", "secret", "password", "api_key", "stripe_key",
	"webhook_secret", "signature", "authorization", "auth", "pickup_code",
}

func redact(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		keyLower := strings.ToLower(k)

		sensitive := false
		for _, s := range sensitiveKeys {
			if strings.Contains(keyLower, s) {
				sensitive = true
				break
			}
		}

		if !sensitive {
			out[k] = v
			continue
		}

		if str, ok := v.(string); ok && len(str) > 8 {
			out[k] = str[:3] + "..." + str[len(str)-3:]
		} else {
			out[k] = "[REDACTED]"
		}
	}

	return out
}

func init() {
	// Keep test output readable
	if os.Getenv("GO_ENV") == "test" || strings.Contains(os.Args[0], ".test") {
		SetLevel(WARN)
		return
	}

	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		SetLevel(DEBUG)
	case "WARN":
		SetLevel(WARN)
	case "ERROR":
		SetLevel(ERROR)
	default:
		SetLevel(INFO)
	}
}
