package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"parcelpoint.app/cloud/billing"
	"parcelpoint.app/cloud/internal/logger"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", map[string]any{
			"error": err.Error(),
		})
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeBillingError maps the billing error taxonomy onto HTTP status
// codes. Sentinel messages are safe to show verbatim; provider errors
// already had their detail stripped to Stripe's user-facing text.
func writeBillingError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, billing.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, billing.ErrUnknownPlan):
		status = http.StatusBadRequest
	case errors.Is(err, billing.ErrNoActiveSubscription),
		errors.Is(err, billing.ErrAlreadyOnPlan),
		errors.Is(err, billing.ErrCancellationPending),
		errors.Is(err, billing.ErrDowngradePending):
		status = http.StatusConflict
	case errors.Is(err, billing.ErrPriceNotFound):
		status = http.StatusInternalServerError
	case errors.Is(err, billing.ErrSessionCreationFailed),
		errors.Is(err, billing.ErrBillingProvider):
		status = http.StatusBadGateway
	}

	writeErrorResponse(w, status, err.Error())
}
