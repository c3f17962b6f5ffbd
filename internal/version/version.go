package version

import (
	"fmt"
	"strconv"
	"strings"
)

// IsCompatible reports whether two versions share a major version
// (1.x.x works with 1.y.z, but not with 2.x.x). The mobile client is
// held to the same major as the API it talks to.
func IsCompatible(serverVersion, clientVersion string) (bool, error) {
	serverMajor, err := ExtractMajorVersion(serverVersion)
	if err != nil {
		return false, fmt.Errorf("invalid server version: %v", err)
	}

	clientMajor, err := ExtractMajorVersion(clientVersion)
	if err != nil {
		return false, fmt.Errorf("invalid client version: %v", err)
	}

	return serverMajor == clientMajor, nil
}

func ExtractMajorVersion(version string) (int, error) {
	if version == "" {
		return 0, fmt.Errorf("empty version string")
	}

	parts := strings.Split(version, ".")
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid major version: %v", err)
	}

	if major < 0 {
		return 0, fmt.Errorf("major version cannot be negative")
	}

	return major, nil
}
