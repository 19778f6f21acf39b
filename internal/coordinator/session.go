package coordinator

import (
	"fmt"
	"strings"
)

// Session identifiers have a fixed four-token layout:
// "<entityKind>-<providerID>-<subEntityKind>-<requestID>", for example
// "healthcare_providers-hp1-requests-req1".
const sessionTokens = 4

// ParseSessionID extracts the provider and request ids from a session
// identifier. A malformed identifier is a configuration error and is
// fatal to the run that received it.
func ParseSessionID(sessionID string) (providerID, requestID string, err error) {
	parts := strings.Split(sessionID, "-")
	if len(parts) != sessionTokens {
		return "", "", fmt.Errorf("malformed session id %q: want %d hyphen-delimited tokens, got %d", sessionID, sessionTokens, len(parts))
	}
	if parts[1] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("malformed session id %q: empty provider or request token", sessionID)
	}
	return parts[1], parts[3], nil
}
