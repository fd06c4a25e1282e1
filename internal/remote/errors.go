package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a rejection reported by the server, either through the HTTP
// status or through the envelope code.
type APIError struct {
	Status  int // HTTP status
	Code    int // envelope code
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (http %d): %s", e.Code, e.Status, e.Message)
}

// IsUnauthorized reports whether err means the session is missing or expired.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range []int{apiErr.Status, apiErr.Code} {
		if c == http.StatusUnauthorized || c == http.StatusForbidden {
			return true
		}
	}
	return false
}
