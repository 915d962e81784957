package clients

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned on a 401 from the task service. The caller's
	// stored credentials are no longer valid and the session must re-login.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned on a 403, e.g. a non-admin requesting the user
	// list.
	ErrForbidden = errors.New("access forbidden")
)

// APIError carries a non-2xx status from the task service that is not covered
// by one of the sentinel errors above.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("task service returned status %d: %s", e.StatusCode, e.Message)
}
