package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/CaioWing/harbor-console/internal/domain"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status    int
	Detail    string
	HasDetail bool
}

func (e *APIError) Error() string {
	if e.HasDetail {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// IsRejection reports whether the backend refused the request itself (4xx)
// as opposed to failing to process it.
func (e *APIError) IsRejection() bool {
	return e.Status >= 400 && e.Status < 500
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return domain.ErrForbidden
	case e.Status == http.StatusNotFound:
		return domain.ErrNotFound
	case e.Status == http.StatusConflict:
		return domain.ErrConflict
	case e.IsRejection():
		return domain.ErrRejected
	default:
		return domain.ErrUnavailable
	}
}

// IsRejection reports whether err carries a 4xx backend answer.
func IsRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsRejection()
}

// DetailOf extracts the user-facing message of a backend error. The second
// result is false when the error body had no detail field.
func DetailOf(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.HasDetail {
		return apiErr.Detail, true
	}
	return "", false
}
