package extraction

import (
	"errors"
	"net/http"

	"github.com/medsync/medsync-server/internal/core/domain"
)

// wrapTemporaryIfNeeded tags transient upstream failures so the HTTP layer
// maps them to 503 instead of 500. Client errors (4xx other than 429) pass
// through untouched.
func wrapTemporaryIfNeeded(operation string, err error) error {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return domain.WrapError(domain.ErrTemporary, operation, err)
		case statusErr.StatusCode >= 500:
			return domain.WrapError(domain.ErrTemporary, operation, err)
		default:
			return err
		}
	}
	return domain.WrapError(domain.ErrTemporary, operation, err)
}
