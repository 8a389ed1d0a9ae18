package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound      = errors.New("record not found")
	ErrBatchNotFound       = errors.New("batch not found")
	ErrSessionNotFound     = errors.New("capture session not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidTransition   = errors.New("invalid capture step transition")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrConsentRequired     = errors.New("privacy consent required")
	ErrUploadFailed        = errors.New("document upload failed")
	ErrExtractionExhausted = errors.New("extraction attempts exhausted")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
