package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotAuthenticated       = errors.New("not authenticated")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrValidationFailed       = errors.New("validation failed")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrInvalidSignature       = errors.New("payment verification failed")
	ErrNotFound               = errors.New("not found")
	ErrAlreadyConfirmed       = errors.New("order already confirmed")
	ErrInvalidTransition      = errors.New("invalid order status transition")
	ErrVerificationInProgress = errors.New("payment verification already in progress")
)

// ValidationError carries one message per invalid field. It matches
// ErrValidationFailed with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

func validationError(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
