package api

import (
	"errors"
	"fmt"
)

// ErrBadRequest marks malformed or invalid request payloads.
var ErrBadRequest = errors.New("bad request")

// Wrap prefixes err with the failing operation.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// WrapKind tags err with kind so callers can match either.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
