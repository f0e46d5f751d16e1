package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrCorruptRecord = errors.New("corrupt run record")
	ErrUnavailable   = errors.New("store unavailable")
)
