package services

import "errors"

// Sentinel errors. Their messages are part of the HTTP error envelope.
var (
	ErrNotFound  = errors.New("not found")
	ErrVersion   = errors.New("E_VERSION")
	ErrForbidden = errors.New("forbidden")
)
