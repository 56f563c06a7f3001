package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrRejected     = errors.New("rejected by backend")
	ErrUnavailable  = errors.New("backend unavailable")
	ErrTransferBusy = errors.New("a transfer is already in progress")
	ErrClosed       = errors.New("view is closed")
)
