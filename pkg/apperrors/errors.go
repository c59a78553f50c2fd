package apperrors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidRole   = errors.New("invalid role")
	ErrModelNotFound = errors.New("data model not found")
	ErrCatalogLoad   = errors.New("catalog load failed")
)
