package models

import "errors"

// Domain error kinds. Callers match with errors.Is and map them to
// user-visible responses at the edge.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRoleMismatch         = errors.New("role mismatch")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrValidationFailed     = errors.New("validation failed")
	ErrUploadFailed         = errors.New("upload failed")
	ErrNotFound             = errors.New("not found")
)
