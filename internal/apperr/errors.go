// Package apperr defines sentinel errors shared across the application.
package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrScanInProgress = errors.New("scan already in progress")
	ErrNoCredentials  = errors.New("delivery credentials not configured")
)
