package client

import "errors"

var (
	// ErrInvalidArgument is returned for caller mistakes detected before
	// any request is made (nil draft, empty upload, zero id).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUploadFailed is returned when the server rejects an image upload
	// with a non-2xx status.
	ErrUploadFailed = errors.New("image upload failed")

	// ErrNoCSRFToken is returned when a mutating call is attempted before
	// a CSRF token was obtained via EnsureCSRF.
	ErrNoCSRFToken = errors.New("no CSRF token: call EnsureCSRF first")
)
