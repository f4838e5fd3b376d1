package domain

import "errors"

var (
	ErrMissingCredentials = errors.New("api key not configured")
	ErrUnexpectedStatus   = errors.New("unexpected status code")
	ErrUnknownSource      = errors.New("unknown source")
	ErrUnknownFormat      = errors.New("unknown export format")
)
