package configuration

import "errors"

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrMissingProfile = errors.New("app.profile is not set")
)
