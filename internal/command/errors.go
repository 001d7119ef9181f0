package command

import "errors"

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrEmptyCommand   = errors.New("empty command")
)
