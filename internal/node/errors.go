package node

import "errors"

var (
	ErrUnknownNode         = errors.New("unknown node")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInsufficientBalance = errors.New("insufficient balance")
)
