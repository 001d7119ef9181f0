package chain

import "errors"

var (
	ErrInvalidBlock  = errors.New("invalid block")
	ErrCorruptRecord = errors.New("corrupt journal record")
	ErrJournalClosed = errors.New("journal closed")
)
