package consensus

import "errors"

var (
	ErrIllegalTransition = errors.New("illegal stage transition")
	ErrNoParticipants    = errors.New("no registered participants")
)
