package policy

import "errors"

var (
	ErrInvalidTeamLimit = errors.New("team limit must be between 1 and 10")
	ErrUnknownMode      = errors.New("unknown mode")
)
