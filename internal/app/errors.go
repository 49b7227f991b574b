package service

import "errors"

var (
	ErrInvalidEvent = errors.New("invalid event")
)
