package session

import "errors"

var (
	ErrAlreadyRunning = errors.New("session already running")
	ErrCapture        = errors.New("capture failed")
	ErrNoCapture      = errors.New("no capture configured")
)
