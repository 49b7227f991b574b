package sink

import "errors"

var (
	ErrUnexpectedStatus = errors.New("collector returned unexpected status")
	ErrNoCollectorURL   = errors.New("collector url is empty")
	ErrUndelivered      = errors.New("outbox closed with undelivered records")
)
