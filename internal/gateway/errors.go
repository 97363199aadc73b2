package gateway

import "errors"

var (
	ErrUpstream    = errors.New("gateway upstream error")
	ErrNotFound    = errors.New("gateway resource not found")
	ErrBadResponse = errors.New("gateway bad response")
)
