package api

import "errors"

var (
	ErrNotFound    = errors.New("signal not found")
	ErrRateLimited = errors.New("rate limited by server")
)
