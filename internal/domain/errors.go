package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrNetworkUnavailable = errors.New("venue unreachable")
	ErrSymbolNotFound     = errors.New("symbol not listed")
	ErrFundingUnsupported = errors.New("funding rates unsupported")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrLiveUnsupported    = errors.New("live execution unsupported")
	ErrStateUnavailable   = errors.New("state store unavailable")
)
