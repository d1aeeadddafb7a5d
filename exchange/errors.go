package exchange

import "errors"

var (
	ErrMissingField    = errors.New("missing field")
	ErrNotANumber      = errors.New("not a number")
	ErrUnknownExchange = errors.New("unknown exchange")
	ErrAPIError        = errors.New("api error")
	ErrInvalidJSON     = errors.New("invalid json")
)
