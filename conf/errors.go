package conf

import (
	"errors"
)

// Config errors
var (
	// Content errors
	ErrInvalidProfile = errors.New("[conf] invalid profile")
	errEmptyTemplate  = errors.New("empty template for step")
	errNoParams       = errors.New("no request params for step")
	errNoProvider     = errors.New("no provider for step")
	errBadProvider    = errors.New("bad provider")
	errBadOption      = errors.New("bad option")
	errBadRateLimit   = errors.New("bad rate limit")
	errBadRegex       = errors.New("bad regex replacement")

	// I/O errors
	errReadFailed      = errors.New("read config failed")
	errUnmarshalFailed = errors.New("unmarshal config failed")

	// Placeholder errors
	errUnknownPlaceholder = errors.New("unknown placeholder")

	// Env errors
	errBadEnv = errors.New("bad env value")
)
