package collector

import "github.com/mon5termatt/apc-web/internal/errors"

const (
	ErrInvalidInterval = errors.ErrInvalidInterval
	ErrRehydrateFailed = errors.ErrorCode("collector_rehydrate_failed")
)
