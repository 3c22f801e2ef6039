package reading

import "github.com/mon5termatt/apc-web/internal/errors"

const (
	ErrMissingField = errors.ErrorCode("reading_missing_field")
	ErrInvalidField = errors.ErrorCode("reading_invalid_field")
)
