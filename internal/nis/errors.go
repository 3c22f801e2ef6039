package nis

import "github.com/mon5termatt/apc-web/internal/errors"

const (
	// Transport errors
	ErrConnectFailure = errors.ErrorCode("nis_connect_failed")
	ErrProtocolError  = errors.ErrorCode("nis_protocol_error")

	// Operation errors
	ErrTimeout = errors.ErrTimeout
)
