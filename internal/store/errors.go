package store

import "github.com/mon5termatt/apc-web/internal/errors"

const (
	// Configuration errors
	ErrInvalidDBPath = errors.ErrorCode("store_invalid_db_path")

	// Schema errors
	ErrSchemaInitFailed       = errors.ErrorCode("store_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("store_schema_validation_failed")
	ErrTransactionFailed      = errors.ErrorCode("store_transaction_failed")

	// Storage errors
	ErrStorageAccess = errors.ErrorCode("store_access_failed")
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageClose  = errors.ErrShutdownFailed

	// Event errors
	ErrEventNotFound = errors.ErrorCode("store_event_not_found")
)
