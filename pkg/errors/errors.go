package errors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrEmptyKey            = errors.New("empty key")
	ErrInvalidData         = errors.New("invalid data type")
	ErrEntityExists        = errors.New("entity already exists")
	ErrSchemaMismatch      = errors.New("update schema does not match global model")
	ErrEmptyRound          = errors.New("no updates buffered for aggregation")
	ErrInsufficientClients = errors.New("not enough client updates for aggregation")
	ErrModelUnavailable    = errors.New("no model registered for target type")
	ErrInvalidMethod       = errors.New("unknown aggregation method")
)
