package db

import (
	"github.com/cockroachdb/errors"

	"github.com/eigerco/ldb/internal/handle"
	"github.com/eigerco/ldb/pkg/metrics"
)

var (
	ErrClosed               = errors.New("db: database or iterator is closed")
	ErrReadOnlySnapshot     = errors.New("db: snapshot is read-only")
	ErrInvalidIteratorState = errors.New("db: iterator is not positioned at a valid key")
)

// StorageError is a failure reported by the storage engine: an open
// conflict, an I/O error, corruption.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "db: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	metrics.StorageErrors.WithLabelValues(op).Inc()
	return &StorageError{Op: op, Err: err}
}

// closedError maps the arena's closed signal onto ErrClosed.
func closedError(err error) error {
	if errors.Is(err, handle.ErrClosed) {
		return ErrClosed
	}
	return err
}
