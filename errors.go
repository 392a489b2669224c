package business

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownVariant matches errors returned by Find when no query variant
	// is registered under the requested name.
	ErrUnknownVariant = errors.New("business: unknown query variant")
	// ErrStorage matches errors raised by the store collaborator.
	ErrStorage = errors.New("business: storage failure")
	// ErrStoreRequired is returned by New when no store is supplied.
	ErrStoreRequired = errors.New("business: store is required")
)

// UnknownVariantError reports a Find call naming an unregistered variant.
// It signals a programming or configuration mistake rather than a data state.
type UnknownVariantError struct {
	Business string
	Name     string
	Known    []string
}

func (e *UnknownVariantError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("business: %s: unknown query variant %q (registered: %s)", e.Business, e.Name, strings.Join(e.Known, ", "))
}

// Is matches ErrUnknownVariant.
func (e *UnknownVariantError) Is(target error) bool {
	return target == ErrUnknownVariant
}

// StorageError wraps a failure of the store collaborator with the operation
// that triggered it.
type StorageError struct {
	Business string
	Op       string
	Err      error
}

func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("business: %s: %s: %v", e.Business, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func wrapStorageError(business, op string, err error) error {
	if err == nil {
		return nil
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &StorageError{Business: business, Op: op, Err: err}
}
