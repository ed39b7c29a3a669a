package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the store and the routing layer.
var (
	// ErrNotFound is returned when an id is absent from the cache.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when creating a library whose id already exists.
	ErrConflict = errors.New("already exists")
	// ErrBadRequest is returned for structurally invalid requests.
	ErrBadRequest = errors.New("bad request")
	// ErrInconsistent is returned when the cache and the indexes disagree.
	ErrInconsistent = errors.New("internal inconsistency")
	// ErrUpstream is returned when the embedder or persistence fails.
	ErrUpstream = errors.New("upstream failure")
)

// OpError wraps an error with the operation and id it concerns.
type OpError struct {
	Op  string
	ID  string
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError wraps err with operation context. A nil err yields nil.
func NewOpError(op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, ID: id, Err: err}
}
