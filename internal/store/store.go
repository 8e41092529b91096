package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound    = errors.New("signal not found")
	ErrStoreClosed = errors.New("store is closed")
)

// Store provides persistence for signals
type Store interface {
	// FindAll returns every signal currently persisted, in insertion order
	FindAll(ctx context.Context) ([]Signal, error)

	// FindByID returns the signal with the given id, or ErrNotFound
	FindByID(ctx context.Context, id int64) (*Signal, error)

	// Save persists a signal, assigning its ID, and returns the persisted copy
	Save(ctx context.Context, sig Signal) (Signal, error)

	// Close releases any resources
	Close() error
}
