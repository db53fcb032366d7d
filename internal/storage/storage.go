// Package storage defines the key-value persistence contract used for progress documents
// and per-lesson caches, with several interchangeable backends.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotConfigured is returned when a store is used without an open backend.
var ErrNotConfigured = errors.New("storage is not configured")

// Store is a string key-value store. Values are whole documents: last write wins.
type Store interface {
	// Get returns the value for key. The bool is false when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("storage key is required")
	}
	return nil
}
