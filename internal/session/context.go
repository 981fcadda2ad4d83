package session

import (
	"context"
	"errors"
)

var (
	// ErrNoStore is returned when the store is read outside the scope it was provided in
	ErrNoStore = errors.New("session store accessed outside of its provider scope")
	// ErrNotReady is returned by SignOut while the initial session fetch runs
	ErrNotReady = errors.New("session is still loading")
)

type contextKey struct{}

// WithStore returns a context carrying store
func WithStore(ctx context.Context, store *Store) context.Context {
	return context.WithValue(ctx, contextKey{}, store)
}

// FromContext returns the store provided by WithStore, or ErrNoStore
func FromContext(ctx context.Context) (*Store, error) {
	store, ok := ctx.Value(contextKey{}).(*Store)
	if !ok || store == nil {
		return nil, ErrNoStore
	}
	return store, nil
}
