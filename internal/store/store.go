// Package store persists declarations, their uploaded documents and the
// per-declaration override map.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/taridex/declaration-processor/internal/model"
)

// ErrNotFound is returned when a declaration or document does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence boundary the engine computes against.
// SaveDocument replaces wholesale: uploading a payload under a type key
// that already holds one appends a newer document, and the merge engine
// folds them oldest first.
type Store interface {
	CreateDeclaration(ctx context.Context, name, date string) (model.Declaration, error)
	GetDeclaration(ctx context.Context, id string) (model.Declaration, error)
	ListDeclarations(ctx context.Context) ([]model.Declaration, error)
	DeleteDeclaration(ctx context.Context, id string) error

	SaveDocument(ctx context.Context, declID string, typeKey model.DocType, payload json.RawMessage) (model.Document, error)
	ListDocuments(ctx context.Context, declID string) ([]model.Document, error)
	DeleteDocuments(ctx context.Context, declID string, typeKey model.DocType) error

	Overrides(ctx context.Context, declID string) (model.Overrides, error)
	SaveOverrides(ctx context.Context, declID string, overrides model.Overrides) error

	// Lock serializes override reconciliation per declaration. The
	// returned function releases the lock.
	Lock(declID string) func()

	Close() error
}

// declLocks hands out one mutex per declaration ID.
type declLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDeclLocks() *declLocks {
	return &declLocks{locks: map[string]*sync.Mutex{}}
}

func (d *declLocks) Lock(declID string) func() {
	d.mu.Lock()
	m, ok := d.locks[declID]
	if !ok {
		m = &sync.Mutex{}
		d.locks[declID] = m
	}
	d.mu.Unlock()

	m.Lock()
	return m.Unlock
}
