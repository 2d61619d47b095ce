package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taridex/declaration-processor/internal/model"
)

// MemoryStore keeps everything in process. Used by tests and the
// one-shot CLI commands.
type MemoryStore struct {
	mu           sync.RWMutex
	declarations map[string]model.Declaration
	documents    map[string][]model.Document
	overrides    map[string]model.Overrides
	locks        *declLocks
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		declarations: map[string]model.Declaration{},
		documents:    map[string][]model.Document{},
		overrides:    map[string]model.Overrides{},
		locks:        newDeclLocks(),
	}
}

func (s *MemoryStore) CreateDeclaration(_ context.Context, name, date string) (model.Declaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	decl := model.Declaration{
		ID:        uuid.NewString(),
		Name:      name,
		Date:      date,
		CreatedAt: time.Now().UTC(),
	}
	s.declarations[decl.ID] = decl
	return decl, nil
}

func (s *MemoryStore) GetDeclaration(_ context.Context, id string) (model.Declaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	decl, ok := s.declarations[id]
	if !ok {
		return model.Declaration{}, ErrNotFound
	}
	return decl, nil
}

func (s *MemoryStore) ListDeclarations(_ context.Context) ([]model.Declaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Declaration, 0, len(s.declarations))
	for _, decl := range s.declarations {
		out = append(out, decl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteDeclaration(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.declarations[id]; !ok {
		return ErrNotFound
	}
	delete(s.declarations, id)
	delete(s.documents, id)
	delete(s.overrides, id)
	return nil
}

func (s *MemoryStore) SaveDocument(_ context.Context, declID string, typeKey model.DocType, payload json.RawMessage) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.declarations[declID]; !ok {
		return model.Document{}, ErrNotFound
	}
	doc := model.Document{
		ID:        uuid.NewString(),
		TypeKey:   typeKey,
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: time.Now().UTC(),
	}
	s.documents[declID] = append(s.documents[declID], doc)
	return doc, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context, declID string) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Document(nil), s.documents[declID]...), nil
}

func (s *MemoryStore) DeleteDocuments(_ context.Context, declID string, typeKey model.DocType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.documents[declID][:0]
	for _, doc := range s.documents[declID] {
		if doc.TypeKey != typeKey {
			kept = append(kept, doc)
		}
	}
	s.documents[declID] = kept
	return nil
}

func (s *MemoryStore) Overrides(_ context.Context, declID string) (model.Overrides, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if over, ok := s.overrides[declID]; ok {
		return over.Clone(), nil
	}
	return model.Overrides{}, nil
}

func (s *MemoryStore) SaveOverrides(_ context.Context, declID string, overrides model.Overrides) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[declID] = overrides.Clone()
	return nil
}

func (s *MemoryStore) Lock(declID string) func() {
	return s.locks.Lock(declID)
}

func (s *MemoryStore) Close() error { return nil }
