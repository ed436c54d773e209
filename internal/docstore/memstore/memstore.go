// Package memstore is the in-process document store used by tests and
// single-instance deployments.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"marketplace_backend/internal/docstore"
)

type collection struct {
	docs  map[string]map[string]any
	order []string
}

// Store keeps normalized documents in memory in insertion order.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
}

var _ docstore.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]map[string]any)}
		s.collections[name] = c
	}
	return c
}

func (s *Store) Get(ctx context.Context, name, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	doc, ok := s.coll(name).docs[id]
	var raw []byte
	var err error
	if ok {
		raw, err = json.Marshal(doc)
	}
	s.mu.Unlock()

	if !ok {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("memstore: encode document: %w", err)
	}
	return docstore.DecodeRaw(raw, out)
}

func (s *Store) Query(ctx context.Context, name string, filter docstore.Filter, page docstore.Page, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := docstore.NormalizeFilter(filter)
	if err != nil {
		return err
	}

	s.mu.Lock()
	c := s.coll(name)
	matched := make([]json.RawMessage, 0)
	for _, id := range c.order {
		doc := c.docs[id]
		if !docstore.Matches(doc, f) {
			continue
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("memstore: encode document: %w", err)
		}
		matched = append(matched, raw)
	}
	s.mu.Unlock()

	start, end := docstore.ApplyPage(len(matched), page)
	return docstore.DecodeAll(matched[start:end], out)
}

func (s *Store) Create(ctx context.Context, name, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := docstore.Normalize(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(name)
	if _, exists := c.docs[id]; exists {
		return docstore.ErrDuplicate
	}
	c.docs[id] = normalized
	c.order = append(c.order, id)
	return nil
}

func (s *Store) Update(ctx context.Context, name, id string, patch docstore.Patch) (bool, error) {
	return s.UpdateIf(ctx, name, id, nil, patch)
}

func (s *Store) UpdateIf(ctx context.Context, name, id string, expect docstore.Filter, patch docstore.Patch) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f, err := docstore.NormalizeFilter(expect)
	if err != nil {
		return false, err
	}
	p, err := docstore.NormalizePatch(patch)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.coll(name).docs[id]
	if !ok || !docstore.Matches(doc, f) {
		return false, nil
	}
	for field, value := range p {
		doc[field] = value
	}
	return true, nil
}

func (s *Store) Increment(ctx context.Context, name, id, field string, delta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.coll(name).docs[id]
	if !ok {
		return docstore.ErrNotFound
	}
	current, _ := doc[field].(float64)
	doc[field] = current + float64(delta)
	return nil
}

func (s *Store) Delete(ctx context.Context, name, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(name)
	if _, ok := c.docs[id]; !ok {
		return false, nil
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true, nil
}
