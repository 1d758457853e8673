package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. The mutex stands in for the atomicity
// a real store provides; it is not shared with any other component.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Reminder
	origins map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Reminder),
		origins: make(map[string]string),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Insert(_ context.Context, r *Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[r.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, r.ID)
	}
	if r.OriginKey != "" {
		if _, ok := s.origins[r.OriginKey]; ok {
			return fmt.Errorf("%w: origin %s", ErrDuplicate, r.OriginKey)
		}
		s.origins[r.OriginKey] = r.ID
	}

	c := r.Clone()
	s.records[r.ID] = &c
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok || r.DeletedAt != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c := r.Clone()
	return &c, nil
}

func (s *MemoryStore) ConditionalUpdate(_ context.Context, id string, expect Expect, next *Reminder) (*Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[id]
	if !ok || cur.DeletedAt != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if cur.Status != expect.Status || cur.Version != expect.Version {
		return nil, fmt.Errorf("%w: %s expected %s/v%d, found %s/v%d",
			ErrPreconditionFailed, id, expect.Status, expect.Version, cur.Status, cur.Version)
	}

	updated := next.Clone()
	// Identity and bookkeeping are owned by the store.
	updated.ID = cur.ID
	updated.CreatedBy = cur.CreatedBy
	updated.CreatedAt = cur.CreatedAt
	updated.DeletedAt = nil
	updated.OriginID = cur.OriginID
	updated.OriginKey = cur.OriginKey
	updated.Version = cur.Version + 1

	s.records[id] = &updated
	out := updated.Clone()
	return &out, nil
}

func (s *MemoryStore) SoftDelete(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok || r.DeletedAt != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t := at.UTC()
	r.DeletedAt = &t
	r.UpdatedAt = t
	r.Version++
	return nil
}

func (s *MemoryStore) Query(_ context.Context, f Filter) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Reminder
	for _, r := range s.records {
		if f.Matches(r) {
			out = append(out, r.Clone())
		}
	}

	return f.Page(out), nil
}

// FindByOrigin also returns soft-deleted successors so that synthesis stays
// idempotent after an operator removes one.
func (s *MemoryStore) FindByOrigin(_ context.Context, originKey string) (*Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.origins[originKey]
	if !ok {
		return nil, fmt.Errorf("%w: origin %s", ErrNotFound, originKey)
	}
	c := s.records[id].Clone()
	return &c, nil
}
