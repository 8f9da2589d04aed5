package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/budget-bot/internal/categorymemory"
)

// Store is an in-memory implementation of categorymemory.Store.
// It is safe for concurrent use and loses its data on restart.
type Store struct {
	mu      sync.RWMutex
	records map[string]map[string]categorymemory.Record // user -> id -> record
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]map[string]categorymemory.Record),
	}
}

// ListByUser returns copies of the user's records, oldest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]categorymemory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.records[userID]
	out := make([]categorymemory.Record, 0, len(byID))
	for _, rec := range byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Insert adds a record. IDs must be unique per user.
func (s *Store) Insert(ctx context.Context, rec categorymemory.Record) error {
	if rec.ID == "" || rec.UserID == "" {
		return fmt.Errorf("Insert: record id and user id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.records[rec.UserID]
	if !ok {
		byID = make(map[string]categorymemory.Record)
		s.records[rec.UserID] = byID
	}
	if _, exists := byID[rec.ID]; exists {
		return fmt.Errorf("Insert: record %s already exists", rec.ID)
	}
	byID[rec.ID] = rec
	return nil
}

// Update replaces the mutable fields of an existing record.
func (s *Store) Update(ctx context.Context, rec categorymemory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[rec.UserID][rec.ID]
	if !ok {
		return fmt.Errorf("Update: record %s not found for user %s", rec.ID, rec.UserID)
	}
	existing.Confidence = rec.Confidence
	existing.UsageCount = rec.UsageCount
	existing.LastUsed = rec.LastUsed
	s.records[rec.UserID][rec.ID] = existing
	return nil
}

// DeleteStale removes every record matching the filter.
func (s *Store) DeleteStale(ctx context.Context, filter categorymemory.StaleFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for userID, byID := range s.records {
		if filter.UserID != "" && userID != filter.UserID {
			continue
		}
		for id, rec := range byID {
			if filter.Matches(rec) {
				delete(byID, id)
				deleted++
			}
		}
	}
	return deleted, nil
}

// Ensure Store implements categorymemory.Store.
var _ categorymemory.Store = (*Store)(nil)
