package store

import (
	"context"
	"sort"
	"sync"

	"maskframe/internal/mask"
)

// MemoryStore keeps records in a mutex-guarded map. Whole-record replacement
// under the write lock gives Put the required atomicity.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*mask.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*mask.Record),
	}
}

func (s *MemoryStore) Put(_ context.Context, record *mask.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ImageID] = record
	return nil
}

func (s *MemoryStore) Get(_ context.Context, imageID string) (*mask.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[imageID]
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *MemoryStore) Delete(_ context.Context, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[imageID]; !ok {
		return ErrNotFound
	}
	delete(s.records, imageID)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]Summary, 0, len(s.records))
	for _, record := range s.records {
		summaries = append(summaries, summarize(record))
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
		}
		return summaries[i].ImageID < summaries[j].ImageID
	})
	return summaries, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
