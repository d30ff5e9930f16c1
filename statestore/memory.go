package statestore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore provides an in-memory implementation of the Store interface.
// It is thread-safe and suitable for the CLI and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string]*Transcript
}

// NewMemoryStore creates a new in-memory transcript store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{transcripts: make(map[string]*Transcript)}
}

// Append records an exchange.
func (s *MemoryStore) Append(_ context.Context, conversationID string, ex Exchange) error {
	if conversationID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transcripts[conversationID]
	if !ok {
		t = &Transcript{ConversationID: conversationID}
		s.transcripts[conversationID] = t
	}
	ex.Suggestions = slices.Clone(ex.Suggestions)
	t.Exchanges = append(t.Exchanges, ex)
	t.UpdatedAt = time.Now()
	return nil
}

// Load returns a deep copy of the transcript.
func (s *MemoryStore) Load(_ context.Context, conversationID string) (*Transcript, error) {
	if conversationID == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transcripts[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopyTranscript(t), nil
}

// Delete removes a transcript.
func (s *MemoryStore) Delete(_ context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transcripts[conversationID]; !ok {
		return ErrNotFound
	}
	delete(s.transcripts, conversationID)
	return nil
}

// List returns conversation IDs, most recently updated first.
func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.transcripts))
	for id := range s.transcripts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := s.transcripts[ids[i]].UpdatedAt, s.transcripts[ids[j]].UpdatedAt
		if ti.Equal(tj) {
			return ids[i] < ids[j]
		}
		return ti.After(tj)
	})
	return page(ids, opts), nil
}

func deepCopyTranscript(t *Transcript) *Transcript {
	out := &Transcript{
		ConversationID: t.ConversationID,
		UpdatedAt:      t.UpdatedAt,
		Exchanges:      make([]Exchange, len(t.Exchanges)),
	}
	for i, ex := range t.Exchanges {
		ex.Suggestions = slices.Clone(ex.Suggestions)
		out.Exchanges[i] = ex
	}
	return out
}
