package review

import (
	"sort"
	"sync"
)

// Store is the live index of unresolved submissions, keyed by requester
// identity. The machine is the only writer; List serves read-only snapshots
// to the ops API.
type Store interface {
	Get(requesterID string) (*Submission, bool)
	Put(sub *Submission)
	Remove(requesterID string)
	List() []Submission
}

// MemoryStore is the single-process Store. A future durable deployment can
// swap this out without touching transition logic.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]*Submission
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]*Submission)}
}

func (s *MemoryStore) Get(requesterID string) (*Submission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[requesterID]
	return sub, ok
}

func (s *MemoryStore) Put(sub *Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.RequesterID] = sub
}

func (s *MemoryStore) Remove(requesterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, requesterID)
}

func (s *MemoryStore) List() []Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Submission, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, *sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
