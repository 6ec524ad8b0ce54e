package caseflow

import (
	"sync"
	"time"
)

// Precedent is a reusable policy derived from a ruling, scoped to an event
// type and time-limited. Precedents are consulted during classification,
// never enforced.
type Precedent struct {
	ID             string    `json:"id"`
	RulingID       string    `json:"ruling_id"`
	EventTypeScope string    `json:"event_type_scope"`
	Decision       string    `json:"decision"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// PrecedentStore keeps precedents in memory. Expired precedents stay stored
// (rulings are never deleted) but drop out of lookups.
type PrecedentStore struct {
	mu         sync.RWMutex
	precedents []*Precedent
}

// NewPrecedentStore creates an empty store.
func NewPrecedentStore() *PrecedentStore {
	return &PrecedentStore{}
}

// Add records a precedent.
func (s *PrecedentStore) Add(p *Precedent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.precedents = append(s.precedents, p)
}

// ActiveFor returns unexpired precedents whose scope matches the event type.
// An empty scope matches every event type.
func (s *PrecedentStore) ActiveFor(eventType string, now time.Time) []*Precedent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Precedent
	for _, p := range s.precedents {
		if now.After(p.ExpiresAt) {
			continue
		}
		if p.EventTypeScope == "" || p.EventTypeScope == eventType {
			out = append(out, p)
		}
	}
	return out
}

// All returns a snapshot of every stored precedent, expired included.
func (s *PrecedentStore) All() []*Precedent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Precedent, len(s.precedents))
	copy(out, s.precedents)
	return out
}
