// Package classify holds per-event ethical assessments from independent
// classifiers and quantifies their disagreement.
package classify

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnknownEvent is returned when a classification references an event
	// the ledger has never recorded.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrDuplicateClassification is returned when an agent classifies the
	// same event twice. First submission wins; there is no overwrite, which
	// keeps the assessment set pluralistic and tamper-resistant.
	ErrDuplicateClassification = errors.New("duplicate classification")
)

// Status is an agent's ethical verdict on an event.
type Status string

const (
	StatusEthical   Status = "ethical"
	StatusAmbiguous Status = "ambiguous"
	StatusUnethical Status = "unethical"
)

// Ordinal maps a status onto the linear disagreement scale.
func (s Status) Ordinal() (float64, bool) {
	switch s {
	case StatusEthical:
		return 0, true
	case StatusAmbiguous:
		return 0.5, true
	case StatusUnethical:
		return 1, true
	default:
		return 0, false
	}
}

// Classification is one agent's assessment of one event. Reasoning is stored
// opaquely and never interpreted.
type Classification struct {
	EventID    string    `json:"event_id"`
	AgentID    string    `json:"agent_id"`
	Status     Status    `json:"ethical_status"`
	Confidence float64   `json:"confidence"`
	Risk       float64   `json:"risk_estimate"`
	Reasoning  string    `json:"reasoning"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventIndex answers whether an event exists. The ledger satisfies it.
type EventIndex interface {
	Has(eventID string) bool
}

// Store keeps classifications per event, append-only, at most one per
// (event, agent) pair.
type Store struct {
	mu      sync.RWMutex
	events  EventIndex
	byEvent map[string][]*Classification
	seen    map[string]map[string]bool // eventID → agentID → recorded
}

// NewStore creates a store that validates event references against idx.
func NewStore(idx EventIndex) *Store {
	return &Store{
		events:  idx,
		byEvent: make(map[string][]*Classification),
		seen:    make(map[string]map[string]bool),
	}
}

// Submit records a classification. Fails with ErrUnknownEvent when the event
// reference does not resolve and ErrDuplicateClassification when the agent
// already classified this event.
func (s *Store) Submit(c Classification) error {
	if !s.events.Has(c.EventID) {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, c.EventID)
	}
	if _, ok := c.Status.Ordinal(); !ok {
		return fmt.Errorf("invalid ethical_status %q", c.Status)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence %v out of [0,1]", c.Confidence)
	}
	if c.Risk < 0 || c.Risk > 1 {
		return fmt.Errorf("risk_estimate %v out of [0,1]", c.Risk)
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	agents := s.seen[c.EventID]
	if agents == nil {
		agents = make(map[string]bool)
		s.seen[c.EventID] = agents
	}
	if agents[c.AgentID] {
		return fmt.Errorf("%w: agent %s on event %s", ErrDuplicateClassification, c.AgentID, c.EventID)
	}
	agents[c.AgentID] = true

	stored := c
	s.byEvent[c.EventID] = append(s.byEvent[c.EventID], &stored)
	return nil
}

// ForEvent returns a snapshot of all classifications recorded for an event.
func (s *Store) ForEvent(eventID string) []*Classification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs := s.byEvent[eventID]
	out := make([]*Classification, len(cs))
	copy(out, cs)
	return out
}

// Count returns how many classifications an event has accumulated.
func (s *Store) Count(eventID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEvent[eventID])
}
