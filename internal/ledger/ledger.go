// Package ledger implements the append-only, hash-chained record of agentive
// actions. Appends are serialized through a single mutex so chain growth is
// strictly ordered; reads work against snapshots and never block appenders
// for longer than a copy.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrContextIncomplete is returned when any of the five required
	// accountability fields is missing. No event is written.
	ErrContextIncomplete = errors.New("context incomplete")

	// ErrChainBroken is returned once verification has found a linkage
	// failure. The ledger refuses further appends until the operator
	// quarantines and recovers the store by hand.
	ErrChainBroken = errors.New("ledger chain broken")
)

// GenesisHash is the previous_hash sentinel carried by the first entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// AppendStatus reports what Append did with the payload.
type AppendStatus string

const (
	// StatusAppended means a new entry extended the chain.
	StatusAppended AppendStatus = "appended"
	// StatusDuplicate means an identical canonical payload already exists;
	// the chain did not grow and the existing event was returned.
	StatusDuplicate AppendStatus = "duplicate"
)

// Event is one immutable ledger entry. ID is the SHA-256 of the canonical
// payload and doubles as the deduplication key; Hash covers the whole record
// including PrevHash, forming the chain link.
type Event struct {
	ID        string                 `json:"id"`
	Index     int                    `json:"index"`
	Timestamp time.Time              `json:"timestamp"`
	AgentID   string                 `json:"agent_id"`
	Context   Context                `json:"context"`
	Payload   map[string]interface{} `json:"payload"`
	PrevHash  string                 `json:"previous_hash"`
	Hash      string                 `json:"hash"`
}

// Ledger is the single-writer chain store. The zero value is not usable;
// construct with New.
type Ledger struct {
	mu     sync.RWMutex
	events []*Event
	byID   map[string]*Event
	halted bool
	logger *zap.Logger
}

// New creates an empty ledger.
func New(logger *zap.Logger) *Ledger {
	return &Ledger{
		byID:   make(map[string]*Event),
		logger: logger,
	}
}

// Append canonicalizes and hashes the payload, links it to the current tail
// and appends a new entry. An identical canonical payload returns the
// existing event with StatusDuplicate and leaves the chain untouched — this
// is the system's sole deduplication mechanism.
func (l *Ledger) Append(payload map[string]interface{}, agentID string, ectx Context) (*Event, AppendStatus, error) {
	if err := ectx.Validate(); err != nil {
		return nil, "", err
	}

	canonical, err := canonicalJSON(payload)
	if err != nil {
		return nil, "", fmt.Errorf("Append: %w", err)
	}
	id := hashBytes(canonical)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.halted {
		return nil, "", ErrChainBroken
	}

	if existing, ok := l.byID[id]; ok {
		l.logger.Debug("duplicate payload, chain unchanged",
			zap.String("event_id", id),
			zap.String("agent_id", agentID),
		)
		return existing, StatusDuplicate, nil
	}

	prev := GenesisHash
	if n := len(l.events); n > 0 {
		prev = l.events[n-1].Hash
	}

	ev := &Event{
		ID:        id,
		Index:     len(l.events),
		Timestamp: time.Now().UTC(),
		AgentID:   agentID,
		Context:   ectx,
		Payload:   payload,
		PrevHash:  prev,
	}
	ev.Hash = chainHash(ev, canonical)

	l.events = append(l.events, ev)
	l.byID[id] = ev

	l.logger.Debug("event appended",
		zap.String("event_id", id),
		zap.Int("index", ev.Index),
		zap.String("agent_id", agentID),
	)
	return ev, StatusAppended, nil
}

// chainHash computes the link hash over the full record: chain metadata,
// timestamp, every context field including declared influences, and the
// canonical payload bytes. The canonical bytes are passed in so Append
// hashes the exact bytes it deduplicated on.
func chainHash(ev *Event, canonicalPayload []byte) string {
	var meta strings.Builder
	fmt.Fprintf(&meta, "%s|%d|%s|%s|%s|%s|%s|%s|%s|%t",
		ev.PrevHash, ev.Index, ev.ID,
		ev.Timestamp.UTC().Format(time.RFC3339Nano), ev.AgentID,
		ev.Context.Causation, ev.Context.DutyOfCare,
		ev.Context.KnowledgeLevel, ev.Context.ControlLevel,
		ev.Context.Agency(),
	)
	for _, inf := range ev.Context.Influences {
		fmt.Fprintf(&meta, "|%s|%v", inf.Method, inf.Weight)
	}
	return hashBytes([]byte(meta.String()), canonicalPayload)
}

// Get returns the event with the given ID, or nil if unknown.
func (l *Ledger) Get(id string) *Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byID[id]
}

// Has reports whether an event with the given ID exists.
func (l *Ledger) Has(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byID[id]
	return ok
}

// Len returns the number of chain entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Events returns a snapshot copy of the chain in append order.
func (l *Ledger) Events() []*Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Event, len(l.events))
	copy(out, l.events)
	return out
}

// Halted reports whether a broken chain has stopped the ledger.
func (l *Ledger) Halted() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.halted
}

// VerifyChain walks the whole chain recomputing every link and returns the
// indices where linkage fails. A non-empty result halts the ledger: further
// appends fail with ErrChainBroken until manual recovery.
func (l *Ledger) VerifyChain() []int {
	l.mu.RLock()
	snapshot := make([]*Event, len(l.events))
	copy(snapshot, l.events)
	l.mu.RUnlock()

	var breaks []int
	prev := GenesisHash
	for i, ev := range snapshot {
		canonical, err := canonicalJSON(ev.Payload)
		if err != nil {
			breaks = append(breaks, i)
			prev = ev.Hash
			continue
		}
		if ev.PrevHash != prev ||
			ev.ID != hashBytes(canonical) ||
			ev.Hash != chainHash(ev, canonical) {
			breaks = append(breaks, i)
		}
		prev = ev.Hash
	}

	if len(breaks) > 0 {
		l.mu.Lock()
		l.halted = true
		l.mu.Unlock()
		l.logger.Error("ledger chain broken, halting appends",
			zap.Ints("break_indices", breaks),
		)
	}
	return breaks
}
