// Package violation is the cross-cutting compliance log. Every rejected or
// blocked operation leaves a record here; nothing fails silently.
package violation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type classifies what went wrong.
type Type string

const (
	TypeMissingContext          Type = "missing_context"
	TypeIncompleteContext       Type = "incomplete_context"
	TypeUnregisteredAgent       Type = "unregistered_agent"
	TypeImmutabilityBreach      Type = "immutability_breach"
	TypeChainBroken             Type = "chain_broken"
	TypeDuplicateClassification Type = "duplicate_classification"
	// TypeAudit covers informational records such as rejected-attempt
	// audits and escalation timeouts.
	TypeAudit Type = "audit"
)

// Severity decides whether the enclosing operation halts.
type Severity string

const (
	// SeverityBlocking halts the enclosing operation; the caller receives a
	// raised failure before any further side effect.
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
	SeverityAudit    Severity = "audit"
)

// Violation is one recorded compliance breach.
type Violation struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Severity  Severity  `json:"severity"`
	AgentID   string    `json:"agent_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Report aggregates violation counts for the query surface.
type Report struct {
	Total      int              `json:"total"`
	ByType     map[Type]int     `json:"by_type"`
	BySeverity map[Severity]int `json:"by_severity"`
	ByAgent    map[string]int   `json:"by_agent"`
}

// Tracker is the append-only violation store.
type Tracker struct {
	mu      sync.RWMutex
	records []*Violation
	logger  *zap.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// Record appends a violation and returns it. Blocking severity is the
// caller's signal to halt; the tracker itself only records.
func (t *Tracker) Record(vt Type, sev Severity, agentID, message string) *Violation {
	v := &Violation{
		ID:        uuid.New().String(),
		Type:      vt,
		Severity:  sev,
		AgentID:   agentID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}

	t.mu.Lock()
	t.records = append(t.records, v)
	t.mu.Unlock()

	logFn := t.logger.Info
	if sev == SeverityBlocking {
		logFn = t.logger.Warn
	}
	logFn("violation recorded",
		zap.String("violation_id", v.ID),
		zap.String("type", string(vt)),
		zap.String("severity", string(sev)),
		zap.String("agent_id", agentID),
		zap.String("message", message),
	)
	return v
}

// ByAgent returns all violations recorded against an agent.
func (t *Tracker) ByAgent(agentID string) []*Violation {
	return t.filter(func(v *Violation) bool { return v.AgentID == agentID })
}

// ByType returns all violations of the given type.
func (t *Tracker) ByType(vt Type) []*Violation {
	return t.filter(func(v *Violation) bool { return v.Type == vt })
}

// Window returns violations recorded in [from, to).
func (t *Tracker) Window(from, to time.Time) []*Violation {
	return t.filter(func(v *Violation) bool {
		return !v.Timestamp.Before(from) && v.Timestamp.Before(to)
	})
}

// All returns a snapshot of every recorded violation.
func (t *Tracker) All() []*Violation {
	return t.filter(func(*Violation) bool { return true })
}

func (t *Tracker) filter(keep func(*Violation) bool) []*Violation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*Violation
	for _, v := range t.records {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// GenerateReport aggregates counts by type, severity and agent.
func (t *Tracker) GenerateReport() *Report {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r := &Report{
		Total:      len(t.records),
		ByType:     make(map[Type]int),
		BySeverity: make(map[Severity]int),
		ByAgent:    make(map[string]int),
	}
	for _, v := range t.records {
		r.ByType[v.Type]++
		r.BySeverity[v.Severity]++
		if v.AgentID != "" {
			r.ByAgent[v.AgentID]++
		}
	}
	return r
}
