// Package caseflow tracks governance cases for agentive events through the
// OPEN → ESCALATED → RESOLVED state machine, including human rulings,
// precedent tracking and the escalation timeout sweep.
package caseflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arbiterhq/arbiter/internal/violation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrCaseExists is returned when an event already has its case. A case
	// is created exactly once per agentive event.
	ErrCaseExists = errors.New("case already exists for event")

	// ErrUnknownCase is returned for lookups and rulings on unknown case IDs.
	ErrUnknownCase = errors.New("unknown case")

	// ErrCaseResolved is returned when a ruling targets an already resolved
	// case. Rulings are immutable and cases are never reopened.
	ErrCaseResolved = errors.New("case already resolved")
)

// Status is the case state.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusEscalated Status = "ESCALATED"
	StatusResolved  Status = "RESOLVED"
)

// Case is the governance-tracking object opened for agentive events.
type Case struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	Status      Status     `json:"status"`
	OpenedAt    time.Time  `json:"opened_at"`
	EscalatedAt *time.Time `json:"escalated_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	RulingID    string     `json:"ruling_id,omitempty"`

	deadline     time.Time // escalation timeout; zero until escalated
	timeoutNoted bool      // audit violation already recorded
}

// Ruling is a human's binding resolution of a case. Immutable after creation.
type Ruling struct {
	ID            string    `json:"id"`
	CaseID        string    `json:"case_id"`
	HumanID       string    `json:"human_id"`
	Decision      string    `json:"decision"`
	PrecedentFlag bool      `json:"precedent_flag"`
	CreatedAt     time.Time `json:"created_at"`
}

// RulingInput is everything a human reviewer supplies with a ruling.
type RulingInput struct {
	HumanID  string
	Decision string

	// PrecedentFlag promotes the ruling into a precedent with the given
	// scope and lifetime.
	PrecedentFlag  bool
	PrecedentScope string
	PrecedentTTL   time.Duration

	// AgentID and LegitimacyDelta optionally adjust the ruled-on agent's
	// legitimacy score.
	AgentID         string
	LegitimacyDelta float64
}

// LegitimacyAdjuster applies ruling-based score deltas. The legitimacy
// registry satisfies it.
type LegitimacyAdjuster interface {
	Adjust(agentID string, delta float64) error
}

// Archive persists rulings and precedents durably. Nil-safe: a nil archive
// keeps everything in memory only.
type Archive interface {
	SaveRuling(ctx context.Context, r *Ruling) error
	SavePrecedent(ctx context.Context, p *Precedent) error
}

// Config holds the escalation timing knobs.
type Config struct {
	// EscalationTimeout is how long an escalated case may wait for a ruling
	// before the audit sweep flags it.
	EscalationTimeout time.Duration
	// SweepInterval is the cadence of the background timeout sweep.
	SweepInterval time.Duration
}

// DefaultConfig returns the escalation defaults.
func DefaultConfig() Config {
	return Config{
		EscalationTimeout: 72 * time.Hour,
		SweepInterval:     time.Minute,
	}
}

// Manager owns all cases, rulings and precedents.
type Manager struct {
	mu      sync.RWMutex
	cases   map[string]*Case // by case ID
	byEvent map[string]*Case
	rulings map[string]*Ruling

	precedents *PrecedentStore
	notifier   Notifier
	violations *violation.Tracker
	legitimacy LegitimacyAdjuster
	archive    Archive
	cfg        Config
	logger     *zap.Logger

	done    chan struct{}
	stopped chan struct{}
}

// NewManager creates a manager. notifier and violations are required;
// legitimacy and archive may be nil.
func NewManager(cfg Config, notifier Notifier, violations *violation.Tracker, legitimacy LegitimacyAdjuster, archive Archive, logger *zap.Logger) *Manager {
	return &Manager{
		cases:      make(map[string]*Case),
		byEvent:    make(map[string]*Case),
		rulings:    make(map[string]*Ruling),
		precedents: NewPrecedentStore(),
		notifier:   notifier,
		violations: violations,
		legitimacy: legitimacy,
		archive:    archive,
		cfg:        cfg,
		logger:     logger,
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Precedents exposes the precedent store for classification-time lookups.
func (m *Manager) Precedents() *PrecedentStore {
	return m.precedents
}

// CreateCase opens a case for an agentive event. Called exactly once per
// event, at append time.
func (m *Manager) CreateCase(eventID string) (*Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byEvent[eventID]; ok {
		snapshot := *existing
		return &snapshot, fmt.Errorf("%w: %s", ErrCaseExists, eventID)
	}

	c := &Case{
		ID:       uuid.New().String(),
		EventID:  eventID,
		Status:   StatusOpen,
		OpenedAt: time.Now().UTC(),
	}
	m.cases[c.ID] = c
	m.byEvent[eventID] = c

	m.logger.Info("case opened",
		zap.String("case_id", c.ID),
		zap.String("event_id", eventID),
	)
	// Callers get a snapshot; the stored case is mutated only under the
	// manager's lock.
	snapshot := *c
	return &snapshot, nil
}

// Get returns a case by ID, or nil if unknown.
func (m *Manager) Get(caseID string) *Case {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.cases[caseID]; ok {
		snapshot := *c
		return &snapshot
	}
	return nil
}

// ForEvent returns the case tracking an event, or nil.
func (m *Manager) ForEvent(eventID string) *Case {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.byEvent[eventID]; ok {
		snapshot := *c
		return &snapshot
	}
	return nil
}

// GetRuling returns a ruling by ID, or nil.
func (m *Manager) GetRuling(rulingID string) *Ruling {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rulings[rulingID]
}

// Conclude applies the ethics-gate outcome to an open case. escalate=false
// auto-resolves the case with no human involved; escalate=true moves it to
// ESCALATED, notifies the external channel and arms the timeout. Concluding
// a case that already left OPEN is a no-op.
func (m *Manager) Conclude(ctx context.Context, eventID string, escalate bool, payload EscalationPayload) {
	m.mu.Lock()
	c, ok := m.byEvent[eventID]
	if !ok || c.Status != StatusOpen {
		m.mu.Unlock()
		return
	}

	now := time.Now().UTC()
	if !escalate {
		c.Status = StatusResolved
		c.ResolvedAt = &now
		m.mu.Unlock()
		m.logger.Info("case auto-resolved",
			zap.String("case_id", c.ID),
			zap.String("event_id", eventID),
		)
		return
	}

	c.Status = StatusEscalated
	c.EscalatedAt = &now
	c.deadline = now.Add(m.cfg.EscalationTimeout)
	snapshot := *c
	m.mu.Unlock()

	if err := m.notifier.Notify(ctx, &snapshot, payload); err != nil {
		m.logger.Warn("escalation notify failed",
			zap.String("case_id", snapshot.ID),
			zap.Error(err),
		)
	}
}

// ApplyRuling resolves a case with an authenticated human's decision,
// optionally creating a precedent and adjusting the agent's legitimacy.
// Resolution implicitly cancels the pending escalation timeout.
func (m *Manager) ApplyRuling(ctx context.Context, caseID string, in RulingInput) (*Ruling, error) {
	if in.HumanID == "" {
		return nil, errors.New("ruling requires a human actor")
	}

	m.mu.Lock()
	c, ok := m.cases[caseID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownCase, caseID)
	}
	if c.Status == StatusResolved {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCaseResolved, caseID)
	}

	now := time.Now().UTC()
	r := &Ruling{
		ID:            uuid.New().String(),
		CaseID:        caseID,
		HumanID:       in.HumanID,
		Decision:      in.Decision,
		PrecedentFlag: in.PrecedentFlag,
		CreatedAt:     now,
	}
	m.rulings[r.ID] = r

	c.Status = StatusResolved
	c.ResolvedAt = &now
	c.RulingID = r.ID
	c.deadline = time.Time{}
	m.mu.Unlock()

	var prec *Precedent
	if in.PrecedentFlag {
		ttl := in.PrecedentTTL
		if ttl <= 0 {
			ttl = 30 * 24 * time.Hour
		}
		prec = &Precedent{
			ID:             uuid.New().String(),
			RulingID:       r.ID,
			EventTypeScope: in.PrecedentScope,
			Decision:       in.Decision,
			ExpiresAt:      now.Add(ttl),
		}
		m.precedents.Add(prec)
	}

	if in.AgentID != "" && in.LegitimacyDelta != 0 && m.legitimacy != nil {
		if err := m.legitimacy.Adjust(in.AgentID, in.LegitimacyDelta); err != nil {
			m.logger.Warn("ruling legitimacy adjustment failed",
				zap.String("agent_id", in.AgentID),
				zap.Error(err),
			)
		}
	}

	if m.archive != nil {
		if err := m.archive.SaveRuling(ctx, r); err != nil {
			m.logger.Warn("ruling archive failed", zap.String("ruling_id", r.ID), zap.Error(err))
		}
		if prec != nil {
			if err := m.archive.SavePrecedent(ctx, prec); err != nil {
				m.logger.Warn("precedent archive failed", zap.String("precedent_id", prec.ID), zap.Error(err))
			}
		}
	}

	m.logger.Info("ruling applied",
		zap.String("case_id", caseID),
		zap.String("ruling_id", r.ID),
		zap.String("human_id", in.HumanID),
		zap.Bool("precedent", in.PrecedentFlag),
	)
	return r, nil
}

// Start launches the background timeout sweep. Stop with Stop.
func (m *Manager) Start() {
	go func() {
		defer close(m.stopped)
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep(time.Now().UTC())
			case <-m.done:
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit.
func (m *Manager) Stop() {
	close(m.done)
	<-m.stopped
}

// Sweep flags escalated cases whose ruling deadline has passed. The case
// remains ESCALATED; the violation is audit-only and recorded once. Bounded
// work: one pass over the case table per sweep.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	var expired []*Case
	for _, c := range m.cases {
		if c.Status == StatusEscalated && !c.timeoutNoted && !c.deadline.IsZero() && now.After(c.deadline) {
			c.timeoutNoted = true
			snapshot := *c
			expired = append(expired, &snapshot)
		}
	}
	m.mu.Unlock()

	for _, c := range expired {
		m.violations.Record(violation.TypeAudit, violation.SeverityAudit, "",
			fmt.Sprintf("escalation timeout: case %s (event %s) has no ruling", c.ID, c.EventID))
	}
	return len(expired)
}
