// Package enforce implements the mandatory entry point that wraps every
// agentive action: ledger append, legitimacy gate, execution, classification
// fan-out, ethics gate and case conclusion, with a violation record for
// every rejected or blocked step.
package enforce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arbiterhq/arbiter/internal/caseflow"
	"github.com/arbiterhq/arbiter/internal/classify"
	"github.com/arbiterhq/arbiter/internal/classify/classifiers"
	"github.com/arbiterhq/arbiter/internal/ledger"
	"github.com/arbiterhq/arbiter/internal/legitimacy"
	"github.com/arbiterhq/arbiter/internal/storage"
	"github.com/arbiterhq/arbiter/internal/violation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrDecisionRejected is returned when the legitimacy gate vetoes an action.
// The attempt is still audit-recorded in the ledger; the wrapped function
// never runs.
var ErrDecisionRejected = errors.New("decision rejected")

// Action is the wrapped agentive function. It only runs once the context is
// validated, the event is recorded and the legitimacy gate allows.
type Action func(ctx context.Context, payload map[string]interface{}, ectx ledger.Context) (interface{}, error)

// Config holds the enforcement knobs.
type Config struct {
	// EscalationThreshold is the divergence score at or above which the
	// ethics gate escalates instead of auto-resolving.
	EscalationThreshold float64
}

// DefaultConfig returns the enforcement defaults.
func DefaultConfig() Config {
	return Config{EscalationThreshold: classify.DefaultEscalationThreshold}
}

// Decision summarizes one pass through the wrapper.
type Decision struct {
	RequestID       string
	Event           *ledger.Event
	AppendStatus    ledger.AppendStatus
	Gate            legitimacy.Outcome
	Executed        bool
	Result          interface{}
	Classifications int
	Divergence      float64
	DivergenceKnown bool
	Escalated       bool
	Case            *caseflow.Case
}

// Enforcer composes the governance components. All dependencies are
// injected; writer may be nil-safe via storage.NewLogWriter.
type Enforcer struct {
	ledger          *ledger.Ledger
	classifications *classify.Store
	engine          *classify.Engine
	gate            *legitimacy.Gate
	cases           *caseflow.Manager
	violations      *violation.Tracker
	writer          storage.DecisionWriter
	cfg             Config
	logger          *zap.Logger
}

// New creates an enforcer.
func New(
	l *ledger.Ledger,
	cls *classify.Store,
	engine *classify.Engine,
	gate *legitimacy.Gate,
	cases *caseflow.Manager,
	violations *violation.Tracker,
	writer storage.DecisionWriter,
	cfg Config,
	logger *zap.Logger,
) *Enforcer {
	return &Enforcer{
		ledger:          l,
		classifications: cls,
		engine:          engine,
		gate:            gate,
		cases:           cases,
		violations:      violations,
		writer:          writer,
		cfg:             cfg,
		logger:          logger,
	}
}

// Do runs one agentive action through the full pipeline and returns the
// action's result inside the decision summary. Every early exit leaves a
// violation record; nothing fails silently.
func (e *Enforcer) Do(ctx context.Context, agentID string, payload map[string]interface{}, ectx ledger.Context, fn Action) (*Decision, error) {
	start := time.Now()
	d := &Decision{RequestID: uuid.New().String()}

	// 1. Ingress validation. Missing fields block before any side effect.
	if err := ectx.Validate(); err != nil {
		v := e.violations.Record(violation.TypeMissingContext, violation.SeverityBlocking, agentID, err.Error())
		e.writeDecision(d, agentID, v, start)
		return d, err
	}

	// 2. Audit-record the attempt. A duplicate canonical payload returns
	// the existing event without growing the chain.
	ev, status, err := e.ledger.Append(payload, agentID, ectx)
	if err != nil {
		// Context was already validated; what remains here is a broken
		// chain or a payload that cannot be canonicalized.
		vt := violation.TypeAudit
		if errors.Is(err, ledger.ErrChainBroken) {
			vt = violation.TypeChainBroken
		}
		v := e.violations.Record(vt, violation.SeverityBlocking, agentID, err.Error())
		e.writeDecision(d, agentID, v, start)
		return d, err
	}
	d.Event = ev
	d.AppendStatus = status

	// 3. Agentive events get their governance case, exactly once.
	if ev.Context.Agency() {
		if c, cerr := e.cases.CreateCase(ev.ID); cerr == nil || errors.Is(cerr, caseflow.ErrCaseExists) {
			d.Case = c
		}
	}

	// 4. Legitimacy gate. A veto leaves the event recorded as a rejected
	// attempt and propagates DecisionRejected to the caller.
	d.Gate = e.gate.Check(agentID, ectx)
	if d.Gate.Decision == legitimacy.Reject {
		v := e.violations.Record(violation.TypeAudit, violation.SeverityAudit, agentID,
			fmt.Sprintf("rejected attempt audit: event %s (%s)", ev.ID, d.Gate.Reason))
		e.writeDecision(d, agentID, v, start)
		return d, fmt.Errorf("%w: %s", ErrDecisionRejected, d.Gate.Reason)
	}

	// 5. Execute the wrapped action.
	result, fnErr := fn(ctx, payload, ectx)
	d.Executed = true
	d.Result = result

	// 6. Classification, divergence, ethics gate, case conclusion.
	if ev.Context.Agency() {
		e.assess(ctx, agentID, ev, d)
	}

	e.writeDecision(d, agentID, nil, start)
	if fnErr != nil {
		return d, fmt.Errorf("wrapped action: %w", fnErr)
	}
	return d, nil
}

// assess generates the acting agent's self-classification, fans the event
// out to the automated classifiers and, once at least two assessments exist,
// runs divergence scoring and the ethics gate.
func (e *Enforcer) assess(ctx context.Context, agentID string, ev *ledger.Event, d *Decision) {
	self := classifiers.SelfAssessment(ev)
	e.submit(classify.Classification{
		EventID:    ev.ID,
		AgentID:    agentID,
		Status:     self.Status,
		Confidence: self.Confidence,
		Risk:       self.Risk,
		Reasoning:  self.Reasoning,
	})

	for _, c := range e.engine.Run(ctx, ev) {
		e.submit(c)
	}

	cs := e.classifications.ForEvent(ev.ID)
	d.Classifications = len(cs)
	if len(cs) < 2 {
		return
	}

	d.Divergence, d.DivergenceKnown = classify.Divergence(cs)
	d.Escalated = classify.ShouldEscalate(cs, e.cfg.EscalationThreshold)

	agents := make([]string, 0, len(cs))
	for _, c := range cs {
		agents = append(agents, c.AgentID)
	}
	e.cases.Conclude(ctx, ev.ID, d.Escalated, caseflow.EscalationPayload{
		EventID:    ev.ID,
		Divergence: d.Divergence,
		AgentIDs:   agents,
		Reason:     "ethics gate: divergence or unethical verdict",
	})
	d.Case = e.cases.ForEvent(ev.ID)
}

// submit records a classification and downgrades duplicates to warning
// violations — re-assessment on the duplicate-payload path is expected and
// must not halt the pipeline.
func (e *Enforcer) submit(c classify.Classification) {
	err := e.classifications.Submit(c)
	switch {
	case err == nil:
	case errors.Is(err, classify.ErrDuplicateClassification):
		e.violations.Record(violation.TypeDuplicateClassification, violation.SeverityWarning, c.AgentID, err.Error())
	default:
		e.logger.Warn("classification submit failed",
			zap.String("event_id", c.EventID),
			zap.String("agent_id", c.AgentID),
			zap.Error(err),
		)
	}
}

// writeDecision streams the decision summary to the analytics store.
func (e *Enforcer) writeDecision(d *Decision, agentID string, v *violation.Violation, start time.Time) {
	event := &storage.DecisionEvent{
		RequestID:       d.RequestID,
		AgentID:         agentID,
		Timestamp:       time.Now().UTC(),
		GateDecision:    d.Gate.Decision.String(),
		GateReason:      d.Gate.Reason,
		Throttle:        float32(d.Gate.Throttle),
		Executed:        d.Executed,
		Classifications: int32(d.Classifications),
		Divergence:      float32(d.Divergence),
		DivergenceKnown: d.DivergenceKnown,
		Escalated:       d.Escalated,
		AppendStatus:    string(d.AppendStatus),
		LatencyMs:       float32(float64(time.Since(start)) / float64(time.Millisecond)),
	}
	if d.Event != nil {
		event.EventID = d.Event.ID
		event.EventIndex = int32(d.Event.Index)
	}
	if d.Case != nil {
		event.CaseID = d.Case.ID
		event.CaseStatus = string(d.Case.Status)
	}
	if v != nil {
		event.ViolationType = string(v.Type)
		event.ViolationSeverity = string(v.Severity)
	}
	e.writer.Write(event)
}
