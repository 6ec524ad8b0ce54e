package storage

import "time"

// DecisionWriter is the interface for streaming enforcement decisions to the
// analytics store. Write() must NEVER block the caller.
type DecisionWriter interface {
	Write(event *DecisionEvent)
	Close()
}

// DecisionEvent represents one pass through the enforcement wrapper, to be
// persisted for the dashboard surface. The ledger stays the source of truth;
// this stream is derived, append-only telemetry.
type DecisionEvent struct {
	RequestID         string
	EventID           string
	EventIndex        int32
	AgentID           string
	Timestamp         time.Time
	AppendStatus      string // "appended" or "duplicate"
	GateDecision      string // "allow", "reject", "throttle"
	GateReason        string
	Throttle          float32
	Executed          bool
	Classifications   int32
	Divergence        float32 // meaningful only when DivergenceKnown
	DivergenceKnown   bool
	Escalated         bool
	CaseID            string
	CaseStatus        string
	ViolationType     string // empty when the decision produced no violation
	ViolationSeverity string
	LatencyMs         float32
}
