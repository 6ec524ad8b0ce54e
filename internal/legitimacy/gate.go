package legitimacy

import (
	"time"

	"github.com/arbiterhq/arbiter/internal/ledger"
	"go.uber.org/zap"
)

// Decision is the gate's verdict on an attempted action.
type Decision int

const (
	Allow Decision = iota + 1
	Reject
	Throttle
)

// String returns the lowercase decision name.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Reject:
		return "reject"
	case Throttle:
		return "throttle"
	default:
		return "unspecified"
	}
}

// Reject reasons surfaced to callers and violation records.
const (
	ReasonUnregisteredAgent  = "unregistered agent"
	ReasonPowerConcentration = "power concentration"
)

// Outcome carries the decision plus its reason and, for throttled decisions,
// the throttle factor in [0,1].
type Outcome struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason,omitempty"`
	Throttle float64  `json:"throttle,omitempty"`
}

// Gate is the first of the two execution gates. It checks an agent's decayed
// legitimacy and the adversarial power-concentration condition before the
// wrapped action may run.
type Gate struct {
	registry *Registry
	logger   *zap.Logger
}

// NewGate creates a gate over the given registry.
func NewGate(registry *Registry, logger *zap.Logger) *Gate {
	return &Gate{registry: registry, logger: logger}
}

// Check evaluates the agent's standing for one attempted decision. An
// allowed or throttled outcome records the decision in the concentration
// window and credits the influence-discounted legitimacy gain; a rejection
// mutates nothing.
func (g *Gate) Check(agentID string, ectx ledger.Context) Outcome {
	now := time.Now().UTC()

	r := g.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.states[agentID]
	if !ok {
		g.logger.Warn("gate rejected unregistered agent",
			zap.String("agent_id", agentID),
		)
		return Outcome{Decision: Reject, Reason: ReasonUnregisteredAgent}
	}

	r.settle(st, now)

	if share := r.concentrationShare(agentID); share > r.cfg.ConcentrationThreshold && len(r.window) >= r.cfg.WindowSize {
		g.logger.Warn("gate rejected concentrated agent",
			zap.String("agent_id", agentID),
			zap.Float64("share", share),
			zap.Float64("threshold", r.cfg.ConcentrationThreshold),
		)
		return Outcome{Decision: Reject, Reason: ReasonPowerConcentration}
	}

	var influence float64
	for _, inf := range ectx.Influences {
		influence += inf.Weight
	}

	out := Outcome{Decision: Allow}
	if r.cfg.ThrottleBelow > 0 && st.Score < r.cfg.ThrottleBelow {
		out = Outcome{
			Decision: Throttle,
			Reason:   "legitimacy below throttle band",
			Throttle: clamp01(st.Score / r.cfg.ThrottleBelow),
		}
	}

	r.recordDecision(st, influence)

	g.logger.Debug("gate decision",
		zap.String("agent_id", agentID),
		zap.String("decision", out.Decision.String()),
		zap.Float64("score", st.Score),
	)
	return out
}
