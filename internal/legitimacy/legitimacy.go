// Package legitimacy implements the decaying per-agent trust score and the
// stability gate that runs before any wrapped action. Scores decay lazily on
// read, so no background timer is needed; only the gate and human rulings
// mutate state.
package legitimacy

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownAgent is returned when an agent has no legitimacy state.
var ErrUnknownAgent = errors.New("unknown agent")

// Config holds the decay and gating knobs.
type Config struct {
	// BaseRate is the baseline exponential decay rate per hour.
	BaseRate float64
	// SaturationThreshold is the score above which decay accelerates.
	SaturationThreshold float64
	// SaturationK scales the extra decay applied above the threshold,
	// punishing hoard-then-spend patterns.
	SaturationK float64
	// DecisionGain is the legitimacy earned by one allowed decision before
	// influence discounting.
	DecisionGain float64
	// ThrottleBelow is the score under which decisions are throttled rather
	// than allowed outright.
	ThrottleBelow float64
	// InitialScore seeds newly registered agents.
	InitialScore float64
	// WindowSize is the sliding window (in decisions) for the power
	// concentration check.
	WindowSize int
	// ConcentrationThreshold is the maximum share of legitimacy-weighted
	// decisions one agent may hold inside the window.
	ConcentrationThreshold float64
}

// DefaultConfig returns the gate defaults.
func DefaultConfig() Config {
	return Config{
		BaseRate:               0.01,
		SaturationThreshold:    0.85,
		SaturationK:            4.0,
		DecisionGain:           0.02,
		ThrottleBelow:          0.3,
		InitialScore:           0.6,
		WindowSize:             50,
		ConcentrationThreshold: 0.5,
	}
}

// DecayRate returns the effective decay rate for a score. Above the
// saturation threshold the rate grows linearly with the excess.
func DecayRate(score float64, cfg Config) float64 {
	return cfg.BaseRate * (1 + cfg.SaturationK*math.Max(0, score-cfg.SaturationThreshold))
}

// DecayedScore is the pure decay function: score(t) = score(t0)·e^(−rate·Δt),
// with Δt in hours. Elapsed time never increases a score.
func DecayedScore(score float64, lastUpdated, now time.Time, cfg Config) float64 {
	dt := now.Sub(lastUpdated).Hours()
	if dt <= 0 {
		return score
	}
	return clamp01(score * math.Exp(-DecayRate(score, cfg)*dt))
}

// State is one agent's legitimacy record.
type State struct {
	AgentID     string    `json:"agent_id"`
	Score       float64   `json:"score"`
	LastUpdated time.Time `json:"last_updated"`
}

// windowEntry is one decision in the concentration window.
type windowEntry struct {
	agentID string
	weight  float64
}

// Registry owns all legitimacy state. It is injected into the gate and the
// ruling path explicitly — never a package-level singleton.
type Registry struct {
	mu     sync.Mutex
	states map[string]*State
	window []windowEntry
	cfg    Config
	logger *zap.Logger
}

// NewRegistry creates a registry with the given configuration.
func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	return &Registry{
		states: make(map[string]*State),
		cfg:    cfg,
		logger: logger,
	}
}

// Register creates state for an agent with the configured initial score.
// Registering an existing agent is a no-op.
func (r *Registry) Register(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[agentID]; ok {
		return
	}
	r.states[agentID] = &State{
		AgentID:     agentID,
		Score:       clamp01(r.cfg.InitialScore),
		LastUpdated: time.Now().UTC(),
	}
}

// Registered reports whether the agent has legitimacy state.
func (r *Registry) Registered(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.states[agentID]
	return ok
}

// Score returns the agent's current decayed score.
func (r *Registry) Score(agentID string, now time.Time) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[agentID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	return DecayedScore(st.Score, st.LastUpdated, now, r.cfg), nil
}

// Adjust applies a human-ruling delta to an agent's score, clamped to [0,1].
func (r *Registry) Adjust(agentID string, delta float64) error {
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	decayed := DecayedScore(st.Score, st.LastUpdated, now, r.cfg)
	st.Score = clamp01(decayed + delta)
	st.LastUpdated = now
	r.logger.Info("legitimacy adjusted by ruling",
		zap.String("agent_id", agentID),
		zap.Float64("delta", delta),
		zap.Float64("score", st.Score),
	)
	return nil
}

// settle folds decay into the stored score. Callers hold r.mu.
func (r *Registry) settle(st *State, now time.Time) {
	st.Score = DecayedScore(st.Score, st.LastUpdated, now, r.cfg)
	st.LastUpdated = now
}

// concentrationShare returns the agent's share of legitimacy-weighted
// decisions in the current window. Callers hold r.mu.
func (r *Registry) concentrationShare(agentID string) float64 {
	var total, own float64
	for _, e := range r.window {
		total += e.weight
		if e.agentID == agentID {
			own += e.weight
		}
	}
	if total == 0 {
		return 0
	}
	return own / total
}

// recordDecision pushes an allowed decision into the sliding window and
// credits the influence-discounted gain. Callers hold r.mu.
func (r *Registry) recordDecision(st *State, influenceWeight float64) {
	gain := r.cfg.DecisionGain * (1 - clamp01(influenceWeight))
	st.Score = clamp01(st.Score + gain)

	r.window = append(r.window, windowEntry{agentID: st.AgentID, weight: st.Score})
	if r.cfg.WindowSize > 0 && len(r.window) > r.cfg.WindowSize {
		r.window = r.window[len(r.window)-r.cfg.WindowSize:]
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
