package legitimacy

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arbiterhq/arbiter/internal/ledger"
	"go.uber.org/zap"
)

func agencyContext() ledger.Context {
	agency := true
	return ledger.Context{
		Causation:      ledger.CausationAIDecision,
		AgencyPresent:  &agency,
		DutyOfCare:     ledger.DutyMedium,
		KnowledgeLevel: ledger.KnowledgeFull,
		ControlLevel:   ledger.ControlDirect,
	}
}

func TestDecayRate_AcceleratesAboveSaturation(t *testing.T) {
	cfg := DefaultConfig()
	low := DecayRate(0.5, cfg)
	high := DecayRate(0.9, cfg)
	if high <= low {
		t.Errorf("decay above saturation (%v) should exceed baseline (%v)", high, low)
	}
	if low != cfg.BaseRate {
		t.Errorf("below saturation the rate should be the base rate, got %v", low)
	}
}

func TestDecayedScore_NeverIncreases(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now()

	if got := DecayedScore(0.7, now, now.Add(time.Hour), cfg); got >= 0.7 {
		t.Errorf("score should decay over an hour, got %v", got)
	}
	// Clock skew: lastUpdated in the future leaves the score untouched.
	if got := DecayedScore(0.7, now.Add(time.Hour), now, cfg); got != 0.7 {
		t.Errorf("negative elapsed time must not change the score, got %v", got)
	}
}

func TestDecayedScore_StaysInBounds(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now()
	got := DecayedScore(1.0, now, now.Add(10000*time.Hour), cfg)
	if got < 0 || got > 1 {
		t.Errorf("decayed score out of [0,1]: %v", got)
	}
}

func TestRegistry_RegisterAndScore(t *testing.T) {
	r := NewRegistry(DefaultConfig(), zap.NewNop())
	r.Register("agent-1")
	if !r.Registered("agent-1") {
		t.Fatal("agent should be registered")
	}

	score, err := r.Score("agent-1", time.Now())
	if err != nil {
		t.Fatalf("score failed: %v", err)
	}
	if score > DefaultConfig().InitialScore {
		t.Errorf("score %v should not exceed the initial score", score)
	}

	if _, err := r.Score("ghost", time.Now()); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestRegistry_AdjustClamps(t *testing.T) {
	r := NewRegistry(DefaultConfig(), zap.NewNop())
	r.Register("agent-1")

	if err := r.Adjust("agent-1", 5.0); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	score, _ := r.Score("agent-1", time.Now())
	if score > 1 {
		t.Errorf("score should clamp to 1, got %v", score)
	}

	if err := r.Adjust("agent-1", -5.0); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	score, _ = r.Score("agent-1", time.Now())
	if score < 0 {
		t.Errorf("score should clamp to 0, got %v", score)
	}

	if err := r.Adjust("ghost", 0.1); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestGate_RejectsUnregisteredAgent(t *testing.T) {
	r := NewRegistry(DefaultConfig(), zap.NewNop())
	g := NewGate(r, zap.NewNop())

	out := g.Check("ghost", agencyContext())
	if out.Decision != Reject {
		t.Fatalf("decision = %s, want reject", out.Decision)
	}
	if out.Reason != ReasonUnregisteredAgent {
		t.Errorf("reason = %q, want %q", out.Reason, ReasonUnregisteredAgent)
	}
}

func TestGate_AllowsHealthyAgent(t *testing.T) {
	r := NewRegistry(DefaultConfig(), zap.NewNop())
	g := NewGate(r, zap.NewNop())
	r.Register("agent-1")

	out := g.Check("agent-1", agencyContext())
	if out.Decision != Allow {
		t.Errorf("decision = %s, want allow", out.Decision)
	}
}

func TestGate_ThrottlesLowLegitimacy(t *testing.T) {
	r := NewRegistry(DefaultConfig(), zap.NewNop())
	g := NewGate(r, zap.NewNop())
	r.Register("agent-1")
	if err := r.Adjust("agent-1", -0.5); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	out := g.Check("agent-1", agencyContext())
	if out.Decision != Throttle {
		t.Fatalf("decision = %s, want throttle", out.Decision)
	}
	if out.Throttle <= 0 || out.Throttle >= 1 {
		t.Errorf("throttle factor = %v, want in (0,1)", out.Throttle)
	}
}

func TestGate_RejectsPowerConcentration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 10
	r := NewRegistry(cfg, zap.NewNop())
	g := NewGate(r, zap.NewNop())
	r.Register("agent-1")

	// Fill the whole window with one agent's decisions.
	var out Outcome
	for i := 0; i < cfg.WindowSize+1; i++ {
		out = g.Check("agent-1", agencyContext())
		if out.Decision == Reject {
			break
		}
	}
	if out.Decision != Reject {
		t.Fatalf("monopolizing agent should be rejected, got %s", out.Decision)
	}
	if out.Reason != ReasonPowerConcentration {
		t.Errorf("reason = %q, want %q", out.Reason, ReasonPowerConcentration)
	}
}

func TestGate_SharedWindowStaysOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 10
	r := NewRegistry(cfg, zap.NewNop())
	g := NewGate(r, zap.NewNop())
	for i := 0; i < 4; i++ {
		r.Register(fmt.Sprintf("agent-%d", i))
	}

	// Round-robin decisions keep every agent's share under the threshold.
	for i := 0; i < cfg.WindowSize*3; i++ {
		agent := fmt.Sprintf("agent-%d", i%4)
		if out := g.Check(agent, agencyContext()); out.Decision == Reject {
			t.Fatalf("balanced agents should not trip the concentration check (iteration %d)", i)
		}
	}
}

func TestGate_InfluenceDiscountsGain(t *testing.T) {
	r := NewRegistry(DefaultConfig(), zap.NewNop())
	g := NewGate(r, zap.NewNop())
	r.Register("clean")
	r.Register("nudger")

	influenced := agencyContext()
	influenced.Influences = []ledger.Influence{{Method: "framing", Weight: 1.0}}

	g.Check("clean", agencyContext())
	g.Check("nudger", influenced)

	now := time.Now()
	cleanScore, _ := r.Score("clean", now)
	nudgerScore, _ := r.Score("nudger", now)
	if cleanScore <= nudgerScore {
		t.Errorf("fully influenced decision should earn less: clean=%v nudger=%v", cleanScore, nudgerScore)
	}
}
