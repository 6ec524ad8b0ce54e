package classify

import (
	"math"
	"testing"
)

func c(status Status, conf, risk float64) *Classification {
	return &Classification{Status: status, Confidence: conf, Risk: risk}
}

func TestDivergence_KnownValue(t *testing.T) {
	// Status distance 1.0, confidence spread 0.4, risk spread 0.8:
	// 0.4*1.0 + 0.3*0.4 + 0.3*0.8 = 0.76
	cs := []*Classification{
		c(StatusEthical, 0.9, 0.1),
		c(StatusUnethical, 0.5, 0.9),
	}
	score, ok := Divergence(cs)
	if !ok {
		t.Fatal("divergence should be defined for two classifications")
	}
	if math.Abs(score-0.76) > 1e-9 {
		t.Errorf("score = %v, want 0.76", score)
	}
}

func TestDivergence_UndefinedBelowTwo(t *testing.T) {
	if _, ok := Divergence(nil); ok {
		t.Error("empty set should be undefined")
	}
	if _, ok := Divergence([]*Classification{c(StatusEthical, 1, 0)}); ok {
		t.Error("single classification should be undefined")
	}
}

func TestDivergence_IdenticalSetIsZero(t *testing.T) {
	cs := []*Classification{
		c(StatusAmbiguous, 0.5, 0.5),
		c(StatusAmbiguous, 0.5, 0.5),
		c(StatusAmbiguous, 0.5, 0.5),
	}
	score, ok := Divergence(cs)
	if !ok || score != 0 {
		t.Errorf("identical classifications should score 0, got %v (ok=%v)", score, ok)
	}
}

func TestDivergence_OrderIndependent(t *testing.T) {
	a := []*Classification{
		c(StatusEthical, 0.9, 0.1),
		c(StatusAmbiguous, 0.6, 0.4),
		c(StatusUnethical, 0.3, 0.8),
	}
	b := []*Classification{a[2], a[0], a[1]}

	sa, _ := Divergence(a)
	sb, _ := Divergence(b)
	if sa != sb {
		t.Errorf("divergence depends on order: %v vs %v", sa, sb)
	}
}

func TestDivergence_MaxPairwiseNotAdjacent(t *testing.T) {
	// ethical..unethical pair dominates even with ambiguous in between.
	cs := []*Classification{
		c(StatusEthical, 0.5, 0.5),
		c(StatusAmbiguous, 0.5, 0.5),
		c(StatusUnethical, 0.5, 0.5),
	}
	score, _ := Divergence(cs)
	if math.Abs(score-0.4) > 1e-9 {
		t.Errorf("status term should use max pairwise distance: got %v, want 0.4", score)
	}
}

func TestShouldEscalate_ThresholdBoundary(t *testing.T) {
	// Exactly at threshold escalates.
	at := []*Classification{
		c(StatusEthical, 0.5, 0.5),
		c(StatusUnethical, 0.5, 0.5),
	}
	if !ShouldEscalate(at, 0.4) {
		t.Error("score at threshold should escalate")
	}

	below := []*Classification{
		c(StatusEthical, 0.5, 0.5),
		c(StatusEthical, 0.4, 0.6),
	}
	if ShouldEscalate(below, 0.4) {
		t.Error("agreeing ethical verdicts below threshold should not escalate")
	}
}

func TestShouldEscalate_SingleUnethicalOverridesThreshold(t *testing.T) {
	// All agree on unethical: divergence 0, but escalation still fires.
	cs := []*Classification{
		c(StatusUnethical, 0.9, 0.9),
		c(StatusUnethical, 0.9, 0.9),
	}
	if !ShouldEscalate(cs, 0.4) {
		t.Error("any unethical verdict must escalate regardless of divergence")
	}

	// Even a lone unethical classification escalates.
	if !ShouldEscalate([]*Classification{c(StatusUnethical, 0.5, 0.5)}, 0.4) {
		t.Error("single unethical verdict must escalate")
	}
}
