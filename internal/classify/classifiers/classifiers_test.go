package classifiers

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/arbiterhq/arbiter/internal/caseflow"
	"github.com/arbiterhq/arbiter/internal/classify"
	"github.com/arbiterhq/arbiter/internal/ledger"
)

func eventWithContext(ectx ledger.Context) *ledger.Event {
	return &ledger.Event{ID: "ev-1", AgentID: "agent-1", Context: ectx}
}

func baseContext() ledger.Context {
	agency := true
	return ledger.Context{
		Causation:      ledger.CausationHumanDirected,
		AgencyPresent:  &agency,
		DutyOfCare:     ledger.DutyLow,
		KnowledgeLevel: ledger.KnowledgeFull,
		ControlLevel:   ledger.ControlDirect,
	}
}

func TestRiskHeuristic_LowDutyIsEthical(t *testing.T) {
	c := NewRiskHeuristicClassifier()
	a, err := c.Classify(context.Background(), eventWithContext(baseContext()))
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if a.Status != classify.StatusEthical {
		t.Errorf("status = %s, want ethical", a.Status)
	}
	if math.Abs(a.Risk-0.2) > 1e-9 {
		t.Errorf("risk = %v, want 0.2 (low duty base)", a.Risk)
	}
}

func TestRiskHeuristic_AIDecisionUnderHighDuty(t *testing.T) {
	ectx := baseContext()
	ectx.Causation = ledger.CausationAIDecision
	ectx.DutyOfCare = ledger.DutyHigh

	c := NewRiskHeuristicClassifier()
	a, _ := c.Classify(context.Background(), eventWithContext(ectx))
	if a.Status != classify.StatusAmbiguous {
		t.Errorf("autonomous high-duty action should be ambiguous, got %s", a.Status)
	}
}

func TestRiskHeuristic_BlindHighDutyIsUnethical(t *testing.T) {
	ectx := baseContext()
	ectx.DutyOfCare = ledger.DutyCritical
	ectx.KnowledgeLevel = ledger.KnowledgeNone

	c := NewRiskHeuristicClassifier()
	a, _ := c.Classify(context.Background(), eventWithContext(ectx))
	if a.Status != classify.StatusUnethical {
		t.Errorf("critical duty with no knowledge should be unethical, got %s", a.Status)
	}
	if a.Risk != 1 {
		t.Errorf("risk should cap at 1, got %v", a.Risk)
	}
}

func TestPrecedent_NoMatchIsWeakAmbiguous(t *testing.T) {
	c := NewPrecedentClassifier(caseflow.NewPrecedentStore())
	ev := eventWithContext(baseContext())
	ev.Payload = map[string]interface{}{"type": "deploy"}

	a, err := c.Classify(context.Background(), ev)
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if a.Status != classify.StatusAmbiguous || a.Confidence != 0.3 {
		t.Errorf("no precedent should yield weak ambiguous, got %s/%v", a.Status, a.Confidence)
	}
}

func TestPrecedent_ApprovalShiftsEthical(t *testing.T) {
	store := caseflow.NewPrecedentStore()
	store.Add(&caseflow.Precedent{
		ID:             "p-1",
		RulingID:       "r-1",
		EventTypeScope: "deploy",
		Decision:       "approve",
		ExpiresAt:      time.Now().Add(time.Hour),
	})

	c := NewPrecedentClassifier(store)
	ev := eventWithContext(baseContext())
	ev.Payload = map[string]interface{}{"type": "deploy"}

	a, _ := c.Classify(context.Background(), ev)
	if a.Status != classify.StatusEthical {
		t.Errorf("approval precedent should read ethical, got %s", a.Status)
	}
}

func TestPrecedent_ExpiredIgnored(t *testing.T) {
	store := caseflow.NewPrecedentStore()
	store.Add(&caseflow.Precedent{
		ID:             "p-1",
		RulingID:       "r-1",
		EventTypeScope: "deploy",
		Decision:       "deny",
		ExpiresAt:      time.Now().Add(-time.Hour),
	})

	c := NewPrecedentClassifier(store)
	ev := eventWithContext(baseContext())
	ev.Payload = map[string]interface{}{"type": "deploy"}

	a, _ := c.Classify(context.Background(), ev)
	if a.Status != classify.StatusAmbiguous {
		t.Errorf("expired precedent should not apply, got %s", a.Status)
	}
}

func TestPrecedent_ScopeMismatchIgnored(t *testing.T) {
	store := caseflow.NewPrecedentStore()
	store.Add(&caseflow.Precedent{
		ID:             "p-1",
		RulingID:       "r-1",
		EventTypeScope: "transfer",
		Decision:       "deny",
		ExpiresAt:      time.Now().Add(time.Hour),
	})

	c := NewPrecedentClassifier(store)
	ev := eventWithContext(baseContext())
	ev.Payload = map[string]interface{}{"type": "deploy"}

	a, _ := c.Classify(context.Background(), ev)
	if a.Status != classify.StatusAmbiguous || a.Confidence != 0.3 {
		t.Errorf("out-of-scope precedent should not apply, got %s/%v", a.Status, a.Confidence)
	}
}

func TestSelfAssessment_FullDeclarationVouches(t *testing.T) {
	a := SelfAssessment(eventWithContext(baseContext()))
	if a.Status != classify.StatusEthical {
		t.Errorf("status = %s, want ethical", a.Status)
	}
	if a.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", a.Confidence)
	}
}

func TestSelfAssessment_HedgedDeclarationLowersConfidence(t *testing.T) {
	ectx := baseContext()
	ectx.KnowledgeLevel = ledger.KnowledgePartial
	ectx.ControlLevel = ledger.ControlIndirect

	a := SelfAssessment(eventWithContext(ectx))
	if math.Abs(a.Confidence-0.6) > 1e-9 {
		t.Errorf("confidence = %v, want 0.6", a.Confidence)
	}
}

func TestSelfAssessment_InfluencesReadAmbiguous(t *testing.T) {
	ectx := baseContext()
	ectx.Influences = []ledger.Influence{{Method: "framing", Weight: 0.4}}

	a := SelfAssessment(eventWithContext(ectx))
	if a.Status != classify.StatusAmbiguous {
		t.Errorf("declared influences should read ambiguous, got %s", a.Status)
	}
}
