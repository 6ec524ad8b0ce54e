package ledger

import (
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func fullContext() Context {
	agency := true
	return Context{
		Causation:      CausationAIDecision,
		AgencyPresent:  &agency,
		DutyOfCare:     DutyHigh,
		KnowledgeLevel: KnowledgeFull,
		ControlLevel:   ControlDirect,
	}
}

func TestAppend_FirstEntryLinksToGenesis(t *testing.T) {
	l := New(zap.NewNop())

	ev, status, err := l.Append(map[string]interface{}{"type": "deploy"}, "agent-1", fullContext())
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if status != StatusAppended {
		t.Errorf("expected appended, got %s", status)
	}
	if ev.PrevHash != GenesisHash {
		t.Errorf("first entry should link to genesis, got %s", ev.PrevHash)
	}
	if ev.Index != 0 {
		t.Errorf("first entry index = %d, want 0", ev.Index)
	}
	if len(ev.ID) != 64 {
		t.Errorf("event ID should be a sha256 hex digest, got %q", ev.ID)
	}
}

func TestAppend_ChainsToPreviousHash(t *testing.T) {
	l := New(zap.NewNop())

	first, _, err := l.Append(map[string]interface{}{"n": 1.0}, "agent-1", fullContext())
	if err != nil {
		t.Fatalf("append 1 failed: %v", err)
	}
	second, _, err := l.Append(map[string]interface{}{"n": 2.0}, "agent-1", fullContext())
	if err != nil {
		t.Fatalf("append 2 failed: %v", err)
	}
	if second.PrevHash != first.Hash {
		t.Errorf("second entry prev = %s, want %s", second.PrevHash, first.Hash)
	}
	if breaks := l.VerifyChain(); len(breaks) != 0 {
		t.Errorf("fresh chain should verify, got breaks at %v", breaks)
	}
}

func TestAppend_DuplicatePayloadDoesNotGrowChain(t *testing.T) {
	l := New(zap.NewNop())
	payload := map[string]interface{}{"type": "transfer", "amount": 100.0}

	first, status, err := l.Append(payload, "agent-1", fullContext())
	if err != nil || status != StatusAppended {
		t.Fatalf("first append: status=%s err=%v", status, err)
	}

	// Same logical payload, different key insertion order and different agent.
	dup := map[string]interface{}{"amount": 100.0, "type": "transfer"}
	second, status, err := l.Append(dup, "agent-2", fullContext())
	if err != nil {
		t.Fatalf("duplicate append errored: %v", err)
	}
	if status != StatusDuplicate {
		t.Errorf("expected duplicate, got %s", status)
	}
	if second.ID != first.ID {
		t.Errorf("duplicate should return the original event")
	}
	if l.Len() != 1 {
		t.Errorf("chain length = %d after duplicate, want 1", l.Len())
	}
}

func TestAppend_IncompleteContextRejected(t *testing.T) {
	l := New(zap.NewNop())
	ctx := fullContext()
	ctx.DutyOfCare = ""

	_, _, err := l.Append(map[string]interface{}{"x": 1.0}, "agent-1", ctx)
	if !errors.Is(err, ErrContextIncomplete) {
		t.Fatalf("expected ErrContextIncomplete, got %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("no event should be written on incomplete context")
	}
}

func TestContext_ValidateNamesMissingFields(t *testing.T) {
	ctx := Context{Causation: CausationNatural}
	err := ctx.Validate()
	if !errors.Is(err, ErrContextIncomplete) {
		t.Fatalf("expected ErrContextIncomplete, got %v", err)
	}
	for _, field := range []string{"agency_present", "duty_of_care", "knowledge_level", "control_level"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error should name %s, got: %v", field, err)
		}
	}
	if strings.Contains(err.Error(), "causation") {
		t.Errorf("causation was present, error should not name it: %v", err)
	}
}

func TestContext_AgencyFalseIsStillComplete(t *testing.T) {
	agency := false
	ctx := Context{
		Causation:      CausationNatural,
		AgencyPresent:  &agency,
		DutyOfCare:     DutyLow,
		KnowledgeLevel: KnowledgeNone,
		ControlLevel:   ControlNone,
	}
	if err := ctx.Validate(); err != nil {
		t.Fatalf("explicit false agency should validate: %v", err)
	}
	if ctx.Agency() {
		t.Errorf("Agency() should be false")
	}
}

func TestContext_InfluenceWeightOutOfRange(t *testing.T) {
	ctx := fullContext()
	ctx.Influences = []Influence{{Method: "framing", Weight: 1.5}}
	if err := ctx.Validate(); !errors.Is(err, ErrContextIncomplete) {
		t.Fatalf("expected ErrContextIncomplete for bad weight, got %v", err)
	}
}

func TestVerifyChain_DetectsTamperAndHalts(t *testing.T) {
	l := New(zap.NewNop())
	for i := 0; i < 3; i++ {
		if _, _, err := l.Append(map[string]interface{}{"n": float64(i)}, "agent-1", fullContext()); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	// Mutate the middle entry's payload behind the ledger's back.
	l.events[1].Payload["n"] = 99.0

	breaks := l.VerifyChain()
	if len(breaks) == 0 {
		t.Fatal("tampered chain should report breaks")
	}
	if breaks[0] != 1 {
		t.Errorf("first break at %d, want 1", breaks[0])
	}
	if !l.Halted() {
		t.Errorf("ledger should halt after a detected break")
	}

	_, _, err := l.Append(map[string]interface{}{"n": 100.0}, "agent-1", fullContext())
	if !errors.Is(err, ErrChainBroken) {
		t.Errorf("halted ledger should refuse appends, got %v", err)
	}
}

func TestVerifyChain_DetectsTimestampTamper(t *testing.T) {
	l := New(zap.NewNop())
	for i := 0; i < 3; i++ {
		if _, _, err := l.Append(map[string]interface{}{"n": float64(i)}, "agent-1", fullContext()); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	l.events[1].Timestamp = l.events[1].Timestamp.Add(-24 * time.Hour)

	breaks := l.VerifyChain()
	if len(breaks) != 1 || breaks[0] != 1 {
		t.Errorf("timestamp mutation should break index 1, got %v", breaks)
	}
}

func TestVerifyChain_DetectsInfluenceTamper(t *testing.T) {
	l := New(zap.NewNop())
	for i := 0; i < 3; i++ {
		ectx := fullContext()
		ectx.Influences = []Influence{{Method: "framing", Weight: 0.2}}
		if _, _, err := l.Append(map[string]interface{}{"n": float64(i)}, "agent-1", ectx); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	// Inflate the recorded influence weight and add a new record.
	l.events[1].Context.Influences[0].Weight = 0.9
	l.events[2].Context.Influences = append(l.events[2].Context.Influences,
		Influence{Method: "praise", Weight: 0.5})

	breaks := l.VerifyChain()
	if len(breaks) != 2 || breaks[0] != 1 || breaks[1] != 2 {
		t.Errorf("influence mutations should break indices 1 and 2, got %v", breaks)
	}
}

func TestCanonicalJSON_KeyOrderIndependent(t *testing.T) {
	a, err := canonicalJSON(map[string]interface{}{"a": 1.0, "b": map[string]interface{}{"x": true, "y": "z"}})
	if err != nil {
		t.Fatalf("canonicalJSON: %v", err)
	}
	b, err := canonicalJSON(map[string]interface{}{"b": map[string]interface{}{"y": "z", "x": true}, "a": 1.0})
	if err != nil {
		t.Fatalf("canonicalJSON: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("canonical forms differ:\n%s\n%s", a, b)
	}
}
