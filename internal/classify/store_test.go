package classify

import (
	"errors"
	"testing"
)

type fakeIndex map[string]bool

func (f fakeIndex) Has(eventID string) bool { return f[eventID] }

func validClassification(eventID, agentID string) Classification {
	return Classification{
		EventID:    eventID,
		AgentID:    agentID,
		Status:     StatusEthical,
		Confidence: 0.8,
		Risk:       0.2,
		Reasoning:  "routine",
	}
}

func TestSubmit_UnknownEventRejected(t *testing.T) {
	s := NewStore(fakeIndex{})
	err := s.Submit(validClassification("missing", "agent-1"))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestSubmit_DuplicateAgentRejected(t *testing.T) {
	s := NewStore(fakeIndex{"ev-1": true})

	if err := s.Submit(validClassification("ev-1", "agent-1")); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	second := validClassification("ev-1", "agent-1")
	second.Status = StatusUnethical
	err := s.Submit(second)
	if !errors.Is(err, ErrDuplicateClassification) {
		t.Fatalf("expected ErrDuplicateClassification, got %v", err)
	}

	// First submission wins.
	cs := s.ForEvent("ev-1")
	if len(cs) != 1 {
		t.Fatalf("stored %d classifications, want 1", len(cs))
	}
	if cs[0].Status != StatusEthical {
		t.Errorf("original classification was overwritten")
	}
}

func TestSubmit_DifferentAgentsOnSameEvent(t *testing.T) {
	s := NewStore(fakeIndex{"ev-1": true})
	if err := s.Submit(validClassification("ev-1", "agent-1")); err != nil {
		t.Fatalf("agent-1 submit failed: %v", err)
	}
	if err := s.Submit(validClassification("ev-1", "agent-2")); err != nil {
		t.Fatalf("agent-2 submit failed: %v", err)
	}
	if s.Count("ev-1") != 2 {
		t.Errorf("count = %d, want 2", s.Count("ev-1"))
	}
}

func TestSubmit_RangeValidation(t *testing.T) {
	s := NewStore(fakeIndex{"ev-1": true})

	bad := validClassification("ev-1", "agent-1")
	bad.Confidence = 1.2
	if err := s.Submit(bad); err == nil {
		t.Error("confidence above 1 should be rejected")
	}

	bad = validClassification("ev-1", "agent-1")
	bad.Risk = -0.1
	if err := s.Submit(bad); err == nil {
		t.Error("negative risk should be rejected")
	}

	bad = validClassification("ev-1", "agent-1")
	bad.Status = "heinous"
	if err := s.Submit(bad); err == nil {
		t.Error("unknown status should be rejected")
	}
}

func TestSubmit_SetsTimestamp(t *testing.T) {
	s := NewStore(fakeIndex{"ev-1": true})
	if err := s.Submit(validClassification("ev-1", "agent-1")); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if s.ForEvent("ev-1")[0].Timestamp.IsZero() {
		t.Error("timestamp should be stamped on submit")
	}
}
