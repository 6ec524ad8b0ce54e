package violation

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRecord_StampsIdentityAndTime(t *testing.T) {
	tr := NewTracker(zap.NewNop())

	v := tr.Record(TypeMissingContext, SeverityBlocking, "agent-1", "no context supplied")
	if v.ID == "" {
		t.Error("violation should get an ID")
	}
	if v.Timestamp.IsZero() {
		t.Error("violation should get a timestamp")
	}
	if len(tr.All()) != 1 {
		t.Errorf("tracker holds %d records, want 1", len(tr.All()))
	}
}

func TestQueries_FilterByAgentAndType(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	tr.Record(TypeMissingContext, SeverityBlocking, "agent-1", "a")
	tr.Record(TypeUnregisteredAgent, SeverityBlocking, "agent-2", "b")
	tr.Record(TypeAudit, SeverityAudit, "agent-1", "c")

	if got := tr.ByAgent("agent-1"); len(got) != 2 {
		t.Errorf("agent-1 has %d violations, want 2", len(got))
	}
	if got := tr.ByType(TypeUnregisteredAgent); len(got) != 1 {
		t.Errorf("unregistered_agent count = %d, want 1", len(got))
	}
	if got := tr.ByType(TypeChainBroken); len(got) != 0 {
		t.Errorf("chain_broken count = %d, want 0", len(got))
	}
}

func TestWindow_HalfOpenInterval(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	v := tr.Record(TypeAudit, SeverityAudit, "", "timeout")

	from := v.Timestamp.Add(-time.Second)
	to := v.Timestamp.Add(time.Second)
	if got := tr.Window(from, to); len(got) != 1 {
		t.Errorf("in-window count = %d, want 1", len(got))
	}
	if got := tr.Window(to, to.Add(time.Hour)); len(got) != 0 {
		t.Errorf("out-of-window count = %d, want 0", len(got))
	}
	// Left edge is inclusive.
	if got := tr.Window(v.Timestamp, to); len(got) != 1 {
		t.Errorf("left-edge count = %d, want 1", len(got))
	}
}

func TestGenerateReport_Aggregates(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	tr.Record(TypeMissingContext, SeverityBlocking, "agent-1", "a")
	tr.Record(TypeMissingContext, SeverityBlocking, "agent-1", "b")
	tr.Record(TypeAudit, SeverityAudit, "", "c")

	r := tr.GenerateReport()
	if r.Total != 3 {
		t.Errorf("total = %d, want 3", r.Total)
	}
	if r.ByType[TypeMissingContext] != 2 {
		t.Errorf("missing_context count = %d, want 2", r.ByType[TypeMissingContext])
	}
	if r.BySeverity[SeverityBlocking] != 2 {
		t.Errorf("blocking count = %d, want 2", r.BySeverity[SeverityBlocking])
	}
	if r.ByAgent["agent-1"] != 2 {
		t.Errorf("agent-1 count = %d, want 2", r.ByAgent["agent-1"])
	}
	if _, ok := r.ByAgent[""]; ok {
		t.Error("anonymous records should not appear in the agent breakdown")
	}
}
