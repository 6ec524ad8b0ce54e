package classifiers

import (
	"github.com/arbiterhq/arbiter/internal/classify"
	"github.com/arbiterhq/arbiter/internal/ledger"
)

// SelfAssessment derives the acting agent's own classification from the
// context it declared at submission. The enforcement wrapper records it
// under the acting agent's ID, so it counts as one voice in the consensus
// like any other classification.
//
// An agent that declares full knowledge and direct control is vouching for
// its own action; hedged declarations lower its confidence and raise risk.
func SelfAssessment(ev *ledger.Event) classify.Assessment {
	ectx := ev.Context

	a := classify.Assessment{
		Status:     classify.StatusEthical,
		Confidence: 0.9,
		Risk:       dutyRisk[ectx.DutyOfCare] * 0.5,
		Reasoning:  "self-assessment from declared context",
	}

	if ectx.KnowledgeLevel != ledger.KnowledgeFull {
		a.Confidence -= 0.2
		a.Risk += 0.1
	}
	if ectx.ControlLevel != ledger.ControlDirect {
		a.Confidence -= 0.1
		a.Risk += 0.1
	}
	if len(ectx.Influences) > 0 {
		a.Status = classify.StatusAmbiguous
		a.Reasoning = "self-assessment with declared influence methods"
	}

	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Risk > 1 {
		a.Risk = 1
	}
	return a
}
