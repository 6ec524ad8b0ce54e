// Package classifiers holds the built-in automated classifiers that assess
// events alongside the acting agent's own classification.
package classifiers

import (
	"context"

	"github.com/arbiterhq/arbiter/internal/classify"
	"github.com/arbiterhq/arbiter/internal/ledger"
)

// dutyRisk maps the declared duty of care onto a base risk estimate.
var dutyRisk = map[ledger.DutyOfCare]float64{
	ledger.DutyCritical: 0.9,
	ledger.DutyHigh:     0.7,
	ledger.DutyMedium:   0.4,
	ledger.DutyLow:      0.2,
}

// RiskHeuristicClassifier scores an event from its declared accountability
// context: duty of care sets the base risk, acting blind or without control
// raises it, and AI-caused decisions under high duty read as ambiguous
// rather than ethical.
type RiskHeuristicClassifier struct{}

func NewRiskHeuristicClassifier() *RiskHeuristicClassifier {
	return &RiskHeuristicClassifier{}
}

func (c *RiskHeuristicClassifier) Name() string {
	return "risk_heuristic"
}

func (c *RiskHeuristicClassifier) Classify(_ context.Context, ev *ledger.Event) (*classify.Assessment, error) {
	ectx := ev.Context

	risk := dutyRisk[ectx.DutyOfCare]
	if ectx.KnowledgeLevel == ledger.KnowledgeNone {
		risk += 0.1
	}
	if ectx.ControlLevel == ledger.ControlNone {
		risk += 0.1
	}
	if risk > 1 {
		risk = 1
	}

	status := classify.StatusEthical
	confidence := 0.8
	reasoning := "declared context within tolerances"

	highDuty := ectx.DutyOfCare == ledger.DutyCritical || ectx.DutyOfCare == ledger.DutyHigh
	if ectx.Causation == ledger.CausationAIDecision && highDuty {
		status = classify.StatusAmbiguous
		confidence = 0.6
		reasoning = "autonomous decision under elevated duty of care"
	}
	if highDuty && ectx.KnowledgeLevel == ledger.KnowledgeNone {
		status = classify.StatusUnethical
		confidence = 0.7
		reasoning = "elevated duty of care with no knowledge of consequences"
	}

	return &classify.Assessment{
		Status:     status,
		Confidence: confidence,
		Risk:       risk,
		Reasoning:  reasoning,
	}, nil
}
