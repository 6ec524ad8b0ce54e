package classifiers

import (
	"context"
	"fmt"
	"time"

	"github.com/arbiterhq/arbiter/internal/caseflow"
	"github.com/arbiterhq/arbiter/internal/classify"
	"github.com/arbiterhq/arbiter/internal/ledger"
)

// PrecedentClassifier consults unexpired precedents scoped to the event's
// type. Precedents are advisory: a matching ruling shifts this classifier's
// assessment, it never forces the ethics gate by itself.
type PrecedentClassifier struct {
	precedents *caseflow.PrecedentStore
}

func NewPrecedentClassifier(precedents *caseflow.PrecedentStore) *PrecedentClassifier {
	return &PrecedentClassifier{precedents: precedents}
}

func (c *PrecedentClassifier) Name() string {
	return "precedent"
}

func (c *PrecedentClassifier) Classify(_ context.Context, ev *ledger.Event) (*classify.Assessment, error) {
	eventType := EventType(ev)
	matches := c.precedents.ActiveFor(eventType, time.Now().UTC())
	if len(matches) == 0 {
		// No precedent: weak, neutral assessment.
		return &classify.Assessment{
			Status:     classify.StatusAmbiguous,
			Confidence: 0.3,
			Risk:       0.5,
			Reasoning:  "no applicable precedent",
		}, nil
	}

	// Most recent ruling wins when precedents conflict.
	latest := matches[len(matches)-1]

	assessment := &classify.Assessment{
		Status:     classify.StatusAmbiguous,
		Confidence: 0.6,
		Risk:       0.5,
		Reasoning:  fmt.Sprintf("precedent %s (ruling %s): %s", latest.ID, latest.RulingID, latest.Decision),
	}
	switch latest.Decision {
	case "approve", "approved", "permit":
		assessment.Status = classify.StatusEthical
		assessment.Risk = 0.2
	case "deny", "denied", "prohibit":
		assessment.Status = classify.StatusUnethical
		assessment.Risk = 0.8
	}
	return assessment, nil
}

// EventType extracts the event-type scope key from the payload's "type"
// field. Events without one fall into the empty scope.
func EventType(ev *ledger.Event) string {
	if t, ok := ev.Payload["type"].(string); ok {
		return t
	}
	return ""
}
