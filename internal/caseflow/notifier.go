package caseflow

import (
	"context"

	"go.uber.org/zap"
)

// EscalationPayload is the complete payload guaranteed to every notifier
// invocation. Delivery transports live outside the core.
type EscalationPayload struct {
	EventID    string   `json:"event_id"`
	Divergence float64  `json:"divergence"`
	AgentIDs   []string `json:"agent_ids"`
	Reason     string   `json:"reason"`
}

// Notifier delivers escalation notices to an external channel.
type Notifier interface {
	Notify(ctx context.Context, c *Case, payload EscalationPayload) error
}

// LogNotifier is the default Notifier: it writes the escalation to the
// structured log and nothing else.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, c *Case, payload EscalationPayload) error {
	n.logger.Warn("case escalated",
		zap.String("case_id", c.ID),
		zap.String("event_id", payload.EventID),
		zap.Float64("divergence", payload.Divergence),
		zap.Strings("agent_ids", payload.AgentIDs),
		zap.String("reason", payload.Reason),
	)
	return nil
}
