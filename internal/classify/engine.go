package classify

import (
	"context"
	"time"

	"github.com/arbiterhq/arbiter/internal/ledger"
	"go.uber.org/zap"
)

// Classifier is the interface every automated classifier must implement.
// Implementations must respect context deadlines and return quickly.
type Classifier interface {
	// Name returns the classifier's unique agent identifier.
	Name() string

	// Classify assesses the given event. Must respect ctx deadline.
	Classify(ctx context.Context, ev *ledger.Event) (*Assessment, error)
}

// Assessment is the outcome of a single classifier run.
type Assessment struct {
	Status     Status
	Confidence float64
	Risk       float64
	Reasoning  string
}

// Engine fans an event out to all registered classifiers in parallel and
// collects their assessments. Classifiers that exceed the timeout are
// skipped.
type Engine struct {
	classifiers []Classifier
	timeout     time.Duration
	logger      *zap.Logger
}

// NewEngine creates an engine with the given classifiers and timeout.
func NewEngine(classifiers []Classifier, timeout time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		classifiers: classifiers,
		timeout:     timeout,
		logger:      logger,
	}
}

// classifierOutput holds a single classifier's result alongside its name.
type classifierOutput struct {
	name   string
	result *Assessment
	err    error
}

// Run evaluates the event with every classifier and returns the completed
// classifications, keyed by classifier name as the agent ID.
//
// Each goroutine sends its result through a buffered channel sized for the
// full classifier set, so late finishers park their sends harmlessly and the
// channel is collected once all references are gone. When the deadline
// fires, Run returns whatever has been collected.
func (e *Engine) Run(ctx context.Context, ev *ledger.Event) []Classification {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ch := make(chan classifierOutput, len(e.classifiers))

	for _, cl := range e.classifiers {
		go func(cl Classifier) {
			result, err := cl.Classify(ctx, ev)
			ch <- classifierOutput{name: cl.Name(), result: result, err: err}
		}(cl)
	}

	collected := make([]classifierOutput, 0, len(e.classifiers))
	remaining := len(e.classifiers)
	for remaining > 0 {
		select {
		case out := <-ch:
			collected = append(collected, out)
			remaining--
		case <-ctx.Done():
			e.logger.Warn("classifier timeout exceeded, returning partial assessments",
				zap.Duration("timeout", e.timeout),
				zap.String("event_id", ev.ID),
			)
			remaining = 0
		}
	}

	now := time.Now().UTC()
	out := make([]Classification, 0, len(collected))
	for _, c := range collected {
		if c.err != nil {
			e.logger.Warn("classifier error",
				zap.String("classifier", c.name),
				zap.String("event_id", ev.ID),
				zap.Error(c.err),
			)
			continue
		}
		if c.result == nil {
			continue
		}
		out = append(out, Classification{
			EventID:    ev.ID,
			AgentID:    c.name,
			Status:     c.result.Status,
			Confidence: c.result.Confidence,
			Risk:       c.result.Risk,
			Reasoning:  c.result.Reasoning,
			Timestamp:  now,
		})
	}
	return out
}
