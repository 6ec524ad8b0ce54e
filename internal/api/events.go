package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arbiterhq/arbiter/internal/caseflow"
	"github.com/arbiterhq/arbiter/internal/classify"
	"github.com/arbiterhq/arbiter/internal/enforce"
	"github.com/arbiterhq/arbiter/internal/ledger"
	"github.com/arbiterhq/arbiter/internal/violation"
	"go.uber.org/zap"
)

// handleSubmitEvent implements POST /v1/events: the full enforcement
// pipeline around a no-op action body. SDKs embedding the library wrap real
// functions; over the wire the governed side effect is the submission
// itself.
func (d *Dependencies) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	var req SubmitEventRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Payload == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "payload is required"})
		return
	}
	if len(req.Context) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "context is required"})
		return
	}

	actor := actorFromContext(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing actor context"})
		return
	}

	// Wire-level schema check first, so malformed contexts are rejected
	// with field detail and a violation record before any decode guessing.
	if err := d.Ingress.Validate(req.Context); err != nil {
		d.Violations.Record(violation.TypeIncompleteContext, violation.SeverityBlocking, actor.ID, err.Error())
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResp{Detail: err.Error()})
		return
	}

	var ectx ledger.Context
	if err := json.Unmarshal(req.Context, &ectx); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "context decode failed: " + err.Error()})
		return
	}

	decision, err := d.Enforcer.Do(r.Context(), actor.ID, req.Payload, ectx, noopAction)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrContextIncomplete):
			writeJSON(w, http.StatusUnprocessableEntity, ErrorResp{Detail: err.Error()})
		case errors.Is(err, enforce.ErrDecisionRejected):
			writeJSON(w, http.StatusForbidden, ErrorResp{Detail: err.Error()})
		case errors.Is(err, ledger.ErrChainBroken):
			writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: err.Error()})
		default:
			d.Logger.Error("event submission failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "event submission failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, decisionResp(decision))
}

// noopAction is the wrapped body for wire submissions.
func noopAction(_ context.Context, _ map[string]interface{}, _ ledger.Context) (interface{}, error) {
	return nil, nil
}

func decisionResp(d *enforce.Decision) DecisionResp {
	resp := DecisionResp{
		RequestID:       d.RequestID,
		AppendStatus:    string(d.AppendStatus),
		Gate:            GateResp{Decision: d.Gate.Decision.String(), Reason: d.Gate.Reason, Throttle: d.Gate.Throttle},
		Executed:        d.Executed,
		Classifications: d.Classifications,
		Escalated:       d.Escalated,
	}
	if d.Event != nil {
		resp.EventID = d.Event.ID
		resp.EventIndex = d.Event.Index
	}
	if d.DivergenceKnown {
		score := d.Divergence
		resp.Divergence = &score
	}
	if d.Case != nil {
		resp.CaseID = d.Case.ID
		resp.CaseStatus = string(d.Case.Status)
	}
	return resp
}

// handleSubmitClassification implements POST /v1/classifications. The agent
// identity comes from the authenticated key; an agent can never classify on
// another's behalf.
func (d *Dependencies) handleSubmitClassification(w http.ResponseWriter, r *http.Request) {
	var req SubmitClassificationRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.EventID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "event_id is required"})
		return
	}

	actor := actorFromContext(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing actor context"})
		return
	}

	err := d.Classifications.Submit(classify.Classification{
		EventID:    req.EventID,
		AgentID:    actor.ID,
		Status:     classify.Status(req.Status),
		Confidence: req.Confidence,
		Risk:       req.Risk,
		Reasoning:  req.Reasoning,
	})
	switch {
	case err == nil:
	case errors.Is(err, classify.ErrUnknownEvent):
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: err.Error()})
		return
	case errors.Is(err, classify.ErrDuplicateClassification):
		d.Violations.Record(violation.TypeDuplicateClassification, violation.SeverityBlocking, actor.ID, err.Error())
		writeJSON(w, http.StatusConflict, ErrorResp{Detail: err.Error()})
		return
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: err.Error()})
		return
	}

	// A new classification may flip the ethics gate for the event's case.
	cs := d.Classifications.ForEvent(req.EventID)
	if len(cs) >= 2 {
		score, _ := classify.Divergence(cs)
		escalate := classify.ShouldEscalate(cs, d.Threshold)
		agents := make([]string, 0, len(cs))
		for _, c := range cs {
			agents = append(agents, c.AgentID)
		}
		d.Cases.Conclude(r.Context(), req.EventID, escalate, caseflow.EscalationPayload{
			EventID:    req.EventID,
			Divergence: score,
			AgentIDs:   agents,
			Reason:     "ethics gate: divergence or unethical verdict",
		})
	}

	writeJSON(w, http.StatusCreated, ConsensusResp{
		EventID:         req.EventID,
		Classifications: classificationResps(cs),
		Divergence:      divergencePtr(cs),
		Escalates:       classify.ShouldEscalate(cs, d.Threshold),
	})
}

func classificationResps(cs []*classify.Classification) []ClassificationResp {
	out := make([]ClassificationResp, 0, len(cs))
	for _, c := range cs {
		out = append(out, ClassificationResp{
			EventID:    c.EventID,
			AgentID:    c.AgentID,
			Status:     string(c.Status),
			Confidence: c.Confidence,
			Risk:       c.Risk,
			Reasoning:  c.Reasoning,
			Timestamp:  c.Timestamp,
		})
	}
	return out
}

func divergencePtr(cs []*classify.Classification) *float64 {
	if score, ok := classify.Divergence(cs); ok {
		return &score
	}
	return nil
}
