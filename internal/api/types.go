package api

import (
	"encoding/json"
	"time"
)

// --- POST /v1/events request/response ---

// SubmitEventRequest is the JSON body for POST /v1/events. Context is kept
// raw so the ingress schema validates the exact wire bytes.
type SubmitEventRequest struct {
	Payload map[string]interface{} `json:"payload"`
	Context json.RawMessage        `json:"context"`
}

// GateResp mirrors the legitimacy gate outcome.
type GateResp struct {
	Decision string  `json:"decision"`
	Reason   string  `json:"reason,omitempty"`
	Throttle float64 `json:"throttle,omitempty"`
}

// DecisionResp is the response for POST /v1/events.
type DecisionResp struct {
	RequestID       string   `json:"request_id"`
	EventID         string   `json:"event_id"`
	EventIndex      int      `json:"event_index"`
	AppendStatus    string   `json:"append_status"`
	Gate            GateResp `json:"gate"`
	Executed        bool     `json:"executed"`
	Classifications int      `json:"classifications"`
	Divergence      *float64 `json:"divergence"`
	Escalated       bool     `json:"escalated"`
	CaseID          string   `json:"case_id,omitempty"`
	CaseStatus      string   `json:"case_status,omitempty"`
}

// --- POST /v1/classifications ---

// SubmitClassificationRequest is the JSON body for POST /v1/classifications.
// The agent identity comes from the authenticated key, never the body.
type SubmitClassificationRequest struct {
	EventID    string  `json:"event_id"`
	Status     string  `json:"ethical_status"`
	Confidence float64 `json:"confidence"`
	Risk       float64 `json:"risk_estimate"`
	Reasoning  string  `json:"reasoning"`
}

// ClassificationResp mirrors one stored classification.
type ClassificationResp struct {
	EventID    string    `json:"event_id"`
	AgentID    string    `json:"agent_id"`
	Status     string    `json:"ethical_status"`
	Confidence float64   `json:"confidence"`
	Risk       float64   `json:"risk_estimate"`
	Reasoning  string    `json:"reasoning"`
	Timestamp  time.Time `json:"timestamp"`
}

// --- GET /v1/consensus/{event_id} ---

// ConsensusResp summarizes the assessment set for one event.
type ConsensusResp struct {
	EventID         string               `json:"event_id"`
	Classifications []ClassificationResp `json:"classifications"`
	Divergence      *float64             `json:"divergence"`
	Escalates       bool                 `json:"escalates"`
}

// --- Cases & rulings ---

// CaseResp mirrors a governance case.
type CaseResp struct {
	ID          string     `json:"id"`
	EventID     string     `json:"event_id"`
	Status      string     `json:"status"`
	OpenedAt    time.Time  `json:"opened_at"`
	EscalatedAt *time.Time `json:"escalated_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	RulingID    string     `json:"ruling_id,omitempty"`
}

// RulingRequest is the JSON body for POST /v1/cases/{case_id}/ruling.
type RulingRequest struct {
	Decision          string  `json:"decision"`
	PrecedentFlag     bool    `json:"precedent_flag"`
	PrecedentScope    string  `json:"precedent_scope,omitempty"`
	PrecedentTTLHours int     `json:"precedent_ttl_hours,omitempty"`
	AgentID           string  `json:"agent_id,omitempty"`
	LegitimacyDelta   float64 `json:"legitimacy_delta,omitempty"`
}

// RulingResp mirrors a recorded ruling.
type RulingResp struct {
	ID            string    `json:"id"`
	CaseID        string    `json:"case_id"`
	HumanID       string    `json:"human_id"`
	Decision      string    `json:"decision"`
	PrecedentFlag bool      `json:"precedent_flag"`
	CreatedAt     time.Time `json:"created_at"`
}

// --- Chain verification ---

// ChainVerifyResp is the response for GET /v1/chain/verify.
type ChainVerifyResp struct {
	OK     bool  `json:"ok"`
	Length int   `json:"length"`
	Breaks []int `json:"breaks"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}
