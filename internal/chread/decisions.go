// Package chread provides read access to the ClickHouse decision_events
// table for the dashboard query surface. The write path lives in
// internal/storage.
package chread

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the ClickHouse decision_events table.
type Reader struct {
	conn driver.Conn
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	logger.Info("clickhouse reader connected", zap.String("database", opts.Auth.Database))

	return &Reader{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// DecisionRow represents a single row from the decision_events table.
type DecisionRow struct {
	RequestID       string
	EventID         string
	EventIndex      int32
	AgentID         string
	Timestamp       time.Time
	AppendStatus    string
	GateDecision    string
	GateReason      string
	Executed        uint8
	Classifications int32
	Divergence      float32
	DivergenceKnown uint8
	Escalated       uint8
	CaseID          string
	CaseStatus      string
	ViolationType   string
	LatencyMs       float32
}

// ListDecisionsParams holds filters and pagination for decision listing.
type ListDecisionsParams struct {
	AgentID      *string
	GateDecision *string
	Escalated    *bool
	StartTime    *time.Time
	EndTime      *time.Time
	Page         int
	PageSize     int
}

const decisionColumns = "request_id, event_id, event_index, agent_id, timestamp, " +
	"append_status, gate_decision, gate_reason, executed, classifications, " +
	"divergence, divergence_known, escalated, case_id, case_status, " +
	"violation_type, latency_ms"

// ListDecisions returns paginated, filtered decision events and the total
// count.
func (r *Reader) ListDecisions(ctx context.Context, params ListDecisionsParams) ([]DecisionRow, int, error) {
	conditions := []string{"1 = 1"}
	var args []any

	if params.AgentID != nil {
		conditions = append(conditions, "agent_id = @agent_id")
		args = append(args, clickhouse.Named("agent_id", *params.AgentID))
	}
	if params.GateDecision != nil {
		conditions = append(conditions, "gate_decision = @gate_decision")
		args = append(args, clickhouse.Named("gate_decision", *params.GateDecision))
	}
	if params.Escalated != nil {
		var v uint8
		if *params.Escalated {
			v = 1
		}
		conditions = append(conditions, "escalated = @escalated")
		args = append(args, clickhouse.Named("escalated", v))
	}
	if params.StartTime != nil {
		conditions = append(conditions, "timestamp >= @start_time")
		args = append(args, clickhouse.Named("start_time", *params.StartTime))
	}
	if params.EndTime != nil {
		conditions = append(conditions, "timestamp <= @end_time")
		args = append(args, clickhouse.Named("end_time", *params.EndTime))
	}

	where := strings.Join(conditions, " AND ")
	offset := (params.Page - 1) * params.PageSize

	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM decision_events WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListDecisions count: %w", err)
	}

	dataQuery := fmt.Sprintf(
		"SELECT %s FROM decision_events WHERE %s ORDER BY timestamp DESC LIMIT @limit OFFSET @offset",
		decisionColumns, where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListDecisions query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []DecisionRow
	for rows.Next() {
		var d DecisionRow
		if err := rows.Scan(
			&d.RequestID, &d.EventID, &d.EventIndex, &d.AgentID, &d.Timestamp,
			&d.AppendStatus, &d.GateDecision, &d.GateReason, &d.Executed,
			&d.Classifications, &d.Divergence, &d.DivergenceKnown, &d.Escalated,
			&d.CaseID, &d.CaseStatus, &d.ViolationType, &d.LatencyMs,
		); err != nil {
			return nil, 0, fmt.Errorf("ListDecisions scan: %w", err)
		}
		decisions = append(decisions, d)
	}

	return decisions, int(total), rows.Err()
}

// SummaryStats holds aggregate decision counts.
type SummaryStats struct {
	TotalDecisions int `json:"total_decisions"`
	Allowed        int `json:"allowed"`
	Rejected       int `json:"rejected"`
	Throttled      int `json:"throttled"`
	Escalated      int `json:"escalated"`
}

// TimeSeriesBucket holds an hourly escalation count.
type TimeSeriesBucket struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// AgentCount holds an agent_id and its count.
type AgentCount struct {
	AgentID string `json:"agent_id"`
	Count   int    `json:"count"`
}

// Analytics holds the full analytics response.
type Analytics struct {
	Summary             SummaryStats       `json:"summary"`
	EscalationsOverTime []TimeSeriesBucket `json:"escalations_over_time"`
	TopRejectedAgents   []AgentCount       `json:"top_rejected_agents"`
	AvgDivergence       float64            `json:"avg_divergence"`
}

// GetAnalytics aggregates decision events over the given window.
func (r *Reader) GetAnalytics(ctx context.Context, start, end time.Time) (*Analytics, error) {
	out := &Analytics{}
	window := []any{
		clickhouse.Named("start_time", start),
		clickhouse.Named("end_time", end),
	}

	var total, allowed, rejected, throttled, escalated uint64
	err := r.conn.QueryRow(ctx,
		"SELECT count(), "+
			"countIf(gate_decision = 'allow'), "+
			"countIf(gate_decision = 'reject'), "+
			"countIf(gate_decision = 'throttle'), "+
			"countIf(escalated = 1) "+
			"FROM decision_events WHERE timestamp >= @start_time AND timestamp <= @end_time",
		window...,
	).Scan(&total, &allowed, &rejected, &throttled, &escalated)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics summary: %w", err)
	}
	out.Summary = SummaryStats{
		TotalDecisions: int(total),
		Allowed:        int(allowed),
		Rejected:       int(rejected),
		Throttled:      int(throttled),
		Escalated:      int(escalated),
	}

	rows, err := r.conn.Query(ctx,
		"SELECT toStartOfHour(timestamp) AS hour, count() "+
			"FROM decision_events "+
			"WHERE escalated = 1 AND timestamp >= @start_time AND timestamp <= @end_time "+
			"GROUP BY hour ORDER BY hour",
		window...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics escalations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var hour time.Time
		var count uint64
		if err := rows.Scan(&hour, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics escalations scan: %w", err)
		}
		out.EscalationsOverTime = append(out.EscalationsOverTime, TimeSeriesBucket{
			Hour:  hour.UTC().Format(time.RFC3339),
			Count: int(count),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetAnalytics escalations rows: %w", err)
	}

	agentRows, err := r.conn.Query(ctx,
		"SELECT agent_id, count() AS c FROM decision_events "+
			"WHERE gate_decision = 'reject' AND timestamp >= @start_time AND timestamp <= @end_time "+
			"GROUP BY agent_id ORDER BY c DESC LIMIT 10",
		window...,
	)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics agents: %w", err)
	}
	defer func() { _ = agentRows.Close() }()
	for agentRows.Next() {
		var a AgentCount
		var count uint64
		if err := agentRows.Scan(&a.AgentID, &count); err != nil {
			return nil, fmt.Errorf("GetAnalytics agents scan: %w", err)
		}
		a.Count = int(count)
		out.TopRejectedAgents = append(out.TopRejectedAgents, a)
	}
	if err := agentRows.Err(); err != nil {
		return nil, fmt.Errorf("GetAnalytics agents rows: %w", err)
	}

	err = r.conn.QueryRow(ctx,
		"SELECT avgIf(divergence, divergence_known = 1) "+
			"FROM decision_events WHERE timestamp >= @start_time AND timestamp <= @end_time",
		window...,
	).Scan(&out.AvgDivergence)
	if err != nil {
		return nil, fmt.Errorf("GetAnalytics divergence: %w", err)
	}

	return out, nil
}
