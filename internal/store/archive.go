package store

import (
	"context"
	"fmt"

	"github.com/arbiterhq/arbiter/internal/caseflow"
)

// SaveRuling persists an immutable ruling row.
func (s *Store) SaveRuling(ctx context.Context, r *caseflow.Ruling) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rulings (id, case_id, human_id, decision, precedent_flag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.CaseID, r.HumanID, r.Decision, r.PrecedentFlag, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("SaveRuling: %w", err)
	}
	return nil
}

// SavePrecedent persists a precedent row.
func (s *Store) SavePrecedent(ctx context.Context, p *caseflow.Precedent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO precedents (id, ruling_id, event_type_scope, decision, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.RulingID, p.EventTypeScope, p.Decision, p.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("SavePrecedent: %w", err)
	}
	return nil
}
