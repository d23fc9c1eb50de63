package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AddRiskAssessment inserts an assessment and its detail rows.
func (t *Tx) AddRiskAssessment(ctx context.Context, a *RiskAssessment) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO risk_assessments (client_id, overall_score, initial_level, overall_level, logic_applied, sme_assessment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ClientID, a.OverallScore, a.InitialLevel, a.OverallLevel, a.LogicApplied, a.SMEAssessment, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert risk assessment: %w", err)
	}
	a.ID, _ = res.LastInsertId()

	for _, d := range a.Details {
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO risk_details (assessment_id, risk_type, element_name, element_value, score, flag, local_rule)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, d.RiskType, d.ElementName, d.ElementValue, d.Score, d.Flag, d.LocalRule,
		)
		if err != nil {
			return fmt.Errorf("insert risk detail: %w", err)
		}
	}
	return nil
}

// LatestRiskAssessment returns the most recent assessment for a client, with
// details, or ErrNotFound.
func (s *Store) LatestRiskAssessment(ctx context.Context, clientID int64) (*RiskAssessment, error) {
	var a RiskAssessment
	err := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, overall_score, initial_level, overall_level, logic_applied, sme_assessment, created_at
		 FROM risk_assessments WHERE client_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, clientID,
	).Scan(&a.ID, &a.ClientID, &a.OverallScore, &a.InitialLevel, &a.OverallLevel, &a.LogicApplied, &a.SMEAssessment, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("risk assessment for client %d: %w", clientID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get risk assessment: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT risk_type, element_name, element_value, score, flag, local_rule
		 FROM risk_details WHERE assessment_id = ? ORDER BY rowid`, a.ID)
	if err != nil {
		return nil, fmt.Errorf("get risk details: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d RiskDetail
		if err := rows.Scan(&d.RiskType, &d.ElementName, &d.ElementValue, &d.Score, &d.Flag, &d.LocalRule); err != nil {
			return nil, fmt.Errorf("scan risk detail: %w", err)
		}
		a.Details = append(a.Details, d)
	}
	return &a, rows.Err()
}
