package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"propertyleads/internal/model"
)

const leadColumns = `
	id, name, phone, budget, property_interest, lead_score, ai_summary, context,
	source, thread_id, assigned_agent_id, assigned_at, status, version,
	created_at, updated_at`

// GetLead retrieves a lead by id; a missing lead is (nil, nil)
func (r *PostgresRepository) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	return r.getLead(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
}

// FindLeadByThread retrieves the lead captured for a conversation thread
func (r *PostgresRepository) FindLeadByThread(ctx context.Context, threadID string) (*model.Lead, error) {
	return r.getLead(ctx, `SELECT `+leadColumns+` FROM leads WHERE thread_id = $1`, threadID)
}

func (r *PostgresRepository) getLead(ctx context.Context, query string, arg interface{}) (*model.Lead, error) {
	var lead model.Lead
	if err := r.db.GetContext(ctx, &lead, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

// UpsertLeadByThread inserts the lead or merges it into the row that already
// carries its thread id. Blank incoming fields never overwrite stored values;
// the context snapshot is always replaced.
func (r *PostgresRepository) UpsertLeadByThread(ctx context.Context, lead *model.Lead) (string, bool, error) {
	if lead.ThreadID == nil || *lead.ThreadID == "" {
		return "", false, fmt.Errorf("upsert requires a thread id")
	}

	query := `
		INSERT INTO leads (
			id, name, phone, budget, property_interest, lead_score, ai_summary,
			context, source, thread_id, status, version, created_at, updated_at
		) VALUES (
			:id, :name, :phone, :budget, :property_interest, :lead_score, :ai_summary,
			:context, :source, :thread_id, :status, 1, NOW(), NOW()
		)
		ON CONFLICT (thread_id) DO UPDATE SET
			name              = COALESCE(NULLIF(EXCLUDED.name, ''), leads.name),
			phone             = COALESCE(NULLIF(EXCLUDED.phone, ''), leads.phone),
			budget            = COALESCE(NULLIF(EXCLUDED.budget, ''), leads.budget),
			property_interest = COALESCE(NULLIF(EXCLUDED.property_interest, ''), leads.property_interest),
			lead_score        = COALESCE(NULLIF(EXCLUDED.lead_score, ''), leads.lead_score),
			ai_summary        = COALESCE(NULLIF(EXCLUDED.ai_summary, ''), leads.ai_summary),
			context           = EXCLUDED.context,
			version           = leads.version + 1,
			updated_at        = NOW()
		RETURNING id, (xmax = 0) AS inserted
	`

	rows, err := r.db.NamedQueryContext(ctx, query, lead)
	if err != nil {
		return "", false, fmt.Errorf("failed to upsert lead: %w", err)
	}
	defer rows.Close()

	var result struct {
		ID       string `db:"id"`
		Inserted bool   `db:"inserted"`
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", false, fmt.Errorf("failed to upsert lead: %w", err)
		}
		return "", false, fmt.Errorf("failed to upsert lead: no row returned")
	}
	if err := rows.StructScan(&result); err != nil {
		return "", false, fmt.Errorf("failed to scan upserted lead: %w", err)
	}
	return result.ID, result.Inserted, nil
}

// CreateLead inserts a lead that has no conversation thread
func (r *PostgresRepository) CreateLead(ctx context.Context, lead *model.Lead) error {
	query := `
		INSERT INTO leads (
			id, name, phone, budget, property_interest, lead_score, ai_summary,
			context, source, thread_id, status, version, created_at, updated_at
		) VALUES (
			:id, :name, :phone, :budget, :property_interest, :lead_score, :ai_summary,
			:context, :source, :thread_id, :status, 1, NOW(), NOW()
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, lead); err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

// UpdateLeadIfVersion writes the lead's status and assignment binding only if the
// stored row still has lead.Version. Returns false when another writer got there first.
func (r *PostgresRepository) UpdateLeadIfVersion(ctx context.Context, lead *model.Lead) (bool, error) {
	query := `
		UPDATE leads
		SET status = $3, assigned_agent_id = $4, assigned_at = $5,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`
	res, err := r.db.ExecContext(ctx, query, lead.ID, lead.Version, lead.Status, lead.AssignedAgentID, lead.AssignedAt)
	if err != nil {
		return false, fmt.Errorf("failed to update lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		lead.Version++
		return true, nil
	}
	return false, nil
}

// RerouteLead binds the lead to agentID as of at, regardless of its current state.
// A missing lead is (nil, nil).
func (r *PostgresRepository) RerouteLead(ctx context.Context, id string, agentID int64, at time.Time) (*model.Lead, error) {
	query := `
		UPDATE leads
		SET assigned_agent_id = $2, assigned_at = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + leadColumns
	var lead model.Lead
	if err := r.db.GetContext(ctx, &lead, query, id, agentID, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to reroute lead: %w", err)
	}
	return &lead, nil
}

// ClearExpiredBindings unbinds every new lead assigned before cutoff in one statement.
// Rows locked by a concurrent writer are skipped and picked up by a later sweep.
func (r *PostgresRepository) ClearExpiredBindings(ctx context.Context, cutoff time.Time) ([]model.ExpiredBinding, error) {
	query := `
		WITH expired AS (
			SELECT id, assigned_agent_id
			FROM leads
			WHERE status = 'new'
				AND assigned_agent_id IS NOT NULL
				AND assigned_at IS NOT NULL
				AND assigned_at < $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE leads l
		SET assigned_agent_id = NULL, assigned_at = NULL,
			version = l.version + 1, updated_at = NOW()
		FROM expired e
		WHERE l.id = e.id
			AND l.status = 'new'
			AND l.assigned_at < $1
		RETURNING l.id, e.assigned_agent_id
	`
	var cleared []model.ExpiredBinding
	if err := r.db.SelectContext(ctx, &cleared, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to clear expired bindings: %w", err)
	}
	return cleared, nil
}

// ListAgentLeads returns the leads bound to agentID, newest first, optionally by status
func (r *PostgresRepository) ListAgentLeads(ctx context.Context, agentID int64, status string) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE assigned_agent_id = $1`
	args := []interface{}{agentID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var leads []model.Lead
	if err := r.db.SelectContext(ctx, &leads, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list agent leads: %w", err)
	}
	return leads, nil
}
