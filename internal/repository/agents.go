package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"propertyleads/internal/model"
)

// GetAgent retrieves an agent by id; a missing agent is (nil, nil)
func (r *PostgresRepository) GetAgent(ctx context.Context, id int64) (*model.Agent, error) {
	var agent model.Agent
	query := `SELECT id, agent_name, status, routing_enabled FROM agents WHERE id = $1`
	if err := r.db.GetContext(ctx, &agent, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return &agent, nil
}
