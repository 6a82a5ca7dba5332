package repository

import (
	"context"
	"fmt"

	"propertyleads/internal/model"

	"github.com/jmoiron/sqlx"
)

// LoadTurns returns the most recent limit turns of a thread in ascending order
func (r *PostgresRepository) LoadTurns(ctx context.Context, threadID string, limit int) ([]model.Turn, error) {
	query := `
		SELECT id, thread_id, role, content, created_at
		FROM (
			SELECT id, thread_id, role, content, created_at
			FROM chat_messages
			WHERE thread_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC
	`
	var turns []model.Turn
	if err := r.db.SelectContext(ctx, &turns, query, threadID, limit); err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}
	return turns, nil
}

// AppendTurns stores the turns of one exchange atomically
func (r *PostgresRepository) AppendTurns(ctx context.Context, threadID string, turns []model.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `INSERT INTO chat_messages (thread_id, role, content) VALUES ($1, $2, $3)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, t := range turns {
			if _, err := stmt.ExecContext(ctx, threadID, t.Role, t.Content); err != nil {
				return fmt.Errorf("failed to append %s turn: %w", t.Role, err)
			}
		}
		return nil
	})
}
