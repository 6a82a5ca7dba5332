package repository

import (
	"context"
	"fmt"

	"propertyleads/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// GetSettings returns the stored rows for keys; missing keys are absent from the map
func (r *PostgresRepository) GetSettings(ctx context.Context, keys ...string) (map[string]model.Setting, error) {
	var rows []model.Setting
	query := `SELECT key, value, updated_at FROM admin_settings WHERE key = ANY($1)`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(keys)); err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	out := make(map[string]model.Setting, len(rows))
	for _, row := range rows {
		out[row.Key] = row
	}
	return out, nil
}

// SetSettings upserts key/value pairs in one transaction
func (r *PostgresRepository) SetSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		for key, value := range values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO admin_settings (key, value, updated_at)
				VALUES ($1, $2, NOW())
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
			`, key, value)
			if err != nil {
				return fmt.Errorf("failed to set setting %s: %w", key, err)
			}
		}
		return nil
	})
}

// DeleteSettings removes keys so their defaults apply again
func (r *PostgresRepository) DeleteSettings(ctx context.Context, keys ...string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM admin_settings WHERE key = ANY($1)`, pq.Array(keys)); err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	return nil
}
