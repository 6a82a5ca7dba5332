package repository

import (
	"context"
	"fmt"
	"strings"

	"propertyleads/internal/model"
)

const propertyColumns = `
	id,
	COALESCE(title, '') AS title,
	COALESCE(location_name, '') AS location_name,
	COALESCE(price, 0) AS price,
	COALESCE(area_size, '') AS area_size,
	COALESCE(type, '') AS type,
	COALESCE(cover_photo, '') AS cover_photo,
	bedrooms, baths, created_at`

// QueryProperties returns catalog rows matching the non-empty predicates of f, newest first
func (r *PostgresRepository) QueryProperties(ctx context.Context, f model.FilterCriteria, limit int) ([]model.Property, error) {
	query, args := buildPropertyQuery(f, limit)

	var properties []model.Property
	if err := r.db.SelectContext(ctx, &properties, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	return properties, nil
}

// DistinctAreas returns every location name present in the catalog
func (r *PostgresRepository) DistinctAreas(ctx context.Context) ([]string, error) {
	var areas []string
	query := `
		SELECT DISTINCT location_name
		FROM properties
		WHERE location_name IS NOT NULL AND location_name <> ''
		ORDER BY location_name
	`
	if err := r.db.SelectContext(ctx, &areas, query); err != nil {
		return nil, fmt.Errorf("failed to list areas: %w", err)
	}
	return areas, nil
}

// buildPropertyQuery builds the filtered catalog SELECT and its arguments
func buildPropertyQuery(f model.FilterCriteria, limit int) (string, []interface{}) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	if area := strings.TrimSpace(f.Area); area != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("location_name ILIKE $%d", argIndex))
		args = append(args, "%"+escapeLike(area)+"%")
		argIndex++
	}
	if ptype := strings.TrimSpace(f.Type); ptype != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("type ILIKE $%d", argIndex))
		args = append(args, "%"+escapeLike(ptype)+"%")
		argIndex++
	}
	if maxPrice := f.MaxPrice(); maxPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price <= $%d", argIndex))
		args = append(args, *maxPrice)
		argIndex++
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM properties
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, propertyColumns, strings.Join(whereClauses, " AND "), argIndex)
	args = append(args, limit)

	return query, args
}

// escapeLike escapes LIKE wildcards in user-supplied text
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
