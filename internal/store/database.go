package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"momo-intent-backend/internal/db"
)

// DatabaseStore stores interactions in PostgreSQL
type DatabaseStore struct {
	db *db.DB
}

// NewDatabaseStore creates a new database store
func NewDatabaseStore(database *db.DB) (*DatabaseStore, error) {
	if database == nil {
		return nil, errors.New("store: database must not be nil")
	}
	return &DatabaseStore{db: database}, nil
}

// Record inserts an interaction. Re-recording the same ID is a no-op.
func (ds *DatabaseStore) Record(ctx context.Context, in Interaction) error {
	if in.ID == "" {
		return fmt.Errorf("interaction id is required")
	}

	query := `
		INSERT INTO interactions (id, query, action, label_index, confidence, variant, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	var conf sql.NullFloat64
	if in.Confidence != nil {
		conf = sql.NullFloat64{Float64: *in.Confidence, Valid: true}
	}
	_, err := ds.db.ExecContext(ctx, query, in.ID, in.Query, in.Action, in.Index, conf, in.Variant, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}

	return nil
}

// Recent returns the newest interactions first
func (ds *DatabaseStore) Recent(ctx context.Context, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, query, action, label_index, confidence, variant, created_at
		FROM interactions
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := ds.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		var conf sql.NullFloat64
		if err := rows.Scan(&in.ID, &in.Query, &in.Action, &in.Index, &conf, &in.Variant, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		if conf.Valid {
			c := conf.Float64
			in.Confidence = &c
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}

	return out, nil
}
