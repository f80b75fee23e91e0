package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atinyakov/commlog/internal/models"
)

// PostgresAuditRepository appends access audit entries. Entries are never
// updated and outlive the log they reference.
type PostgresAuditRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuditRepository creates a PostgresAuditRepository using the provided *sql.DB.
func NewPostgresAuditRepository(db *sql.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{DB: db}
}

// Record inserts a single audit entry.
func (r *PostgresAuditRepository) Record(ctx context.Context, e models.AccessAuditEntry) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO log_access (id, user_id, log_id, action, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.UserID, e.LogID, string(e.Action), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByLog returns the audit entries of a log, oldest first.
func (r *PostgresAuditRepository) ListByLog(ctx context.Context, logID string) ([]models.AccessAuditEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, log_id, action, created_at
		  FROM log_access
		 WHERE log_id = $1
		 ORDER BY created_at
	`, logID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.AccessAuditEntry, 0)
	for rows.Next() {
		var (
			e      models.AccessAuditEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.LogID, &action, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = models.AuditAction(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
