package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/atinyakov/commlog/internal/models"
)

// PostgresLogRepository implements the communication log store.
type PostgresLogRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresLogRepository creates a PostgresLogRepository using the provided *sql.DB.
func NewPostgresLogRepository(db *sql.DB) *PostgresLogRepository {
	return &PostgresLogRepository{DB: db}
}

const logSelect = `
	SELECT l.id, l.user_id, u.username, l.direction, l.type, l.subject, l.content,
	       l.sender, l.recipient, l.occurred_at, l.confidentiality_level, l.created_at
	  FROM communication_logs l
	  JOIN users u ON u.id = l.user_id`

const logOrder = ` ORDER BY l.occurred_at DESC, l.created_at DESC`

// likeEscaper escapes LIKE wildcards so that search terms match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereClause accumulates SQL predicates with positional arguments.
type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func buildLogFilter(f models.LogFilter) *whereClause {
	w := &whereClause{}
	if f.OwnerID != "" {
		w.add("l.user_id = ?", f.OwnerID)
	}
	if f.Direction != "" {
		w.add("l.direction = ?", string(f.Direction))
	}
	if f.Type != "" {
		w.add("l.type = ?", string(f.Type))
	}
	if f.From != nil {
		w.add("l.occurred_at >= ?", *f.From)
	}
	if f.To != nil {
		w.add("l.occurred_at <= ?", *f.To)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add("(l.subject ILIKE ? OR l.content ILIKE ?)", "%"+likeEscaper.Replace(s)+"%")
	}
	if len(f.Levels) > 0 {
		levels := make([]string, len(f.Levels))
		for i, l := range f.Levels {
			levels[i] = string(l)
		}
		w.add("l.confidentiality_level = ANY(?)", pq.Array(levels))
	}
	return w
}

// List returns the logs matching f, most recent first.
func (r *PostgresLogRepository) List(ctx context.Context, f models.LogFilter) ([]models.Log, error) {
	w := buildLogFilter(f)
	query := logSelect + w.String() + logOrder
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.Log, 0)
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return logs, nil
}

// Get returns the log with the given id or models.ErrNotFound.
func (r *PostgresLogRepository) Get(ctx context.Context, id string) (*models.Log, error) {
	row := r.DB.QueryRowContext(ctx, logSelect+` WHERE l.id = $1`, id)
	l, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return l, err
}

// Create inserts l and fills in its CreatedAt.
func (r *PostgresLogRepository) Create(ctx context.Context, l *models.Log) error {
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO communication_logs
			(id, user_id, direction, type, subject, content, sender, recipient, occurred_at, confidentiality_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, l.ID, l.UserID, string(l.Direction), string(l.Type), l.Subject, l.Content,
		l.Sender, l.Recipient, l.OccurredAt, string(l.Confidentiality)).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

// Update overwrites every mutable field of the stored log l.ID. The owner and
// creation time never change.
func (r *PostgresLogRepository) Update(ctx context.Context, l *models.Log) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE communication_logs
		   SET direction = $1, type = $2, subject = $3, content = $4, sender = $5,
		       recipient = $6, occurred_at = $7, confidentiality_level = $8
		 WHERE id = $9
	`, string(l.Direction), string(l.Type), l.Subject, l.Content, l.Sender,
		l.Recipient, l.OccurredAt, string(l.Confidentiality), l.ID)
	if err != nil {
		return fmt.Errorf("update log: %w", err)
	}
	return expectOneRow(res, "update log")
}

// Delete removes the log with the given id or returns models.ErrNotFound.
func (r *PostgresLogRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM communication_logs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete log: %w", err)
	}
	return expectOneRow(res, "delete log")
}

// Stats aggregates the logs matching f. f.Limit is ignored. RecentLogs is
// left for the caller to fill.
func (r *PostgresLogRepository) Stats(ctx context.Context, f models.LogFilter) (*models.DashboardStats, error) {
	w := buildLogFilter(f)
	from := ` FROM communication_logs l` + w.String()

	stats := &models.DashboardStats{
		ByDirection: make([]models.DirectionCount, 0, 2),
		ByType:      make([]models.TypeCount, 0, 6),
	}

	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*)`+from, w.args...).Scan(&stats.TotalLogs); err != nil {
		return nil, fmt.Errorf("count logs: %w", err)
	}

	err := r.groupCount(ctx, `SELECT l.direction, COUNT(*)`+from+` GROUP BY l.direction ORDER BY l.direction`, w.args,
		func(key string, n int64) {
			stats.ByDirection = append(stats.ByDirection, models.DirectionCount{Direction: models.Direction(key), Count: n})
		})
	if err != nil {
		return nil, fmt.Errorf("count by direction: %w", err)
	}

	err = r.groupCount(ctx, `SELECT l.type, COUNT(*)`+from+` GROUP BY l.type ORDER BY l.type`, w.args,
		func(key string, n int64) {
			stats.ByType = append(stats.ByType, models.TypeCount{Type: models.LogType(key), Count: n})
		})
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}

	return stats, nil
}

func (r *PostgresLogRepository) groupCount(ctx context.Context, query string, args []any, add func(string, int64)) error {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		add(key, n)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(s rowScanner) (*models.Log, error) {
	var (
		l                         models.Log
		direction, typ, confLevel string
	)
	err := s.Scan(&l.ID, &l.UserID, &l.UserName, &direction, &typ, &l.Subject, &l.Content,
		&l.Sender, &l.Recipient, &l.OccurredAt, &confLevel, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan log: %w", err)
	}
	l.Direction = models.Direction(direction)
	l.Type = models.LogType(typ)
	l.Confidentiality = models.Confidentiality(confLevel)
	return &l, nil
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
