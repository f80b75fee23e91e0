package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartAuditRetentionCleaner removes access audit entries older than
// retention every interval until ctx is cancelled. A non-positive retention
// keeps the trail forever and starts nothing.
func StartAuditRetentionCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	if retention <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention).UTC()
				res, err := db.ExecContext(ctx, `
                    DELETE FROM log_access
                     WHERE created_at < $1
                `, cutoff)
				if err != nil {
					log.Error("failed to prune access audit trail", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("pruned access audit trail", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
