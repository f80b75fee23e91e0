package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/commlog/internal/models"
)

// AuditRepository persists access audit entries.
type AuditRepository interface {
	Record(ctx context.Context, e models.AccessAuditEntry) error
	ListByLog(ctx context.Context, logID string) ([]models.AccessAuditEntry, error)
}

// AuditTrail records log accesses on a best-effort basis: a failed write is
// logged and never returned to the caller.
type AuditTrail struct {
	repo AuditRepository
	log  *zap.Logger
	now  func() time.Time
}

// NewAuditTrail constructs an AuditTrail.
func NewAuditTrail(repo AuditRepository, log *zap.Logger) *AuditTrail {
	return &AuditTrail{repo: repo, log: log, now: time.Now}
}

// Record appends one entry. It detaches from ctx cancellation so that a
// client hanging up does not drop the entry.
func (a *AuditTrail) Record(ctx context.Context, actorID, logID string, action models.AuditAction) {
	entry := models.AccessAuditEntry{
		ID:        uuid.NewString(),
		UserID:    actorID,
		LogID:     logID,
		Action:    action,
		CreatedAt: a.now().UTC(),
	}
	if err := a.repo.Record(context.WithoutCancel(ctx), entry); err != nil {
		a.log.Warn("failed to record log access",
			zap.String("log_id", logID),
			zap.String("user_id", actorID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

// RecordViews appends a view entry per log. Each write is independent.
func (a *AuditTrail) RecordViews(ctx context.Context, actorID string, logs []models.Log) {
	for _, l := range logs {
		a.Record(ctx, actorID, l.ID, models.ActionView)
	}
}

// History returns the recorded accesses of a log.
func (a *AuditTrail) History(ctx context.Context, logID string) ([]models.AccessAuditEntry, error) {
	return a.repo.ListByLog(ctx, logID)
}
