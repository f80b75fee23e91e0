package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atinyakov/commlog/internal/models"
	"github.com/atinyakov/commlog/internal/report"
	"github.com/atinyakov/commlog/internal/validation"
)

// recentLogs is the number of logs on the dashboard.
const recentLogs = 5

// LogRepository defines the persistence operations needed by the LogService.
type LogRepository interface {
	// List returns the logs matching f, most recent first.
	List(ctx context.Context, f models.LogFilter) ([]models.Log, error)
	// Get returns a log or models.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Log, error)
	Create(ctx context.Context, l *models.Log) error
	Update(ctx context.Context, l *models.Log) error
	Delete(ctx context.Context, id string) error
	// Stats aggregates the logs matching f, ignoring f.Limit.
	Stats(ctx context.Context, f models.LogFilter) (*models.DashboardStats, error)
}

// AccessPolicy decides which operations an actor may perform.
type AccessPolicy interface {
	ListLevels(actor models.Identity, requested models.Confidentiality) ([]models.Confidentiality, error)
	CanView(actor models.Identity, l *models.Log) error
	CanCreate(actor models.Identity) error
	CanEdit(actor models.Identity, l *models.Log) error
	CanDelete(actor models.Identity, l *models.Log) error
	CanViewAudit(actor models.Identity) error
}

// LogService implements the communication log operations. Authorization
// failures are detected before any write.
type LogService struct {
	repo     LogRepository
	policy   AccessPolicy
	audit    *AuditTrail
	renderer func(models.ReportFormat) (report.Renderer, error)
	now      func() time.Time
}

// NewLogService constructs a LogService.
func NewLogService(repo LogRepository, policy AccessPolicy, audit *AuditTrail) *LogService {
	return &LogService{
		repo:     repo,
		policy:   policy,
		audit:    audit,
		renderer: report.New,
		now:      time.Now,
	}
}

// List returns the logs visible to actor that match f. level narrows the
// confidentiality; non-admins never see secret logs.
func (s *LogService) List(ctx context.Context, actor models.Identity, f models.LogFilter, level models.Confidentiality) ([]models.Log, error) {
	levels, err := s.policy.ListLevels(actor, level)
	if err != nil {
		return nil, err
	}
	f.Levels = levels

	logs, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	s.audit.RecordViews(ctx, actor.UserID, logs)
	return logs, nil
}

// Get returns a single log if actor may view it.
func (s *LogService) Get(ctx context.Context, actor models.Identity, id string) (*models.Log, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanView(actor, l); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.UserID, l.ID, models.ActionView)
	return l, nil
}

// Create stores a new log owned by actor.
func (s *LogService) Create(ctx context.Context, actor models.Identity, in models.LogInput) (*models.Log, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := s.policy.CanCreate(actor); err != nil {
		return nil, err
	}

	occurred := s.now().UTC()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		occurred = in.Timestamp.Time
	}

	l := &models.Log{
		ID:              uuid.NewString(),
		UserID:          actor.UserID,
		UserName:        actor.Username,
		Direction:       in.Direction,
		Type:            in.Type,
		Subject:         in.Subject,
		Content:         in.Content,
		Sender:          strings.TrimSpace(in.Sender),
		Recipient:       strings.TrimSpace(in.Recipient),
		OccurredAt:      occurred,
		Confidentiality: in.Level(),
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.UserID, l.ID, models.ActionCreate)
	return l, nil
}

// Update applies patch to the log id. Omitted fields keep their stored
// values. A missing log is models.ErrNotFound for every actor; a present log
// the actor may not edit is models.ErrForbidden.
func (s *LogService) Update(ctx context.Context, actor models.Identity, id string, patch models.LogPatch) (*models.Log, error) {
	if patch.Subject != nil {
		trimmed := strings.TrimSpace(*patch.Subject)
		patch.Subject = &trimmed
	}
	if err := validation.Struct(&patch); err != nil {
		return nil, err
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanEdit(actor, existing); err != nil {
		return nil, err
	}

	updated := patch.Apply(*existing)
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.UserID, id, models.ActionEdit)
	return &updated, nil
}

// Delete removes the log id, checking existence before permission.
func (s *LogService) Delete(ctx context.Context, actor models.Identity, id string) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.CanDelete(actor, existing); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, actor.UserID, id, models.ActionDelete)
	return nil
}

// Dashboard aggregates the logs owned by actor, within the confidentiality
// levels actor may see.
func (s *LogService) Dashboard(ctx context.Context, actor models.Identity) (*models.DashboardStats, error) {
	levels, err := s.policy.ListLevels(actor, "")
	if err != nil {
		return nil, err
	}
	own := models.LogFilter{OwnerID: actor.UserID, Levels: levels}

	stats, err := s.repo.Stats(ctx, own)
	if err != nil {
		return nil, err
	}
	own.Limit = recentLogs
	recent, err := s.repo.List(ctx, own)
	if err != nil {
		return nil, err
	}
	stats.RecentLogs = recent
	return stats, nil
}

// Report renders the single log req.LogID.
func (s *LogService) Report(ctx context.Context, actor models.Identity, req models.ReportRequest) (*models.Report, error) {
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.LogID) == "" {
		return nil, models.NewValidationError("logId", "is required")
	}
	r, err := s.renderer(req.Format)
	if err != nil {
		return nil, err
	}

	l, err := s.Get(ctx, actor, req.LogID)
	if err != nil {
		return nil, err
	}
	body, err := r.Single(*l)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return &models.Report{
		Filename:    fmt.Sprintf("log-report-%s.%s", l.ID, r.Extension()),
		ContentType: r.ContentType(),
		Body:        body,
	}, nil
}

// SummaryReport renders every log visible to actor within req.Range.
func (s *LogService) SummaryReport(ctx context.Context, actor models.Identity, req models.ReportRequest) (*models.Report, error) {
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	r, err := s.renderer(req.Format)
	if err != nil {
		return nil, err
	}

	rng := req.Range
	if rng == "" {
		rng = models.RangeMonthly
	}
	logs, err := s.List(ctx, actor, models.LogFilter{From: rng.Since(s.now().UTC())}, "")
	if err != nil {
		return nil, err
	}

	title := "Communication Logs Summary (" + strings.ToUpper(string(rng[:1])) + string(rng[1:]) + ")"
	body, err := r.Summary(title, logs)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return &models.Report{
		Filename:    "log-summary-report." + r.Extension(),
		ContentType: r.ContentType(),
		Body:        body,
	}, nil
}

// AuditHistory returns the access history of the log id.
func (s *LogService) AuditHistory(ctx context.Context, actor models.Identity, id string) ([]models.AccessAuditEntry, error) {
	if err := s.policy.CanViewAudit(actor); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, id)
}
