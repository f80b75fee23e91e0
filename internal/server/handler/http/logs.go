package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/commlog/internal/models"
	"github.com/atinyakov/commlog/internal/validation"
)

// Query actions of /api/logs.
const (
	actionDashboard     = "dashboard"
	actionAudit         = "audit"
	actionReport        = "report"
	actionReportSummary = "report-summary"
)

const dateLayout = "2006-01-02"

// LogService defines the communication log operations required by the HTTP
// handlers.
type LogService interface {
	List(ctx context.Context, actor models.Identity, f models.LogFilter, level models.Confidentiality) ([]models.Log, error)
	Get(ctx context.Context, actor models.Identity, id string) (*models.Log, error)
	Create(ctx context.Context, actor models.Identity, in models.LogInput) (*models.Log, error)
	Update(ctx context.Context, actor models.Identity, id string, patch models.LogPatch) (*models.Log, error)
	Delete(ctx context.Context, actor models.Identity, id string) error
	Dashboard(ctx context.Context, actor models.Identity) (*models.DashboardStats, error)
	Report(ctx context.Context, actor models.Identity, req models.ReportRequest) (*models.Report, error)
	SummaryReport(ctx context.Context, actor models.Identity, req models.ReportRequest) (*models.Report, error)
	AuditHistory(ctx context.Context, actor models.Identity, id string) ([]models.AccessAuditEntry, error)
}

// LogHandler serves /api/logs. The operation is chosen by the method and the
// "action" and "id" query parameters.
type LogHandler struct {
	LogService LogService
	Log        *zap.Logger
}

// listQuery holds the list filters as sent in the query string.
type listQuery struct {
	Direction       string `json:"direction" validate:"omitempty,oneof=incoming outgoing"`
	Type            string `json:"type" validate:"omitempty,oneof=memo fax email letter phone other"`
	FromDate        string `json:"fromDate" validate:"omitempty,datetime=2006-01-02"`
	ToDate          string `json:"toDate" validate:"omitempty,datetime=2006-01-02"`
	Search          string `json:"search" validate:"max=255"`
	Confidentiality string `json:"confidentiality" validate:"omitempty,oneof=public confidential secret"`
	Limit           string `json:"limit" validate:"omitempty,number"`
}

// filter converts a validated query into a LogFilter. Date bounds cover
// whole days: fromDate starts at 00:00:00 and toDate ends at 23:59:59.
func (q listQuery) filter() (models.LogFilter, error) {
	f := models.LogFilter{
		Direction: models.Direction(q.Direction),
		Type:      models.LogType(q.Type),
		Search:    strings.TrimSpace(q.Search),
	}
	if q.FromDate != "" {
		from, err := time.Parse(dateLayout, q.FromDate)
		if err != nil {
			return f, models.NewValidationError("fromDate", "must be a date in YYYY-MM-DD format")
		}
		f.From = &from
	}
	if q.ToDate != "" {
		to, err := time.Parse(dateLayout, q.ToDate)
		if err != nil {
			return f, models.NewValidationError("toDate", "must be a date in YYYY-MM-DD format")
		}
		end := to.Add(24*time.Hour - time.Second)
		f.To = &end
	}
	if q.Limit != "" {
		n, err := strconv.Atoi(q.Limit)
		if err != nil || n < 0 {
			return f, models.NewValidationError("limit", "must be a non-negative number")
		}
		f.Limit = n
	}
	return f, nil
}

// Get handles GET /api/logs: the list, ?action=dashboard, ?action=audit&id=
// and the single read ?id=.
func (h *LogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	q := r.URL.Query()
	switch q.Get("action") {
	case actionDashboard:
		stats, err := h.LogService.Dashboard(r.Context(), id)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeData(w, http.StatusOK, stats)
		return
	case actionAudit:
		logID, err := requireID(r)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		entries, err := h.LogService.AuditHistory(r.Context(), id, logID)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeData(w, http.StatusOK, entries)
		return
	case "":
	default:
		writeError(w, r, h.Log, models.NewValidationError("action", "unknown action"))
		return
	}

	if logID := strings.TrimSpace(q.Get("id")); logID != "" {
		l, err := h.LogService.Get(r.Context(), id, logID)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeData(w, http.StatusOK, l)
		return
	}

	lq := listQuery{
		Direction:       q.Get("direction"),
		Type:            q.Get("type"),
		FromDate:        q.Get("fromDate"),
		ToDate:          q.Get("toDate"),
		Search:          q.Get("search"),
		Confidentiality: q.Get("confidentiality"),
		Limit:           q.Get("limit"),
	}
	if err := validation.Struct(&lq); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	f, err := lq.filter()
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	logs, err := h.LogService.List(r.Context(), id, f, models.Confidentiality(lq.Confidentiality))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, logs)
}

// Post handles POST /api/logs: create, ?action=report and
// ?action=report-summary.
func (h *LogHandler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	switch action := r.URL.Query().Get("action"); action {
	case actionReport, actionReportSummary:
		var req models.ReportRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, h.Log, err)
			return
		}

		var rep *models.Report
		if action == actionReport {
			rep, err = h.LogService.Report(r.Context(), id, req)
		} else {
			rep, err = h.LogService.SummaryReport(r.Context(), id, req)
		}
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeAttachment(w, rep)
	case "":
		var in models.LogInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		l, err := h.LogService.Create(r.Context(), id, in)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeData(w, http.StatusCreated, l)
	default:
		writeError(w, r, h.Log, models.NewValidationError("action", "unknown action"))
	}
}

// Put handles PUT /api/logs?id=. Omitted body fields keep their values.
func (h *LogHandler) Put(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	logID, err := requireID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	var patch models.LogPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if _, err := h.LogService.Update(r.Context(), id, logID, patch); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Log updated successfully"})
}

// Delete handles DELETE /api/logs?id=.
func (h *LogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	logID, err := requireID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	if err := h.LogService.Delete(r.Context(), id, logID); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Log deleted successfully"})
}

func requireID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		return "", models.NewValidationError("id", "field is required")
	}
	return id, nil
}

func writeAttachment(w http.ResponseWriter, rep *models.Report) {
	w.Header().Set("Content-Type", rep.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(rep.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rep.Body)
}
