package http

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atinyakov/commlog/internal/models"
)

func sampleLog(id string) models.Log {
	return models.Log{
		ID:              id,
		UserID:          aliceID.UserID,
		UserName:        "alice",
		Direction:       models.Incoming,
		Type:            models.TypeEmail,
		Subject:         "Quarterly figures",
		OccurredAt:      time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC),
		Confidentiality: models.Public,
	}
}

func TestLogHandler_ListRequiresAuth(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	for _, token := range []string{"", "unknown"} {
		rec := ts.do(http.MethodGet, "/api/logs", token, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHENTICATED", decodeBody(t, rec)["code"])
	}
}

func TestLogHandler_ListFilters(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	var (
		gotFilter models.LogFilter
		gotLevel  models.Confidentiality
		gotActor  models.Identity
	)
	ts.logs.ListFunc = func(ctx context.Context, actor models.Identity, f models.LogFilter, level models.Confidentiality) ([]models.Log, error) {
		gotActor, gotFilter, gotLevel = actor, f, level
		return []models.Log{sampleLog("l1")}, nil
	}

	rec := ts.do(http.MethodGet,
		"/api/logs?direction=incoming&type=email&fromDate=2024-05-01&toDate=2024-05-31&search=%20figures%20&confidentiality=public",
		"alice-token", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, aliceID, gotActor)
	assert.Equal(t, models.Incoming, gotFilter.Direction)
	assert.Equal(t, models.TypeEmail, gotFilter.Type)
	assert.Equal(t, "figures", gotFilter.Search)
	assert.Equal(t, models.Public, gotLevel)
	require.NotNil(t, gotFilter.From)
	require.NotNil(t, gotFilter.To)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *gotFilter.From)
	assert.Equal(t, time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC), *gotFilter.To)
	assert.Nil(t, gotFilter.Levels)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "l1", data[0].(map[string]any)["id"])
	assert.Equal(t, "alice", data[0].(map[string]any)["user_name"])
}

func TestLogHandler_ListRejectsBadFilters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{name: "direction", query: "direction=sideways", field: "direction"},
		{name: "type", query: "type=pigeon", field: "type"},
		{name: "from date", query: "fromDate=01/05/2024", field: "fromDate"},
		{name: "to date", query: "toDate=2024-13-01", field: "toDate"},
		{name: "confidentiality", query: "confidentiality=top", field: "confidentiality"},
		{name: "limit", query: "limit=ten", field: "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, RouterOptions{})
			ts.logs.ListFunc = func(ctx context.Context, actor models.Identity, f models.LogFilter, level models.Confidentiality) ([]models.Log, error) {
				t.Fatal("List must not be called")
				return nil, nil
			}

			rec := ts.do(http.MethodGet, "/api/logs?"+tt.query, "alice-token", "")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, "VALIDATION_ERROR", body["code"])
			assert.Contains(t, body["errors"], tt.field)
		})
	}
}

func TestLogHandler_ListSecretForNonAdmin(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	ts.logs.ListFunc = func(ctx context.Context, actor models.Identity, f models.LogFilter, level models.Confidentiality) ([]models.Log, error) {
		if level == models.Secret && !actor.IsAdmin() {
			return nil, models.ErrForbidden
		}
		return []models.Log{}, nil
	}

	rec := ts.do(http.MethodGet, "/api/logs?confidentiality=secret", "alice-token", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeBody(t, rec)["code"])

	rec = ts.do(http.MethodGet, "/api/logs?confidentiality=secret", "admin-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decodeBody(t, rec)["data"])
}

func TestLogHandler_GetSingle(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	ts.logs.GetFunc = func(ctx context.Context, actor models.Identity, id string) (*models.Log, error) {
		if id != "l1" {
			return nil, models.ErrNotFound
		}
		l := sampleLog(id)
		return &l, nil
	}

	rec := ts.do(http.MethodGet, "/api/logs?id=l1", "alice-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Quarterly figures", data["subject"])
	assert.Equal(t, "2024-05-02T09:30:00Z", data["timestamp"])

	rec = ts.do(http.MethodGet, "/api/logs?id=missing", "alice-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeBody(t, rec)["code"])
}

func TestLogHandler_Dashboard(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	ts.logs.DashboardFunc = func(ctx context.Context, actor models.Identity) (*models.DashboardStats, error) {
		return &models.DashboardStats{
			TotalLogs:   3,
			ByDirection: []models.DirectionCount{{Direction: models.Incoming, Count: 2}, {Direction: models.Outgoing, Count: 1}},
			ByType:      []models.TypeCount{{Type: models.TypeEmail, Count: 3}},
			RecentLogs:  []models.Log{sampleLog("l1")},
		}, nil
	}

	rec := ts.do(http.MethodGet, "/api/logs?action=dashboard", "alice-token", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.EqualValues(t, 3, data["total_logs"])
	assert.Len(t, data["by_direction"], 2)
	assert.Len(t, data["by_type"], 1)
	assert.Len(t, data["recent_logs"], 1)
}

func TestLogHandler_AuditHistory(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	ts.logs.AuditHistoryFunc = func(ctx context.Context, actor models.Identity, id string) ([]models.AccessAuditEntry, error) {
		if !actor.IsAdmin() {
			return nil, models.ErrForbidden
		}
		return []models.AccessAuditEntry{
			{ID: "a1", UserID: aliceID.UserID, LogID: id, Action: models.ActionView},
		}, nil
	}

	rec := ts.do(http.MethodGet, "/api/logs?action=audit&id=l1", "admin-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "view", data[0].(map[string]any)["action"])
	assert.Equal(t, "l1", data[0].(map[string]any)["log_id"])

	rec = ts.do(http.MethodGet, "/api/logs?action=audit&id=l1", "alice-token", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/api/logs?action=audit", "admin-token", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogHandler_UnknownAction(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	rec := ts.do(http.MethodGet, "/api/logs?action=explode", "alice-token", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/logs?action=explode", "alice-token", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogHandler_Create(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	var got models.LogInput
	ts.logs.CreateFunc = func(ctx context.Context, actor models.Identity, in models.LogInput) (*models.Log, error) {
		got = in
		l := sampleLog("new-id")
		l.UserID = actor.UserID
		l.Confidentiality = in.Level()
		return &l, nil
	}

	rec := ts.do(http.MethodPost, "/api/logs", "alice-token",
		`{"direction":"incoming","type":"email","subject":"Quarterly figures","timestamp":"2024-05-02 09:30:00","confidential":true,"user_id":"someone-else"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, models.Confidential, got.Level())
	require.NotNil(t, got.Timestamp)
	assert.Equal(t, time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC), got.Timestamp.Time)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "new-id", data["id"])
	assert.Equal(t, "u-alice", data["user_id"])
	assert.Equal(t, "confidential", data["confidentiality_level"])
}

func TestLogHandler_CreateErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
	}{
		{name: "invalid JSON", body: `{"subject":`, wantStatus: http.StatusBadRequest},
		{name: "wrong type", body: `{"subject":42}`, wantStatus: http.StatusBadRequest},
		{name: "bad timestamp", body: `{"timestamp":"yesterday"}`, wantStatus: http.StatusBadRequest},
		{name: "validation", body: `{"subject":"no"}`, svcErr: models.NewValidationError("subject", "must be at least 3 characters"), wantStatus: http.StatusBadRequest},
		{name: "storage", body: `{"subject":"fine"}`, svcErr: errors.New("pq: relation does not exist"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, RouterOptions{})
			called := false
			ts.logs.CreateFunc = func(ctx context.Context, actor models.Identity, in models.LogInput) (*models.Log, error) {
				called = true
				return nil, tt.svcErr
			}

			rec := ts.do(http.MethodPost, "/api/logs", "alice-token", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.svcErr != nil, called)
			assert.NotContains(t, rec.Body.String(), "pq:")
		})
	}
}

func TestLogHandler_Update(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		svcErr     error
		wantStatus int
		wantMsg    string
	}{
		{name: "ok", target: "/api/logs?id=l1", wantStatus: http.StatusOK, wantMsg: "Log updated successfully"},
		{name: "missing id", target: "/api/logs", wantStatus: http.StatusBadRequest},
		{name: "not found", target: "/api/logs?id=l1", svcErr: models.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "not owner", target: "/api/logs?id=l1", svcErr: models.ErrForbidden, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, RouterOptions{})
			var gotPatch models.LogPatch
			var gotID string
			ts.logs.UpdateFunc = func(ctx context.Context, actor models.Identity, id string, patch models.LogPatch) (*models.Log, error) {
				gotID, gotPatch = id, patch
				if tt.svcErr != nil {
					return nil, tt.svcErr
				}
				l := sampleLog(id)
				return &l, nil
			}

			rec := ts.do(http.MethodPut, tt.target, "alice-token", `{"subject":"Revised figures"}`)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMsg == "" {
				return
			}
			assert.Equal(t, "l1", gotID)
			require.NotNil(t, gotPatch.Subject)
			assert.Equal(t, "Revised figures", *gotPatch.Subject)
			assert.Nil(t, gotPatch.Content)
			assert.Equal(t, tt.wantMsg, decodeBody(t, rec)["message"])
		})
	}
}

func TestLogHandler_Delete(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	ts.logs.DeleteFunc = func(ctx context.Context, actor models.Identity, id string) error {
		switch {
		case id == "missing":
			return models.ErrNotFound
		case !actor.IsAdmin():
			return models.ErrForbidden
		}
		return nil
	}

	rec := ts.do(http.MethodDelete, "/api/logs?id=l1", "admin-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Log deleted successfully", decodeBody(t, rec)["message"])

	rec = ts.do(http.MethodDelete, "/api/logs?id=l1", "alice-token", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/logs?id=missing", "alice-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/logs", "admin-token", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogHandler_Reports(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	var gotSingle, gotSummary models.ReportRequest
	ts.logs.ReportFunc = func(ctx context.Context, actor models.Identity, req models.ReportRequest) (*models.Report, error) {
		gotSingle = req
		return &models.Report{Filename: "log-report-l1.csv", ContentType: "text/csv; charset=utf-8", Body: []byte("a,b\n")}, nil
	}
	ts.logs.SummaryReportFunc = func(ctx context.Context, actor models.Identity, req models.ReportRequest) (*models.Report, error) {
		gotSummary = req
		return &models.Report{Filename: "log-summary-report.pdf", ContentType: "application/pdf", Body: []byte("%PDF-1.3")}, nil
	}

	rec := ts.do(http.MethodPost, "/api/logs?action=report", "alice-token", `{"logId":"l1","format":"csv"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ReportRequest{LogID: "l1", Format: models.FormatCSV}, gotSingle)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="log-report-l1.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/logs?action=report-summary", "alice-token", `{"range":"weekly"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RangeWeekly, gotSummary.Range)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="log-summary-report.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "8", rec.Header().Get("Content-Length"))
}

func TestLogHandler_ReportErrorsAreJSON(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})
	ts.logs.ReportFunc = func(ctx context.Context, actor models.Identity, req models.ReportRequest) (*models.Report, error) {
		return nil, models.ErrNotFound
	}

	rec := ts.do(http.MethodPost, "/api/logs?action=report", "alice-token", `{"logId":"secret-one"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestRouter_MethodNotAllowedAndNotFound(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	rec := ts.do(http.MethodPatch, "/api/logs", "alice-token", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", decodeBody(t, rec)["code"])

	rec = ts.do(http.MethodGet, "/api/nothing-here", "alice-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_PreflightNeedsNoCredential(t *testing.T) {
	ts := newTestServer(t, RouterOptions{AllowedOrigins: []string{"http://localhost:5173"}})

	req := ts.request(http.MethodOptions, "/api/logs")
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := ts.serve(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = ts.serve(ts.request(http.MethodOptions, "/api/logs"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRouter_RequestLogCarriesUserID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ts := newLoggedTestServer(t, RouterOptions{}, zap.New(core))

	rec := ts.do(http.MethodGet, "/api/logs?action=bogus", "alice-token", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/logs", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	requests := logs.FilterMessage("request").All()
	require.Len(t, requests, 2)

	authed := requests[0].ContextMap()
	assert.EqualValues(t, http.StatusBadRequest, authed["status"])
	assert.Equal(t, "u-alice", authed["user_id"])

	anonymous := requests[1].ContextMap()
	assert.EqualValues(t, http.StatusUnauthorized, anonymous["status"])
	assert.NotContains(t, anonymous, "user_id")
}

func TestRouter_ResponsesCarryRequestID(t *testing.T) {
	ts := newTestServer(t, RouterOptions{})

	rec := ts.do(http.MethodGet, "/api/logs", "", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
