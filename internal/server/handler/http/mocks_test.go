package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/commlog/internal/models"
	"github.com/atinyakov/commlog/internal/service"
)

type mockAuthService struct {
	RegisterFunc    func(ctx context.Context, req models.RegisterRequest) (*service.AuthResult, error)
	LoginFunc       func(ctx context.Context, req models.LoginRequest) (*service.AuthResult, error)
	CurrentUserFunc func(ctx context.Context, actor models.Identity) (*models.PublicUser, error)
	LogoutFunc      func(ctx context.Context, actor models.Identity) error
}

func (m *mockAuthService) Register(ctx context.Context, req models.RegisterRequest) (*service.AuthResult, error) {
	return m.RegisterFunc(ctx, req)
}

func (m *mockAuthService) Login(ctx context.Context, req models.LoginRequest) (*service.AuthResult, error) {
	return m.LoginFunc(ctx, req)
}

func (m *mockAuthService) CurrentUser(ctx context.Context, actor models.Identity) (*models.PublicUser, error) {
	return m.CurrentUserFunc(ctx, actor)
}

func (m *mockAuthService) Logout(ctx context.Context, actor models.Identity) error {
	return m.LogoutFunc(ctx, actor)
}

type mockLogService struct {
	ListFunc          func(ctx context.Context, actor models.Identity, f models.LogFilter, level models.Confidentiality) ([]models.Log, error)
	GetFunc           func(ctx context.Context, actor models.Identity, id string) (*models.Log, error)
	CreateFunc        func(ctx context.Context, actor models.Identity, in models.LogInput) (*models.Log, error)
	UpdateFunc        func(ctx context.Context, actor models.Identity, id string, patch models.LogPatch) (*models.Log, error)
	DeleteFunc        func(ctx context.Context, actor models.Identity, id string) error
	DashboardFunc     func(ctx context.Context, actor models.Identity) (*models.DashboardStats, error)
	ReportFunc        func(ctx context.Context, actor models.Identity, req models.ReportRequest) (*models.Report, error)
	SummaryReportFunc func(ctx context.Context, actor models.Identity, req models.ReportRequest) (*models.Report, error)
	AuditHistoryFunc  func(ctx context.Context, actor models.Identity, id string) ([]models.AccessAuditEntry, error)
}

func (m *mockLogService) List(ctx context.Context, actor models.Identity, f models.LogFilter, level models.Confidentiality) ([]models.Log, error) {
	return m.ListFunc(ctx, actor, f, level)
}

func (m *mockLogService) Get(ctx context.Context, actor models.Identity, id string) (*models.Log, error) {
	return m.GetFunc(ctx, actor, id)
}

func (m *mockLogService) Create(ctx context.Context, actor models.Identity, in models.LogInput) (*models.Log, error) {
	return m.CreateFunc(ctx, actor, in)
}

func (m *mockLogService) Update(ctx context.Context, actor models.Identity, id string, patch models.LogPatch) (*models.Log, error) {
	return m.UpdateFunc(ctx, actor, id, patch)
}

func (m *mockLogService) Delete(ctx context.Context, actor models.Identity, id string) error {
	return m.DeleteFunc(ctx, actor, id)
}

func (m *mockLogService) Dashboard(ctx context.Context, actor models.Identity) (*models.DashboardStats, error) {
	return m.DashboardFunc(ctx, actor)
}

func (m *mockLogService) Report(ctx context.Context, actor models.Identity, req models.ReportRequest) (*models.Report, error) {
	return m.ReportFunc(ctx, actor, req)
}

func (m *mockLogService) SummaryReport(ctx context.Context, actor models.Identity, req models.ReportRequest) (*models.Report, error) {
	return m.SummaryReportFunc(ctx, actor, req)
}

func (m *mockLogService) AuditHistory(ctx context.Context, actor models.Identity, id string) ([]models.AccessAuditEntry, error) {
	return m.AuditHistoryFunc(ctx, actor, id)
}

// tokenAuthenticator accepts the tokens in its map.
type tokenAuthenticator map[string]models.Identity

func (a tokenAuthenticator) Authenticate(ctx context.Context, credential string) (models.Identity, error) {
	id, ok := a[credential]
	if !ok {
		return models.Identity{}, models.ErrUnauthenticated
	}
	return id, nil
}

var (
	aliceID = models.Identity{UserID: "u-alice", Username: "alice", Role: models.RoleUser}
	adminID = models.Identity{UserID: "u-admin", Username: "root", Role: models.RoleAdmin}
)

type testServer struct {
	auth    *mockAuthService
	logs    *mockLogService
	handler http.Handler
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	return newLoggedTestServer(t, opts, zap.NewNop())
}

func newLoggedTestServer(t *testing.T, opts RouterOptions, logger *zap.Logger) *testServer {
	t.Helper()
	ts := &testServer{auth: &mockAuthService{}, logs: &mockLogService{}}
	tokens := tokenAuthenticator{"alice-token": aliceID, "admin-token": adminID}
	ts.handler = NewRouter(
		&AuthHandler{AuthService: ts.auth, Log: zap.NewNop()},
		&LogHandler{LogService: ts.logs, Log: zap.NewNop()},
		tokens,
		opts,
		logger,
	)
	return ts
}

func (ts *testServer) do(method, target, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (ts *testServer) request(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

func (ts *testServer) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}
