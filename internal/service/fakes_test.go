package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/commlog/internal/models"
)

// memUserRepo is an in-memory UserRepository enforcing unique usernames and emails.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*models.User)}
}

func (r *memUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || (u.Email != "" && existing.Email == u.Email) {
			return models.ErrConflict
		}
	}
	u.CreatedAt = time.Now()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *memUserRepo) GetByToken(_ context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, models.ErrNotFound
	}
	return r.find(func(u *models.User) bool { return u.Token == token })
}

func (r *memUserRepo) SetToken(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return models.ErrNotFound
	}
	u.Token = token
	return nil
}

func (r *memUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// memLogRepo is an in-memory LogRepository with the same filter semantics as
// the Postgres implementation.
type memLogRepo struct {
	mu   sync.Mutex
	logs map[string]models.Log
	seq  int

	ListFunc func(ctx context.Context, f models.LogFilter) ([]models.Log, error)
}

func newMemLogRepo(seed ...models.Log) *memLogRepo {
	r := &memLogRepo{logs: make(map[string]models.Log)}
	for _, l := range seed {
		r.put(l)
	}
	return r
}

func (r *memLogRepo) put(l models.Log) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Date(2024, 1, 1, 0, 0, r.seq, 0, time.UTC)
	}
	r.logs[l.ID] = l
}

func (r *memLogRepo) List(ctx context.Context, f models.LogFilter) ([]models.Log, error) {
	if r.ListFunc != nil {
		return r.ListFunc(ctx, f)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Log, 0)
	for _, l := range r.logs {
		if matches(l, f) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(l models.Log, f models.LogFilter) bool {
	if f.OwnerID != "" && l.UserID != f.OwnerID {
		return false
	}
	if f.Direction != "" && l.Direction != f.Direction {
		return false
	}
	if f.Type != "" && l.Type != f.Type {
		return false
	}
	if f.From != nil && l.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && l.OccurredAt.After(*f.To) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(l.Subject), q) && !strings.Contains(strings.ToLower(l.Content), q) {
			return false
		}
	}
	if len(f.Levels) > 0 {
		found := false
		for _, lv := range f.Levels {
			if l.Confidentiality == lv {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *memLogRepo) Get(_ context.Context, id string) (*models.Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &l, nil
}

func (r *memLogRepo) Create(_ context.Context, l *models.Log) error {
	r.put(*l)
	r.mu.Lock()
	l.CreatedAt = r.logs[l.ID].CreatedAt
	r.mu.Unlock()
	return nil
}

func (r *memLogRepo) Update(_ context.Context, l *models.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.logs[l.ID]; !ok {
		return models.ErrNotFound
	}
	r.logs[l.ID] = *l
	return nil
}

func (r *memLogRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.logs[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.logs, id)
	return nil
}

func (r *memLogRepo) Stats(ctx context.Context, f models.LogFilter) (*models.DashboardStats, error) {
	f.Limit = 0
	logs, err := r.List(ctx, f)
	if err != nil {
		return nil, err
	}
	stats := &models.DashboardStats{TotalLogs: int64(len(logs))}
	byDir := map[models.Direction]int64{}
	byType := map[models.LogType]int64{}
	for _, l := range logs {
		byDir[l.Direction]++
		byType[l.Type]++
	}
	for _, d := range []models.Direction{models.Incoming, models.Outgoing} {
		if n := byDir[d]; n > 0 {
			stats.ByDirection = append(stats.ByDirection, models.DirectionCount{Direction: d, Count: n})
		}
	}
	for _, t := range []models.LogType{models.TypeEmail, models.TypeFax, models.TypeLetter, models.TypeMemo, models.TypeOther, models.TypePhone} {
		if n := byType[t]; n > 0 {
			stats.ByType = append(stats.ByType, models.TypeCount{Type: t, Count: n})
		}
	}
	return stats, nil
}

// mockAuditRepo records entries and can be told to fail.
type mockAuditRepo struct {
	mu      sync.Mutex
	entries []models.AccessAuditEntry

	RecordFunc func(ctx context.Context, e models.AccessAuditEntry) error
}

func (m *mockAuditRepo) Record(ctx context.Context, e models.AccessAuditEntry) error {
	if m.RecordFunc != nil {
		if err := m.RecordFunc(ctx, e); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) ListByLog(_ context.Context, logID string) ([]models.AccessAuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AccessAuditEntry, 0)
	for _, e := range m.entries {
		if e.LogID == logID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockAuditRepo) actions(logID string) []models.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditAction
	for _, e := range m.entries {
		if e.LogID == logID {
			out = append(out, e.Action)
		}
	}
	return out
}
