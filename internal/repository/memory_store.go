package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tullo/trust/internal/apperr"
	"github.com/tullo/trust/internal/models"
)

// MemoryStore implements Store in memory. A unit of work holds the store lock
// for its whole duration and operates on a copy of the state that replaces the
// live state only when the work succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	users    map[uuid.UUID]models.User
	reports  map[uuid.UUID]models.Report
	warnings []models.UserWarning
	logs     []models.ModerationLog
	karma    []models.KarmaEvent
	groups   map[uuid.UUID]struct{}
	messages map[uuid.UUID]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		users:    make(map[uuid.UUID]models.User),
		reports:  make(map[uuid.UUID]models.Report),
		groups:   make(map[uuid.UUID]struct{}),
		messages: make(map[uuid.UUID]struct{}),
	}}
}

func (st *memState) clone() *memState {
	c := &memState{
		users:    make(map[uuid.UUID]models.User, len(st.users)),
		reports:  make(map[uuid.UUID]models.Report, len(st.reports)),
		warnings: append([]models.UserWarning(nil), st.warnings...),
		logs:     append([]models.ModerationLog(nil), st.logs...),
		karma:    append([]models.KarmaEvent(nil), st.karma...),
		groups:   st.groups,
		messages: st.messages,
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.reports {
		c.reports[k] = v
	}
	return c
}

// AddUser seeds the user directory
func (s *MemoryStore) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.ID] = u
}

// AddGroup seeds a group id for existence checks
func (s *MemoryStore) AddGroup(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.groups[id] = struct{}{}
}

// AddMessage seeds a message id for existence checks
func (s *MemoryStore) AddMessage(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.messages[id] = struct{}{}
}

func (s *MemoryStore) Repos() Repositories {
	return memRepositories(memBackend{store: s})
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(repos Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(memRepositories(memBackend{st: work})); err != nil {
		return err
	}
	s.state = work
	return nil
}

// memBackend runs an operation either against a transaction's working copy
// (lock already held) or against the live state under the store lock.
type memBackend struct {
	store *MemoryStore
	st    *memState
}

func (b memBackend) run(fn func(st *memState) error) error {
	if b.st != nil {
		return fn(b.st)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.state)
}

func memRepositories(b memBackend) Repositories {
	return Repositories{
		Users:     memUsers{b},
		Reports:   memReports{b},
		Warnings:  memWarnings{b},
		Logs:      memLogs{b},
		Karma:     memKarma{b},
		Directory: memDirectory{b},
	}
}

type memUsers struct{ b memBackend }

func (m memUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var out *models.User
	err := m.b.run(func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return apperr.NotFound("user")
		}
		out = &u
		return nil
	})
	return out, err
}

func (m memUsers) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.GetByID(ctx, id)
}

func (m memUsers) ListModerators(ctx context.Context) ([]models.User, error) {
	res := []models.User{}
	err := m.b.run(func(st *memState) error {
		for _, u := range st.users {
			if u.IsModerator() {
				res = append(res, u)
			}
		}
		return nil
	})
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, err
}

func (m memUsers) update(id uuid.UUID, fn func(u *models.User)) error {
	return m.b.run(func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return apperr.NotFound("user")
		}
		fn(&u)
		u.UpdatedAt = time.Now().UTC()
		st.users[id] = u
		return nil
	})
}

func (m memUsers) SetBanned(ctx context.Context, id uuid.UUID, reason *string) error {
	return m.update(id, func(u *models.User) {
		u.Banned = true
		if reason != nil {
			r := *reason
			u.BannedReason = &r
		}
	})
}

func (m memUsers) SetSuspended(ctx context.Context, id uuid.UUID, until time.Time, reason *string) error {
	return m.update(id, func(u *models.User) {
		t := until
		u.SuspendedUntil = &t
		if reason != nil {
			r := *reason
			u.SuspensionReason = &r
		}
	})
}

func (m memUsers) SetWarningCount(ctx context.Context, id uuid.UUID, count int) error {
	return m.update(id, func(u *models.User) { u.Warnings = count })
}

func (m memUsers) RevokeTokens(ctx context.Context, id uuid.UUID) error {
	return m.update(id, func(u *models.User) { u.TokenVersion++ })
}

type memReports struct{ b memBackend }

func (m memReports) Create(ctx context.Context, report *models.Report) error {
	return m.b.run(func(st *memState) error {
		st.reports[report.ID] = *report
		return nil
	})
}

func (m memReports) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var out *models.Report
	err := m.b.run(func(st *memState) error {
		r, ok := st.reports[id]
		if !ok {
			return apperr.NotFound("report")
		}
		out = &r
		return nil
	})
	return out, err
}

func (m memReports) List(ctx context.Context, f models.ReportFilter) ([]models.Report, error) {
	res := []models.Report{}
	err := m.b.run(func(st *memState) error {
		for _, r := range st.reports {
			if f.Status != nil && r.Status != *f.Status {
				continue
			}
			if f.Priority != nil && r.Priority != *f.Priority {
				continue
			}
			if f.ReportedUserID != nil && r.ReportedUserID != *f.ReportedUserID {
				continue
			}
			res = append(res, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(res, func(i, j int) bool {
		if ri, rj := res[i].Priority.Rank(), res[j].Priority.Rank(); ri != rj {
			return ri > rj
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})

	limit, offset := clampPage(f.Limit, f.Offset)
	if offset >= len(res) {
		return []models.Report{}, nil
	}
	res = res[offset:]
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m memReports) MarkResolved(ctx context.Context, id uuid.UUID, status models.ReportStatus, moderatorID uuid.UUID, at time.Time, notes *string) (bool, error) {
	updated := false
	err := m.b.run(func(st *memState) error {
		r, ok := st.reports[id]
		if !ok || r.Status != models.StatusPending {
			return nil
		}
		mod := moderatorID
		resolvedAt := at
		r.Status = status
		r.ResolvedBy = &mod
		r.ResolvedAt = &resolvedAt
		r.ResolutionNotes = notes
		r.UpdatedAt = at
		st.reports[id] = r
		updated = true
		return nil
	})
	return updated, err
}

type memWarnings struct{ b memBackend }

func (m memWarnings) Create(ctx context.Context, w *models.UserWarning) error {
	return m.b.run(func(st *memState) error {
		st.warnings = append(st.warnings, *w)
		return nil
	})
}

func (m memWarnings) CountActive(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	count := 0
	err := m.b.run(func(st *memState) error {
		for _, w := range st.warnings {
			if w.UserID == userID && w.Active(now) {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (m memWarnings) ListByUser(ctx context.Context, userID uuid.UUID, activeAt *time.Time) ([]models.UserWarning, error) {
	res := []models.UserWarning{}
	err := m.b.run(func(st *memState) error {
		for i := len(st.warnings) - 1; i >= 0; i-- {
			w := st.warnings[i]
			if w.UserID != userID {
				continue
			}
			if activeAt != nil && !w.Active(*activeAt) {
				continue
			}
			res = append(res, w)
		}
		return nil
	})
	return res, err
}

type memLogs struct{ b memBackend }

func (m memLogs) Append(ctx context.Context, log *models.ModerationLog) error {
	return m.b.run(func(st *memState) error {
		st.logs = append(st.logs, *log)
		return nil
	})
}

func (m memLogs) ListByTarget(ctx context.Context, userID uuid.UUID, limit int) ([]models.ModerationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	res := []models.ModerationLog{}
	err := m.b.run(func(st *memState) error {
		for i := len(st.logs) - 1; i >= 0 && len(res) < limit; i-- {
			if st.logs[i].TargetUserID == userID {
				res = append(res, st.logs[i])
			}
		}
		return nil
	})
	return res, err
}

func (m memLogs) ListByReport(ctx context.Context, reportID uuid.UUID) ([]models.ModerationLog, error) {
	res := []models.ModerationLog{}
	err := m.b.run(func(st *memState) error {
		for _, l := range st.logs {
			if l.ReportID != nil && *l.ReportID == reportID {
				res = append(res, l)
			}
		}
		return nil
	})
	return res, err
}

type memKarma struct{ b memBackend }

func (m memKarma) Add(ctx context.Context, userID uuid.UUID, eventType models.KarmaEventType, delta int, at time.Time) (*models.KarmaEvent, error) {
	var ev *models.KarmaEvent
	err := m.b.run(func(st *memState) error {
		u, ok := st.users[userID]
		if !ok {
			return apperr.NotFound("user")
		}
		u.KarmaPoints += delta
		st.users[userID] = u
		ev = &models.KarmaEvent{
			ID:           uuid.New(),
			UserID:       userID,
			EventType:    eventType,
			Delta:        delta,
			BalanceAfter: u.KarmaPoints,
			CreatedAt:    at,
		}
		st.karma = append(st.karma, *ev)
		return nil
	})
	return ev, err
}

func (m memKarma) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.KarmaEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	res := []models.KarmaEvent{}
	err := m.b.run(func(st *memState) error {
		for i := len(st.karma) - 1; i >= 0 && len(res) < limit; i-- {
			if st.karma[i].UserID == userID {
				res = append(res, st.karma[i])
			}
		}
		return nil
	})
	return res, err
}

type memDirectory struct{ b memBackend }

func (m memDirectory) GroupExists(ctx context.Context, id uuid.UUID) (bool, error) {
	found := false
	err := m.b.run(func(st *memState) error {
		_, found = st.groups[id]
		return nil
	})
	return found, err
}

func (m memDirectory) MessageExists(ctx context.Context, id uuid.UUID) (bool, error) {
	found := false
	err := m.b.run(func(st *memState) error {
		_, found = st.messages[id]
		return nil
	})
	return found, err
}
