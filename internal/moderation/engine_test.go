package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tullo/trust/internal/apperr"
	"github.com/tullo/trust/internal/clock"
	"github.com/tullo/trust/internal/gate"
	"github.com/tullo/trust/internal/karma"
	"github.com/tullo/trust/internal/models"
	"github.com/tullo/trust/internal/repository"
	"github.com/tullo/trust/internal/warning"
)

type recorder struct {
	mu            sync.Mutex
	notifications []models.Notification
	emails        []models.Email
	err           error
}

func (r *recorder) Send(ctx context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
	return r.err
}

func (r *recorder) types(userID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notifications {
		if n.UserID == userID {
			out = append(out, n.Type)
		}
	}
	return out
}

type mailRecorder struct {
	*recorder
}

func (m mailRecorder) Send(ctx context.Context, e models.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, e)
	return m.err
}

func (r *recorder) templates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.emails {
		out = append(out, e.Template)
	}
	return out
}

type fixture struct {
	store    *repository.MemoryStore
	clock    *clock.Fake
	rec      *recorder
	engine   *Engine
	reporter uuid.UUID
	target   uuid.UUID
	mod      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	clk := clock.NewFake(time.Date(2024, 4, 10, 15, 0, 0, 0, time.UTC))
	f := &fixture{
		store:    store,
		clock:    clk,
		rec:      &recorder{},
		reporter: uuid.New(),
		target:   uuid.New(),
		mod:      uuid.New(),
	}
	store.AddUser(models.User{ID: f.reporter, Email: "alice@example.com", DisplayName: "Alice", EmailVerified: true, Role: models.RoleUser})
	store.AddUser(models.User{ID: f.target, Email: "bob@example.com", DisplayName: "Bob", EmailVerified: true, Role: models.RoleUser})
	store.AddUser(models.User{ID: f.mod, Email: "mod@example.com", DisplayName: "Mod", Role: models.RoleModerator})

	ledger := karma.NewLedger(store, clk, nil)
	f.engine = NewEngine(Config{
		Store:    store,
		Warnings: warning.NewTracker(store, ledger, clk, nil),
		Ledger:   ledger,
		Notifier: f.rec,
		Mailer:   mailRecorder{f.rec},
		Clock:    clk,
	})
	return f
}

func (f *fixture) report(t *testing.T) uuid.UUID {
	t.Helper()
	now := f.clock.Now()
	rep := &models.Report{
		ID:             uuid.New(),
		ReporterID:     f.reporter,
		ReportedUserID: f.target,
		Reason:         models.ReasonHarassment,
		Description:    "rude in chat",
		Status:         models.StatusPending,
		Priority:       models.PriorityMedium,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.store.Repos().Reports.Create(context.Background(), rep))
	return rep.ID
}

func (f *fixture) resolve(reportID uuid.UUID, action string, days int, notes string) (*Resolution, error) {
	return f.engine.Resolve(context.Background(), ResolveInput{
		ReportID:     reportID,
		ModeratorID:  f.mod,
		Action:       action,
		DurationDays: days,
		Notes:        notes,
	})
}

func (f *fixture) user(t *testing.T, id uuid.UUID) *models.User {
	t.Helper()
	u, err := f.store.Repos().Users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) pending(t *testing.T, reportID uuid.UUID) bool {
	t.Helper()
	rep, err := f.store.Repos().Reports.GetByID(context.Background(), reportID)
	require.NoError(t, err)
	return rep.Status == models.StatusPending && rep.ResolvedAt == nil
}

func TestEngine_Resolve_Warn(t *testing.T) {
	f := newFixture(t)
	reportID := f.report(t)

	res, err := f.resolve(reportID, "warn", 0, "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusResolved, res.Report.Status)
	assert.Equal(t, f.mod, *res.Report.ResolvedBy)
	assert.Equal(t, models.ActionWarn, res.Log.ActionType)
	assert.Equal(t, string(models.ReasonHarassment), res.Log.Reason, "reason falls back to report reason")
	assert.Equal(t, 1, res.ActiveWarnings)
	assert.Nil(t, res.AutoBanLog)
	assert.Equal(t, -15, res.NewKarma)

	u := f.user(t, f.target)
	assert.False(t, u.Banned)
	assert.Equal(t, 1, u.Warnings)
	assert.Equal(t, -15, u.KarmaPoints)

	assert.Equal(t, []string{models.NotifyReportResolved}, f.rec.types(f.reporter))
	assert.Equal(t, []string{models.NotifyUserWarned}, f.rec.types(f.target))
	assert.Equal(t, []string{models.EmailAccountWarned}, f.rec.templates())
}

func TestEngine_Resolve_ThreeWarningsAutoBan(t *testing.T) {
	f := newFixture(t)

	var last *Resolution
	for i := 0; i < 3; i++ {
		res, err := f.resolve(f.report(t), "warn", 0, "spamming")
		require.NoError(t, err)
		last = res
		f.clock.Advance(time.Hour)
	}

	require.NotNil(t, last.AutoBanLog)
	assert.Equal(t, 3, last.ActiveWarnings)
	assert.Equal(t, models.AutoBanReason, last.AutoBanLog.Reason)

	u := f.user(t, f.target)
	assert.True(t, u.Banned)
	assert.Equal(t, 3, u.Warnings)
	assert.Equal(t, -95, u.KarmaPoints)
	assert.False(t, gate.Evaluate(u, f.clock.Now()).Allowed)

	logs, err := f.engine.Logs(context.Background(), f.target, 10)
	require.NoError(t, err)
	require.Len(t, logs, 4)
	assert.Equal(t, models.ActionBan, logs[0].ActionType)
	assert.Equal(t, models.AutoBanReason, logs[0].Reason)

	assert.Contains(t, f.rec.types(f.target), models.NotifyUserBanned)
	assert.Contains(t, f.rec.templates(), models.EmailAccountBanned)
}

func TestEngine_Resolve_Suspend(t *testing.T) {
	f := newFixture(t)
	reportID := f.report(t)
	now := f.clock.Now()

	res, err := f.resolve(reportID, "suspend", 7, "cool off")
	require.NoError(t, err)
	require.NotNil(t, res.Log.DurationDays)
	assert.Equal(t, 7, *res.Log.DurationDays)
	assert.Equal(t, "cool off", res.Log.Reason)

	u := f.user(t, f.target)
	require.NotNil(t, u.SuspendedUntil)
	assert.Equal(t, now.Add(7*24*time.Hour), *u.SuspendedUntil)
	assert.Equal(t, -20, u.KarmaPoints)
	assert.Equal(t, 1, u.TokenVersion)

	assert.False(t, gate.Evaluate(u, now.Add(7*24*time.Hour-time.Second)).Allowed)
	assert.True(t, gate.Evaluate(u, now.Add(7*24*time.Hour)).Allowed)

	assert.Equal(t, []string{models.NotifyUserSuspended}, f.rec.types(f.target))
	assert.Equal(t, []string{models.EmailAccountSuspended}, f.rec.templates())
}

func TestEngine_Resolve_Ban(t *testing.T) {
	f := newFixture(t)
	reportID := f.report(t)

	res, err := f.resolve(reportID, "ban", 0, "repeated harassment")
	require.NoError(t, err)
	assert.Equal(t, models.ActionBan, res.Log.ActionType)
	require.NotNil(t, res.Report.ResolutionNotes)
	assert.Equal(t, "repeated harassment", *res.Report.ResolutionNotes)

	u := f.user(t, f.target)
	assert.True(t, u.Banned)
	require.NotNil(t, u.BannedReason)
	assert.Equal(t, "repeated harassment", *u.BannedReason)
	assert.Equal(t, -50, u.KarmaPoints)
	assert.Equal(t, 1, u.TokenVersion)

	d := gate.Evaluate(u, f.clock.Now().Add(365*24*time.Hour))
	assert.False(t, d.Allowed)
	assert.Equal(t, gate.ReasonBanned, d.Reason)

	assert.Equal(t, []string{models.NotifyReportResolved}, f.rec.types(f.reporter))
	assert.Equal(t, []string{models.NotifyUserBanned}, f.rec.types(f.target))
	assert.Equal(t, []string{models.EmailAccountBanned}, f.rec.templates())
}

func TestEngine_Resolve_Dismiss(t *testing.T) {
	f := newFixture(t)
	reportID := f.report(t)

	res, err := f.resolve(reportID, "no_action", 0, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDismissed, res.Report.Status)
	assert.Equal(t, models.ActionDismissReport, res.Log.ActionType)

	u := f.user(t, f.target)
	assert.Equal(t, 0, u.KarmaPoints)
	assert.False(t, u.Banned)

	assert.Equal(t, []string{models.NotifyReportResolved}, f.rec.types(f.reporter))
	assert.Empty(t, f.rec.types(f.target))
	assert.Empty(t, f.rec.templates())

	logs, err := f.engine.ReportLogs(context.Background(), reportID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestEngine_Resolve_AlreadyResolved(t *testing.T) {
	f := newFixture(t)
	reportID := f.report(t)

	_, err := f.resolve(reportID, "dismiss", 0, "")
	require.NoError(t, err)

	_, err = f.resolve(reportID, "ban", 0, "")
	assert.True(t, apperr.Is(err, apperr.CodeConflict), "got %v", err)
	assert.False(t, f.user(t, f.target).Banned)
}

func TestEngine_Resolve_UnknownReport(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolve(uuid.New(), "warn", 0, "")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound), "got %v", err)
}

func TestEngine_Resolve_UnknownAction(t *testing.T) {
	f := newFixture(t)
	reportID := f.report(t)

	_, err := f.resolve(reportID, "mute", 0, "")
	assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)
	assert.True(t, f.pending(t, reportID))
}

func TestEngine_Resolve_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	rep := &models.Report{
		ID:             uuid.New(),
		ReporterID:     f.reporter,
		ReportedUserID: uuid.New(), // no such user
		Reason:         models.ReasonSpam,
		Description:    "ghost",
		Status:         models.StatusPending,
		Priority:       models.PriorityLow,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.store.Repos().Reports.Create(context.Background(), rep))

	_, err := f.resolve(rep.ID, "ban", 0, "")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound), "got %v", err)
	assert.True(t, f.pending(t, rep.ID))

	logs, err := f.engine.ReportLogs(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Empty(t, f.rec.types(f.reporter))
}

func TestEngine_Resolve_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	reportID := f.report(t)

	const n = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.resolve(reportID, "warn", 0, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperr.Is(err, apperr.CodeConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)

	u := f.user(t, f.target)
	assert.Equal(t, 1, u.Warnings)
	assert.Equal(t, -15, u.KarmaPoints)

	logs, err := f.engine.ReportLogs(context.Background(), reportID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestEngine_Resolve_ConcurrentWarnsTriggerOneAutoBan(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 2; i++ {
		_, err := f.resolve(f.report(t), "warn", 0, "")
		require.NoError(t, err)
	}
	first, second := f.report(t), f.report(t)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []uuid.UUID{first, second} {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.resolve(id, "warn", 0, "")
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	u := f.user(t, f.target)
	assert.True(t, u.Banned)
	assert.Equal(t, 4, u.Warnings)
	assert.Equal(t, -110, u.KarmaPoints)

	logs, err := f.engine.Logs(context.Background(), f.target, 50)
	require.NoError(t, err)
	autoBans := 0
	for _, l := range logs {
		if l.ActionType == models.ActionBan && l.Reason == models.AutoBanReason {
			autoBans++
		}
	}
	assert.Equal(t, 1, autoBans)
}

func TestEngine_Resolve_DeliveryFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.rec.err = errors.New("redis unavailable")
	reportID := f.report(t)

	res, err := f.resolve(reportID, "ban", 0, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, res.Report.Status)
	assert.True(t, f.user(t, f.target).Banned)
	assert.NotEmpty(t, f.rec.templates(), "delivery was attempted")
}

func TestEngine_Resolve_UnverifiedEmailGetsNoMail(t *testing.T) {
	f := newFixture(t)
	f.store.AddUser(models.User{ID: f.target, Email: "bob@example.com", DisplayName: "Bob", Role: models.RoleUser})
	reportID := f.report(t)

	_, err := f.resolve(reportID, "warn", 0, "")
	require.NoError(t, err)
	assert.Equal(t, []string{models.NotifyUserWarned}, f.rec.types(f.target))
	assert.Empty(t, f.rec.templates())
}
