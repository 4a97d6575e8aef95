package report

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
	"github.com/tullo/trust/internal/models"
	"github.com/tullo/trust/internal/repository"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (d *recordingDispatcher) Send(ctx context.Context, n models.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return d.err
}

type fixture struct {
	store    *repository.MemoryStore
	clock    *clock.Fake
	notifier *recordingDispatcher
	registry *Registry
	alice    uuid.UUID
	bob      uuid.UUID
	mods     []uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	clk := clock.NewFake(time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC))
	f := &fixture{
		store:    store,
		clock:    clk,
		notifier: &recordingDispatcher{},
		alice:    uuid.New(),
		bob:      uuid.New(),
		mods:     []uuid.UUID{uuid.New(), uuid.New()},
	}
	store.AddUser(models.User{ID: f.alice, Email: "alice@example.com", Role: models.RoleUser})
	store.AddUser(models.User{ID: f.bob, Email: "bob@example.com", Role: models.RoleUser})
	store.AddUser(models.User{ID: f.mods[0], Email: "mod@example.com", Role: models.RoleModerator})
	store.AddUser(models.User{ID: f.mods[1], Email: "admin@example.com", Role: models.RoleAdmin})
	f.registry = NewRegistry(store, f.notifier, clk, nil)
	return f
}

func (f *fixture) input() SubmitInput {
	return SubmitInput{
		ReporterID:     f.alice,
		ReportedUserID: f.bob,
		Reason:         models.ReasonSpam,
		Description:    "sends links to everyone",
	}
}

func TestRegistry_Submit(t *testing.T) {
	f := newFixture(t)

	rep, err := f.registry.Submit(context.Background(), f.input())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, rep.Status)
	assert.Equal(t, models.PriorityMedium, rep.Priority)
	assert.Nil(t, rep.ResolvedAt)
	assert.Equal(t, f.clock.Now(), rep.CreatedAt)

	stored, err := f.registry.Get(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.ID, stored.ID)

	require.Len(t, f.notifier.sent, 2)
	notified := []uuid.UUID{f.notifier.sent[0].UserID, f.notifier.sent[1].UserID}
	assert.ElementsMatch(t, f.mods, notified)
	for _, n := range f.notifier.sent {
		assert.Equal(t, models.NotifyNewReport, n.Type)
		assert.Equal(t, rep.ID, n.Payload["report_id"])
	}
}

func TestRegistry_Submit_Validation(t *testing.T) {
	f := newFixture(t)
	bad := models.ReportPriority("asap")

	tests := []struct {
		name   string
		mutate func(in *SubmitInput)
	}{
		{"self report", func(in *SubmitInput) { in.ReportedUserID = in.ReporterID }},
		{"unknown reason", func(in *SubmitInput) { in.Reason = "rude" }},
		{"blank description", func(in *SubmitInput) { in.Description = "   " }},
		{"unknown priority", func(in *SubmitInput) { in.Priority = &bad }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input()
			tt.mutate(&in)
			_, err := f.registry.Submit(context.Background(), in)
			assert.True(t, apperr.Is(err, apperr.CodeValidation), "got %v", err)
		})
	}
	assert.Empty(t, f.notifier.sent)
}

func TestRegistry_Submit_NotFound(t *testing.T) {
	f := newFixture(t)
	missing := uuid.New()

	tests := []struct {
		name   string
		mutate func(in *SubmitInput)
	}{
		{"reported user", func(in *SubmitInput) { in.ReportedUserID = missing }},
		{"group", func(in *SubmitInput) { in.ReportedGroupID = &missing }},
		{"message", func(in *SubmitInput) { in.ReportedMessageID = &missing }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input()
			tt.mutate(&in)
			_, err := f.registry.Submit(context.Background(), in)
			assert.True(t, apperr.Is(err, apperr.CodeNotFound), "got %v", err)
		})
	}
}

func TestRegistry_Submit_WithContext(t *testing.T) {
	f := newFixture(t)
	group, msg := uuid.New(), uuid.New()
	f.store.AddGroup(group)
	f.store.AddMessage(msg)
	urgent := models.PriorityUrgent

	in := f.input()
	in.ReportedGroupID = &group
	in.ReportedMessageID = &msg
	in.Priority = &urgent

	rep, err := f.registry.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityUrgent, rep.Priority)
	assert.Equal(t, &group, rep.ReportedGroupID)
}

func TestRegistry_Submit_NotifierFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("redis down")

	rep, err := f.registry.Submit(context.Background(), f.input())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, rep.Status)
}

func TestRegistry_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	submit := func(p models.ReportPriority) *models.Report {
		in := f.input()
		in.Priority = &p
		rep, err := f.registry.Submit(ctx, in)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
		return rep
	}
	low := submit(models.PriorityLow)
	urgent := submit(models.PriorityUrgent)
	medOld := submit(models.PriorityMedium)
	medNew := submit(models.PriorityMedium)

	got, err := f.registry.List(ctx, models.ReportFilter{})
	require.NoError(t, err)
	ids := make([]uuid.UUID, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []uuid.UUID{urgent.ID, medNew.ID, medOld.ID, low.ID}, ids)

	p := models.PriorityMedium
	got, err = f.registry.List(ctx, models.ReportFilter{Priority: &p, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, medNew.ID, got[0].ID)

	bad := models.ReportStatus("open")
	_, err = f.registry.List(ctx, models.ReportFilter{Status: &bad})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}
