package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/client/migrations"
	"github.com/dmitrijs2005/cuesync/internal/client/router"
	"github.com/dmitrijs2005/cuesync/internal/client/store"
	"github.com/dmitrijs2005/cuesync/internal/client/syncer"
	"github.com/dmitrijs2005/cuesync/internal/common"
	"github.com/dmitrijs2005/cuesync/internal/events"
	"github.com/dmitrijs2005/cuesync/internal/logging"
	"github.com/dmitrijs2005/cuesync/internal/merge"
	"github.com/dmitrijs2005/cuesync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadRemote is a server that never answers.
type deadRemote struct{}

func (deadRemote) Ping(context.Context) error { return common.ErrUnreachable }
func (deadRemote) Get(context.Context, models.Kind, string) (models.Record, error) {
	return nil, common.ErrUnreachable
}
func (deadRemote) List(context.Context, models.Kind, *time.Time, bool) ([]models.Record, error) {
	return nil, common.ErrUnreachable
}
func (deadRemote) Create(context.Context, models.Record) (models.Record, error) {
	return nil, common.ErrUnreachable
}
func (deadRemote) Update(context.Context, models.Kind, string, merge.Request) (*merge.Outcome, error) {
	return nil, common.ErrUnreachable
}
func (deadRemote) Delete(context.Context, models.Kind, string) error { return common.ErrUnreachable }

type fakePresence struct {
	mu        sync.Mutex
	connected bool
	sent      []string
}

func (f *fakePresence) SendPresence(editing bool, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if editing {
		f.sent = append(f.sent, "start "+id)
	} else {
		f.sent = append(f.sent, "stop "+id)
	}
	if !f.connected {
		return common.ErrUnreachable
	}
	return nil
}

func (f *fakePresence) Connected() bool { return f.connected }

// fakeRecords scripts the router for paths an offline store cannot reach.
type fakeRecords struct {
	rec      models.Record
	outcomes []*merge.Outcome
	requests []merge.Request
	result   *syncer.Result
	syncErr  error
	syncCtx  context.Context
}

func (f *fakeRecords) Mode() router.Mode { return router.ModeOnline }
func (f *fakeRecords) Get(_ context.Context, kind models.Kind, id string) (models.Record, error) {
	if f.rec == nil || f.rec.Kind() != kind || f.rec.RecordID() != id {
		return nil, common.ErrorNotFound
	}
	return f.rec.Clone(), nil
}
func (f *fakeRecords) List(context.Context, models.Kind) ([]models.Record, error) { return nil, nil }
func (f *fakeRecords) Create(_ context.Context, rec models.Record) (models.Record, error) {
	return rec, nil
}
func (f *fakeRecords) Update(_ context.Context, _ models.Kind, _ string, req merge.Request) (*merge.Outcome, error) {
	f.requests = append(f.requests, req)
	out := f.outcomes[0]
	f.outcomes = f.outcomes[1:]
	return out, nil
}
func (f *fakeRecords) Delete(context.Context, models.Kind, string) error { return nil }
func (f *fakeRecords) SyncNow(ctx context.Context) (*syncer.Result, error) {
	f.syncCtx = ctx
	return f.result, f.syncErr
}

type testApp struct {
	*App
	store    *store.Store
	out      *bytes.Buffer
	presence *fakePresence
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	db, err := migrations.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st := store.New(db)
	require.NoError(t, st.Init(ctx))

	remote := deadRemote{}
	sy := syncer.New(st, remote, logging.Nop())
	rt := router.New(st, remote, sy, logging.Nop(), router.Options{})

	out := &bytes.Buffer{}
	fp := &fakePresence{}
	a := &App{
		logger:      logging.Nop(),
		authService: &fakeAuth{},
		records:     rt,
		pending:     st,
		presence:    fp,
		reader:      bufio.NewReader(strings.NewReader("")),
		out:         out,
		userName:    "dana",
		loggedIn:    true,
		announced:   router.ModeOffline,
	}
	return &testApp{App: a, store: st, out: out, presence: fp}
}

func (ta *testApp) input(lines ...string) {
	ta.reader = bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func TestAddCharacterAndCue_OfflineAreQueued(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	ta.input("Ann", "Jane Doe", "")
	require.NoError(t, ta.AddCharacter(ctx))

	chars, err := ta.store.List(ctx, models.KindCharacter, nil)
	require.NoError(t, err)
	require.Len(t, chars, 1)
	ch := chars[0].(*models.Character)
	assert.Equal(t, "Ann", ch.Name)
	assert.Equal(t, "Jane Doe", ch.Actor)
	assert.Contains(t, ta.out.String(), "Created character "+ch.ID)

	ta.input(ch.ID, "R1", "01:00:00:00", "01:00:02:10", "Hello there", "", "", "2")
	require.NoError(t, ta.AddCue(ctx))

	cues, err := ta.store.List(ctx, models.KindCue, nil)
	require.NoError(t, err)
	require.Len(t, cues, 1)
	cue := cues[0].(*models.Cue)
	assert.Equal(t, ch.ID, cue.CharacterID)
	assert.Equal(t, models.StatusSpotted, cue.Status)
	assert.Equal(t, 2, cue.Priority)

	n, err := ta.store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ta.out.Reset()
	require.NoError(t, ta.Cues(ctx, ch.ID))
	assert.Contains(t, ta.out.String(), "Hello there")

	ta.out.Reset()
	require.NoError(t, ta.Cues(ctx, "someone-else"))
	assert.NotContains(t, ta.out.String(), "Hello there")
}

func TestAdd_InvalidInputIsRejected(t *testing.T) {
	ta := newTestApp(t)

	ta.input("", "", "")
	assert.ErrorIs(t, ta.AddCharacter(context.Background()), common.ErrorValidation)

	ta.input("ch1", "R1", "soon", "", "", "", "", "")
	assert.ErrorIs(t, ta.AddCue(context.Background()), common.ErrorValidation)
}

func TestEdit_ChangesFieldsAndAnnouncesPresence(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()
	_, err := ta.store.Create(ctx, &models.Character{ID: "ch1", Name: "Ann", Notes: "old"})
	require.NoError(t, err)

	// keep name, set actor, clear notes
	ta.input("", "Jane", "-")
	require.NoError(t, ta.Edit(ctx, "ch1"))

	got, err := ta.store.Get(ctx, models.KindCharacter, "ch1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.(*models.Character).Name)
	assert.Equal(t, "Jane", got.(*models.Character).Actor)
	assert.Empty(t, got.(*models.Character).Notes)

	assert.Equal(t, []string{"start ch1", "stop ch1"}, ta.presence.sent)
	assert.Contains(t, ta.out.String(), "Saved")
}

func TestEdit_NothingChanged(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()
	_, err := ta.store.Create(ctx, &models.Character{ID: "ch1", Name: "Ann"})
	require.NoError(t, err)

	ta.input("Ann", "", "")
	require.NoError(t, ta.Edit(ctx, "ch1"))
	assert.Contains(t, ta.out.String(), "Nothing changed")

	n, err := ta.store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func conflictOutcome(version time.Time) *merge.Outcome {
	return &merge.Outcome{
		Status:            merge.StatusConflict,
		Record:            &models.Cue{ID: "c1", Status: models.StatusPrinted, UpdatedAt: version},
		ConflictingFields: []string{"status"},
	}
}

func TestEdit_ConflictOverwrite(t *testing.T) {
	ta := newTestApp(t)
	v1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	v2 := v1.Add(time.Minute)

	fr := &fakeRecords{
		rec: &models.Cue{ID: "c1", Status: models.StatusSpotted, UpdatedAt: v1},
		outcomes: []*merge.Outcome{
			conflictOutcome(v2),
			{Status: merge.StatusApplied, Record: &models.Cue{ID: "c1", Status: models.StatusApproved}},
		},
	}
	ta.records = fr

	// six fields kept, status changed, priority kept, then the decision
	ta.input("", "", "", "", "", "", "approved", "", "y")
	require.NoError(t, ta.Edit(context.Background(), "c1"))

	require.Len(t, fr.requests, 2)
	first, second := fr.requests[0], fr.requests[1]
	assert.Equal(t, models.Fields{"status": "approved"}, first.Fields)
	assert.Equal(t, "spotted", first.Base["status"])
	assert.True(t, first.Version.Equal(v1))

	assert.Nil(t, second.Base)
	assert.True(t, second.Version.Equal(v2))
	assert.Contains(t, ta.out.String(), `status: yours "approved", theirs "printed"`)
	assert.Contains(t, ta.out.String(), "Saved")
}

func TestEdit_ConflictDiscard(t *testing.T) {
	ta := newTestApp(t)
	v1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	fr := &fakeRecords{
		rec:      &models.Cue{ID: "c1", Status: models.StatusSpotted, UpdatedAt: v1},
		outcomes: []*merge.Outcome{conflictOutcome(v1.Add(time.Minute))},
	}
	ta.records = fr

	ta.input("", "", "", "", "", "", "approved", "", "n")
	require.NoError(t, ta.Edit(context.Background(), "c1"))

	assert.Len(t, fr.requests, 1)
	assert.Contains(t, ta.out.String(), "Edit discarded")
}

func TestRemoveAndShow(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()
	_, err := ta.store.Create(ctx, &models.Cue{ID: "c1", Dialogue: "Go", Status: models.StatusSpotted})
	require.NoError(t, err)

	require.NoError(t, ta.Show(ctx, "c1"))
	assert.Contains(t, ta.out.String(), "dialogue")
	assert.Contains(t, ta.out.String(), "Go")

	require.NoError(t, ta.Remove(ctx, "c1"))
	assert.Contains(t, ta.out.String(), "Deleted cue c1")

	assert.ErrorIs(t, ta.Show(ctx, "c1"), common.ErrorNotFound)
	assert.ErrorIs(t, ta.Remove(ctx, "c1"), common.ErrorNotFound)
}

func TestStatus(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()
	_, err := ta.store.Create(ctx, &models.Character{ID: "ch1", Name: "Ann"})
	require.NoError(t, err)

	require.NoError(t, ta.Status(ctx))
	out := ta.out.String()
	assert.Contains(t, out, "user: dana")
	assert.Contains(t, out, "mode: offline")
	assert.Contains(t, out, "pending changes: 1")
	assert.Contains(t, out, "push channel: disconnected")
	assert.Equal(t, "(dana offline)", ta.getStatus())
}

func TestSync_Unreachable(t *testing.T) {
	ta := newTestApp(t)

	require.NoError(t, ta.Sync(context.Background()))
	assert.Contains(t, ta.out.String(), "Server unreachable")
	assert.False(t, ta.syncing.Load())
}

func TestSync_PrintsSummaryAndIsInteractive(t *testing.T) {
	ta := newTestApp(t)
	fr := &fakeRecords{result: &syncer.Result{Pushed: 2, Pulled: 1, Conflicted: 1, Errors: []string{"update cue c1: unresolved"}}}
	ta.records = fr

	require.NoError(t, ta.Sync(context.Background()))
	assert.True(t, interactive(fr.syncCtx))
	assert.Contains(t, ta.out.String(), "Pushed 2, pulled 1, conflicts 1")
	assert.Contains(t, ta.out.String(), "failed: update cue c1: unresolved")

	fr.syncErr = common.ErrSyncInProgress
	require.NoError(t, ta.Sync(context.Background()))
	assert.Contains(t, ta.out.String(), "already running")
}

func testConflict() syncer.Conflict {
	return syncer.Conflict{
		Kind:          models.KindCue,
		ID:            "c1",
		Local:         &models.Cue{ID: "c1", Status: models.StatusApproved},
		Authoritative: &models.Cue{ID: "c1", Status: models.StatusPrinted},
		Fields:        []string{"status"},
	}
}

func TestResolveConflict_BackgroundDefersAndNoticesOnce(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	_, err := ta.resolveConflict(ctx, testConflict())
	assert.ErrorIs(t, err, errNeedsDecision)
	_, err = ta.resolveConflict(ctx, testConflict())
	assert.ErrorIs(t, err, errNeedsDecision)

	assert.Equal(t, 1, strings.Count(ta.out.String(), "run 'sync' to decide"))
}

func TestResolveConflict_InteractiveAsks(t *testing.T) {
	ta := newTestApp(t)
	ctx := withInteractive(context.Background())

	ta.input("y")
	keep, err := ta.resolveConflict(ctx, testConflict())
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Contains(t, ta.out.String(), `status: yours "approved", server "printed"`)

	ta.input("")
	keep, err = ta.resolveConflict(ctx, testConflict())
	require.NoError(t, err)
	assert.False(t, keep)
}

func TestModeChanged_AnnouncesOnlyRealChanges(t *testing.T) {
	ta := newTestApp(t)

	ta.modeChanged(router.ModeOffline, router.ModeSyncing)
	ta.modeChanged(router.ModeSyncing, router.ModeOnline)
	ta.modeChanged(router.ModeOnline, router.ModeSyncing)
	ta.modeChanged(router.ModeSyncing, router.ModeOnline)
	ta.modeChanged(router.ModeOnline, router.ModeOffline)

	assert.Equal(t, "Switched to online mode\nSwitched to offline mode\n", ta.out.String())
}

func TestPresenceChanged(t *testing.T) {
	ta := newTestApp(t)

	ta.presenceChanged(events.Presence(true, "c1", "sam", "other"))
	ta.presenceChanged(events.Presence(false, "c1", "sam", "other"))

	assert.Equal(t, "sam is editing c1\nsam stopped editing c1\n", ta.out.String())
}

func TestProgress_OnlyDuringForegroundSync(t *testing.T) {
	ta := newTestApp(t)

	ta.progress(1, 5, "reading journal")
	assert.Empty(t, ta.out.String())

	ta.syncing.Store(true)
	ta.progress(4, 5, "pulling changes")
	assert.Equal(t, "[4/5] pulling changes\n", ta.out.String())
}
