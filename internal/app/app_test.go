package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blink/internal/cache"
	"blink/internal/domain"
	"blink/internal/hub"
	"blink/internal/journey"
	"blink/internal/livestatus"
	"blink/internal/matcher"
	"blink/internal/scanner"
	"blink/internal/seed"
	"blink/internal/storage"
	"blink/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu     sync.Mutex
	events []storage.ScanEvent
}

func (r *recorder) Record(ev storage.ScanEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type fixture struct {
	app       *App
	surface   *hub.Hub
	snapshots *cache.MemorySnapshotStore
	store     *store.Memory
	recorder  *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		surface:   hub.NewHub(testLogger()),
		snapshots: cache.NewMemorySnapshotStore(),
		store:     store.NewMemory(),
		recorder:  &recorder{},
	}
	f.app = f.build()
	require.NoError(t, f.app.Launch(context.Background()))
	t.Cleanup(f.app.Shutdown)
	return f
}

func (f *fixture) build() *App {
	pub := livestatus.NewPublisher(f.surface, f.snapshots, testLogger())
	return New(f.store, seed.Default(), pub, Options{
		Journey:  journey.Options{TickInterval: time.Hour},
		Recorder: f.recorder,
	}, testLogger())
}

func TestScanToCompletedJourney(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	base := time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC)
	session := scanner.NewSession(scanner.Options{Threshold: 2}, testLogger())
	for i := 0; i < 2; i++ {
		u, accepted := session.Process(scanner.Frame{
			RawOCRStrings: []string{"BSDCITY B 7566 PAA EXPRESS"},
			At:            base.Add(time.Duration(i) * time.Second),
		})
		require.True(t, accepted)
		require.NotNil(t, u.Candidate)
		assert.Equal(t, "B7566PAA", u.Candidate.Text)
	}
	status := session.Status()
	require.True(t, status.Stable)
	assert.Equal(t, "B7566PAA", status.Text)

	res := f.app.ResolvePlate(ctx, status.Text, "scan")
	require.True(t, res.Recognized())
	require.NotNil(t, res.Route)
	assert.Equal(t, "GS", res.Route.RouteCode)
	assert.Equal(t, "Greenwich - Sektor 1.3 Loop Line", res.Route.RouteName)

	started, err := f.app.StartJourney(ctx, status.Text, "")
	require.NoError(t, err)
	assert.Equal(t, domain.JourneyOngoing, started.State)
	assert.True(t, f.app.Publisher().HasActiveJourney(ctx))
	assert.Equal(t, 1, f.surface.ActivityCount())

	stopped, err := f.app.StopJourney(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.JourneyCompleted, stopped.State)
	assert.Zero(t, stopped.Journey.EstimatedTimeRemaining)
	assert.False(t, f.app.Publisher().HasActiveJourney(ctx))
	assert.Zero(t, f.surface.ActivityCount())

	require.NoError(t, f.app.Acknowledge())
	_, ok := f.app.Active()
	assert.False(t, ok)

	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	require.NotEmpty(t, f.recorder.events)
	assert.Equal(t, "B 7566 PAA", f.recorder.events[0].DisplayPlate)
	assert.Equal(t, "GS", f.recorder.events[0].RouteCode)
}

func TestStartJourneyReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.app.StartJourney(ctx, "B 7566 PAA", "")
	require.NoError(t, err)
	second, err := f.app.StartJourney(ctx, "B7266JF", "")
	require.NoError(t, err)

	assert.Equal(t, "B7266JF", second.Journey.BusPlateNumber)
	assert.Equal(t, 1, f.surface.ActivityCount())

	j, ok := f.app.Publisher().CurrentJourneySnapshot(ctx)
	require.True(t, ok)
	assert.Equal(t, "B7266JF", j.BusPlateNumber)
}

func TestStartJourneyToStation(t *testing.T) {
	f := newFixture(t)

	got, err := f.app.StartJourney(context.Background(), "B7566PAA", "CBD Selatan")
	require.NoError(t, err)
	assert.Equal(t, "CBD Selatan", got.Journey.Destination)
	assert.Less(t, got.Journey.DistanceRemainingKm, 6.9)

	_, err = f.app.StartJourney(context.Background(), "B7566PAA", "Nowhere")
	assert.ErrorIs(t, err, journey.ErrUnknownStation)
}

func TestStartJourneyUnrecognized(t *testing.T) {
	f := newFixture(t)

	_, err := f.app.StartJourney(context.Background(), "Z 1 Q", "")
	assert.ErrorIs(t, err, ErrPlateNotRecognized)
	assert.Zero(t, f.surface.ActivityCount())

	_, err = f.app.StopJourney(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveJourney)
	assert.ErrorIs(t, f.app.Acknowledge(), ErrNoActiveJourney)
}

func TestJourneyWithoutLiveStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.surface.SetAuthorized(false)

	got, err := f.app.StartJourney(ctx, "B7566PAA", "")
	require.NoError(t, err)
	assert.Equal(t, domain.JourneyOngoing, got.State)
	assert.Zero(t, f.surface.ActivityCount())
	assert.False(t, f.app.Publisher().HasActiveJourney(ctx))

	stopped, err := f.app.StopJourney(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.JourneyCompleted, stopped.State)
}

func TestLaunchClearsOrphanedSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.snapshots.Set(ctx, &livestatus.Snapshot{
		Version:    livestatus.SnapshotVersion,
		ActivityID: "gone",
		Journey:    domain.Journey{BusPlateNumber: "B7566PAA", EstimatedTimeRemaining: time.Minute, DistanceRemainingKm: 1},
	}))

	restarted := f.build()
	t.Cleanup(restarted.Shutdown)
	require.NoError(t, restarted.Launch(ctx))

	assert.False(t, restarted.Publisher().HasActiveJourney(ctx))
	_, ok := restarted.Active()
	assert.False(t, ok)
}

func TestLaunchResumesSurvivingJourney(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.app.StartJourney(ctx, "B7566PAA", "")
	require.NoError(t, err)
	f.app.Shutdown()

	restarted := f.build()
	t.Cleanup(restarted.Shutdown)
	require.NoError(t, restarted.Launch(ctx))

	active, ok := restarted.Active()
	require.True(t, ok)
	assert.Equal(t, domain.JourneyOngoing, active.State)
	assert.Equal(t, "B7566PAA", active.Journey.BusPlateNumber)
	assert.Equal(t, 1, f.surface.ActivityCount())

	_, err = restarted.StopJourney(ctx)
	require.NoError(t, err)
	assert.Zero(t, f.surface.ActivityCount())
	assert.False(t, restarted.Publisher().HasActiveJourney(ctx))
}

func (f *fixture) tick(t *testing.T, a *App, n int) {
	t.Helper()
	a.mu.Lock()
	engine := a.engine
	a.mu.Unlock()
	require.NotNil(t, engine)
	for i := 0; i < n; i++ {
		_, err := engine.Tick(context.Background())
		require.NoError(t, err)
	}
}

func TestStopAfterSurfaceDismissedActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.app.StartJourney(ctx, "B7566PAA", "")
	require.NoError(t, err)
	id, ok := f.app.Publisher().ActiveID()
	require.True(t, ok)
	require.NoError(t, f.surface.End(ctx, id, domain.LiveState{}, livestatus.DismissDefault))

	stopped, err := f.app.StopJourney(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.JourneyCompleted, stopped.State)
	assert.False(t, f.app.Publisher().HasActiveJourney(ctx))
	require.NoError(t, f.app.Acknowledge())
}

func TestLaunchResumesFromRemainingTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.app.StartJourney(ctx, "B7566PAA", "")
	require.NoError(t, err)
	f.tick(t, f.app, 10)

	before, ok := f.app.Active()
	require.True(t, ok)
	require.Equal(t, 55*time.Minute, before.Journey.EstimatedTimeRemaining)
	f.app.Shutdown()

	restarted := f.build()
	t.Cleanup(restarted.Shutdown)
	require.NoError(t, restarted.Launch(ctx))

	after, ok := restarted.Active()
	require.True(t, ok)
	assert.Equal(t, 55*time.Minute, after.Journey.EstimatedTimeRemaining)
	assert.InDelta(t, before.Journey.DistanceRemainingKm, after.Journey.DistanceRemainingKm, 1e-9)

	f.tick(t, restarted, 1)
	activities, err := f.surface.Active(ctx)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, 54*time.Minute, activities[0].State.EstimatedTimeRemaining)
	assert.Less(t, activities[0].State.DistanceRemainingKm, before.Journey.DistanceRemainingKm)
}

func TestParseDeepLink(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plate", "blink://journey/B7566PAA", "B7566PAA", false},
		{"spaced plate", "blink://journey/B%207566%20PAA", "B7566PAA", false},
		{"no plate", "blink://journey", "", false},
		{"wrong host", "blink://routes/GS", "", true},
		{"wrong scheme", "https://journey/B7566PAA", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDeepLink(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDeepLink)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenDeepLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.app.OpenDeepLink(ctx, "blink://journey/B7266JF")
	require.NoError(t, err)
	assert.Nil(t, res.Journey)
	require.NotNil(t, res.Match)
	assert.Equal(t, matcher.Matched, res.Match.Outcome)

	_, err = f.app.OpenDeepLink(ctx, "blink://journey")
	assert.ErrorIs(t, err, ErrNoActiveJourney)

	_, err = f.app.StartJourney(ctx, "B7566PAA", "")
	require.NoError(t, err)

	res, err = f.app.OpenDeepLink(ctx, "blink://journey/b7566paa")
	require.NoError(t, err)
	require.NotNil(t, res.Journey)
	assert.Equal(t, domain.JourneyOngoing, res.State)
	assert.Equal(t, "GS", res.Journey.RouteCode)

	_, err = f.app.OpenDeepLink(ctx, "blink://journey/ZZ1Q")
	assert.ErrorIs(t, err, ErrPlateNotRecognized)
}
