package alerts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockResolver struct {
	timezone string
	calls    int
}

func (m *mockResolver) Resolve(lat, lon float64) string {
	m.calls++
	if m.timezone == "" {
		return "UTC"
	}
	return m.timezone
}

// fakeRunner records registrations and lets tests fire jobs on demand.
type fakeRunner struct {
	loc         *time.Location
	specs       []string
	jobs        []func()
	started     bool
	stopped     bool
	addErr      error
	panicOnStop bool
}

func (f *fakeRunner) AddFunc(spec string, cmd func()) (cron.EntryID, error) {
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.specs = append(f.specs, spec)
	f.jobs = append(f.jobs, cmd)
	return cron.EntryID(len(f.jobs)), nil
}

func (f *fakeRunner) Start() { f.started = true }

func (f *fakeRunner) Stop() context.Context {
	if f.panicOnStop {
		panic("stop failed")
	}
	f.stopped = true
	return context.Background()
}

func newTestScheduler(resolver TimezoneResolver) (*Scheduler, *[]*fakeRunner) {
	s := NewScheduler(resolver, slog.New(slog.NewTextHandler(io.Discard, nil)))
	runners := &[]*fakeRunner{}
	s.newRunner = func(loc *time.Location) cronRunner {
		r := &fakeRunner{loc: loc}
		*runners = append(*runners, r)
		return r
	}
	return s, runners
}

func TestEnsureScheduledRegistersDailyNoonJob(t *testing.T) {
	s, runners := newTestScheduler(&mockResolver{timezone: "Europe/Moscow"})

	var gotLat, gotLon float64
	err := s.EnsureScheduled("55.75,37.62", 55.751, 37.618, func(lat, lon float64) {
		gotLat, gotLon = lat, lon
	})

	require.NoError(t, err)
	require.Len(t, *runners, 1)

	runner := (*runners)[0]
	assert.Equal(t, []string{"0 12 * * *"}, runner.specs)
	assert.Equal(t, "Europe/Moscow", runner.loc.String())
	assert.True(t, runner.started)
	assert.Equal(t, 1, s.Count())

	// The registered job receives the coordinates it was registered with.
	runner.jobs[0]()
	assert.Equal(t, 55.751, gotLat)
	assert.Equal(t, 37.618, gotLon)
}

func TestEnsureScheduledIsIdempotent(t *testing.T) {
	s, runners := newTestScheduler(&mockResolver{})

	noop := func(lat, lon float64) {}
	require.NoError(t, s.EnsureScheduled("55.75,37.62", 55.75, 37.62, noop))
	require.NoError(t, s.EnsureScheduled("55.75,37.62", 55.75, 37.62, noop))

	assert.Equal(t, 1, s.Count())
	assert.Len(t, *runners, 1)
}

func TestEnsureScheduledDistinctBuckets(t *testing.T) {
	s, runners := newTestScheduler(&mockResolver{})

	noop := func(lat, lon float64) {}
	require.NoError(t, s.EnsureScheduled("55.75,37.62", 55.75, 37.62, noop))
	require.NoError(t, s.EnsureScheduled("48.85,2.35", 48.85, 2.35, noop))

	assert.Equal(t, 2, s.Count())
	assert.Len(t, *runners, 2)
}

func TestEnsureScheduledUnloadableTimezoneFallsBackToUTC(t *testing.T) {
	s, runners := newTestScheduler(&mockResolver{timezone: "Mars/Olympus"})

	require.NoError(t, s.EnsureScheduled("0,0", 0, 0, func(lat, lon float64) {}))

	require.Len(t, *runners, 1)
	assert.Equal(t, "UTC", (*runners)[0].loc.String())
}

func TestEnsureScheduledRegistrationError(t *testing.T) {
	s := NewScheduler(&mockResolver{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.newRunner = func(loc *time.Location) cronRunner {
		return &fakeRunner{loc: loc, addErr: errors.New("bad spec")}
	}

	err := s.EnsureScheduled("0,0", 0, 0, func(lat, lon float64) {})

	require.Error(t, err)
	assert.Equal(t, 0, s.Count())
}

func TestScheduledJobPanicIsContained(t *testing.T) {
	s, runners := newTestScheduler(&mockResolver{})

	require.NoError(t, s.EnsureScheduled("0,0", 0, 0, func(lat, lon float64) {
		panic("boom")
	}))

	require.Len(t, *runners, 1)
	assert.NotPanics(t, func() { (*runners)[0].jobs[0]() })
	assert.Equal(t, 1, s.Count())
}

func TestCancelStopsRunnerAndForgetsBucket(t *testing.T) {
	s, runners := newTestScheduler(&mockResolver{})
	require.NoError(t, s.EnsureScheduled("55.75,37.62", 55.75, 37.62, func(lat, lon float64) {}))

	s.Cancel("55.75,37.62")

	assert.Equal(t, 0, s.Count())
	assert.True(t, (*runners)[0].stopped)

	// Cancelled bucket can be registered again.
	require.NoError(t, s.EnsureScheduled("55.75,37.62", 55.75, 37.62, func(lat, lon float64) {}))
	assert.Equal(t, 1, s.Count())
}

func TestCancelUnknownBucketIsNoop(t *testing.T) {
	s, _ := newTestScheduler(&mockResolver{})

	assert.NotPanics(t, func() { s.Cancel("1,1") })
}

func TestCancelAll(t *testing.T) {
	s, runners := newTestScheduler(&mockResolver{})
	noop := func(lat, lon float64) {}
	require.NoError(t, s.EnsureScheduled("55.75,37.62", 55.75, 37.62, noop))
	require.NoError(t, s.EnsureScheduled("48.85,2.35", 48.85, 2.35, noop))

	s.CancelAll()

	assert.Equal(t, 0, s.Count())
	for _, r := range *runners {
		assert.True(t, r.stopped)
	}
}

func TestCancelAllSurvivesStopPanic(t *testing.T) {
	s := NewScheduler(&mockResolver{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.newRunner = func(loc *time.Location) cronRunner {
		return &fakeRunner{loc: loc, panicOnStop: true}
	}
	require.NoError(t, s.EnsureScheduled("0,0", 0, 0, func(lat, lon float64) {}))

	assert.NotPanics(t, s.CancelAll)
	assert.Equal(t, 0, s.Count())
}
