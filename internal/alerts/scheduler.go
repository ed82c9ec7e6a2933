package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// dailyNoonSpec fires once per day at 12:00 in the runner's location.
// Noon local time gives the forecast provider the morning to settle
// tomorrow's model run before we classify it.
const dailyNoonSpec = "0 12 * * *"

// JobFunc is the body of a recurring bucket job. It receives the coordinates
// the bucket was registered with; it deliberately takes them as parameters
// instead of closing over them so jobs stay inspectable and testable.
type JobFunc func(lat, lon float64)

// TimezoneResolver resolves a coordinate to an IANA timezone name.
// Satisfied by *geo.Resolver.
type TimezoneResolver interface {
	Resolve(lat, lon float64) string
}

// cronRunner is the slice of *cron.Cron the scheduler drives. Abstracted so
// tests can count registrations without waiting for wall-clock noon.
type cronRunner interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
	Start()
	Stop() context.Context
}

// scheduledJob is the registry value for one bucket: the coordinates and
// timezone it was registered with plus the handle to its runner.
type scheduledJob struct {
	bucket   string
	lat, lon float64
	timezone string
	runner   cronRunner
}

// Scheduler owns at most one recurring daily job per bucket key. Registration
// is lazy and idempotent; cancellation is explicit. Each bucket gets its own
// cron runner pinned to the bucket's local timezone so "noon" means noon
// where the garden is.
//
// Cancellation is cooperative: stopping a runner prevents future firings but
// does not interrupt a job cycle already in flight.
type Scheduler struct {
	resolver TimezoneResolver
	logger   *slog.Logger

	mu   sync.Mutex
	jobs map[string]*scheduledJob

	// newRunner is swapped in tests for a fake that fires on demand.
	newRunner func(loc *time.Location) cronRunner
}

// NewScheduler creates a Scheduler with an empty registry.
func NewScheduler(resolver TimezoneResolver, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		resolver: resolver,
		logger:   logger,
		jobs:     make(map[string]*scheduledJob),
		newRunner: func(loc *time.Location) cronRunner {
			return cron.New(cron.WithLocation(loc))
		},
	}
}

// EnsureScheduled registers a recurring daily-noon job for the bucket unless
// one already exists, in which case it is a no-op. The job fires at 12:00 in
// the bucket's resolved timezone and invokes jobFn with the registered
// coordinates. Panics and lingering errors inside jobFn are contained so a
// single bad day never de-registers the job.
func (s *Scheduler) EnsureScheduled(bucket string, lat, lon float64, jobFn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[bucket]; exists {
		return nil
	}

	tz := s.resolver.Resolve(lat, lon)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	runner := s.newRunner(loc)
	_, err = runner.AddFunc(dailyNoonSpec, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("bucket job panicked",
					"bucket", bucket,
					"panic", fmt.Sprintf("%v", r),
				)
			}
		}()
		jobFn(lat, lon)
	})
	if err != nil {
		return fmt.Errorf("registering bucket job for %s: %w", bucket, err)
	}

	runner.Start()
	s.jobs[bucket] = &scheduledJob{
		bucket:   bucket,
		lat:      lat,
		lon:      lon,
		timezone: tz,
		runner:   runner,
	}

	s.logger.Info("bucket job scheduled",
		"bucket", bucket,
		"timezone", tz,
	)

	return nil
}

// Cancel stops and removes the bucket's job. No-op if the bucket has none.
func (s *Scheduler) Cancel(bucket string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[bucket]
	if !exists {
		return
	}

	s.stopRunner(job)
	delete(s.jobs, bucket)

	s.logger.Info("bucket job cancelled", "bucket", bucket)
}

// CancelAll stops and removes every registered job. Invoked once at process
// shutdown; it is best effort and never panics even if individual
// cancellations fail.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for bucket, job := range s.jobs {
		s.stopRunner(job)
		delete(s.jobs, bucket)
	}

	s.logger.Info("all bucket jobs cancelled")
}

// Count returns the number of registered jobs. Intended for tests and health
// reporting.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// stopRunner stops a job's runner, containing any panic from the underlying
// implementation. Callers hold s.mu.
func (s *Scheduler) stopRunner(job *scheduledJob) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("stopping bucket job failed",
				"bucket", job.bucket,
				"panic", fmt.Sprintf("%v", r),
			)
		}
	}()
	job.runner.Stop()
}
