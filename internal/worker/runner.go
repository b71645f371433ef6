package worker

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openon-app/capsule-api/pkg/logger"
	"github.com/openon-app/capsule-api/pkg/metrics"
)

// Job is an independently schedulable, idempotent unit of sweep work.
// Run receives the tick time explicitly so jobs stay deterministic
// under test.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) error
}

type scheduledJob struct {
	job      Job
	interval time.Duration
}

// Runner drives each job on its own ticker. A job never overlaps with
// itself because each loop runs sequentially; different jobs run
// concurrently with each other.
type Runner struct {
	jobs    []scheduledJob
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRunner(logger *logger.Logger, m *metrics.Metrics) *Runner {
	return &Runner{
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Add registers a job with its cadence.
func (r *Runner) Add(job Job, interval time.Duration) {
	r.jobs = append(r.jobs, scheduledJob{job: job, interval: interval})
}

// Start runs all jobs until the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, sj := range r.jobs {
		wg.Add(1)
		go func(sj scheduledJob) {
			defer wg.Done()
			r.runLoop(ctx, sj)
		}(sj)
	}
	wg.Wait()
}

func (r *Runner) runLoop(ctx context.Context, sj scheduledJob) {
	ticker := time.NewTicker(sj.interval)
	defer ticker.Stop()

	r.logger.ZL.Info().
		Str("job", sj.job.Name()).
		Dur("interval", sj.interval).
		Msg("sweep job started")

	// First pass immediately so a restart doesn't wait a full interval.
	r.runOnce(ctx, sj.job)

	for {
		select {
		case <-ctx.Done():
			r.logger.ZL.Info().Str("job", sj.job.Name()).Msg("sweep job shutting down")
			return
		case <-ticker.C:
			r.runOnce(ctx, sj.job)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	var timer *prometheus.Timer
	if r.metrics != nil {
		timer = prometheus.NewTimer(r.metrics.SweepDuration.WithLabelValues(job.Name()))
	}

	err := job.Run(ctx, r.now())

	if timer != nil {
		timer.ObserveDuration()
	}

	status := "success"
	if err != nil {
		status = "error"
		// A failed pass is retried wholesale on the next tick; every
		// job is an idempotent function of now + persisted timestamps.
		r.logger.Error(err, "sweep job failed", "job", job.Name())
	}
	if r.metrics != nil {
		r.metrics.SweepRuns.WithLabelValues(job.Name(), status).Inc()
	}
}
