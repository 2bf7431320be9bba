// Package runner executes batch cells under a global concurrency ceiling and
// a per-provider requests-per-minute budget.
package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/AI-Template-SDK/senso-tracker/internal/metrics"
	"github.com/AI-Template-SDK/senso-tracker/internal/models"
)

// DefaultCapacity is the global slot count used when none is configured.
const DefaultCapacity = 7

// RateLimiterConfig is built once per batch and handed to New.
type RateLimiterConfig struct {
	// Capacity is the number of cells that may run at once across all providers.
	Capacity int
	// RPM maps provider name to requests per minute. Missing or <= 0 means unlimited.
	RPM map[string]int
}

// Job produces the extraction result for one task.
type Job func(ctx context.Context, task models.Task) (*models.ExtractionResult, error)

// Runner fans tasks out and isolates their failures.
type Runner struct {
	sem      *semaphore.Weighted
	rpm      map[string]int
	clock    Clock
	metrics  *metrics.TrackerMetrics
	logger   *zap.Logger
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithMetrics reports task outcomes to m.
func WithMetrics(m *metrics.TrackerMetrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithLogger overrides the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New creates a Runner for one batch.
func New(cfg RateLimiterConfig, opts ...Option) *Runner {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &Runner{
		sem:      semaphore.NewWeighted(int64(capacity)),
		rpm:      cfg.RPM,
		clock:    realClock{},
		logger:   zap.L(),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// limiter returns the provider's token bucket, nil when unlimited.
// Burst is 1 so consecutive requests are spaced by 60s/RPM.
func (r *Runner) limiter(provider string) *rate.Limiter {
	rpm := r.rpm[provider]
	if rpm <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[provider]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
		r.limiters[provider] = l
	}
	return l
}

// Run executes every task and streams exactly one result per task, in
// completion order. The channel is closed once all tasks have reported.
func (r *Runner) Run(ctx context.Context, tasks []models.Task, job Job) <-chan *models.ExtractionResult {
	out := make(chan *models.ExtractionResult, len(tasks))

	var g errgroup.Group
	for _, task := range tasks {
		g.Go(func() error {
			out <- r.runOne(ctx, task, job)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(out)
	}()

	return out
}

// Collect drains Run into a slice.
func (r *Runner) Collect(ctx context.Context, tasks []models.Task, job Job) []*models.ExtractionResult {
	results := make([]*models.ExtractionResult, 0, len(tasks))
	for res := range r.Run(ctx, tasks, job) {
		results = append(results, res)
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, task models.Task, job Job) *models.ExtractionResult {
	log := r.logger.With(
		zap.String("provider", task.Provider),
		zap.String("product", task.Product),
		zap.String("location", task.Location),
	)

	startAt, err := r.waitForToken(ctx, task.Provider)
	if err != nil {
		log.Warn("rate limit wait aborted", zap.Error(err))
		return FailedResult(task, err, startAt)
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		log.Warn("slot acquisition aborted", zap.Error(err))
		return FailedResult(task, err, startAt)
	}
	r.metrics.SlotAcquired()
	defer func() {
		r.sem.Release(1)
		r.metrics.SlotReleased()
	}()

	began := time.Now()
	result, err := safeCall(ctx, task, job)
	if err != nil {
		log.Error("task failed", zap.Error(err))
		r.metrics.ObserveTask(task.Provider, "error", time.Since(began))
		return FailedResult(task, err, startAt)
	}

	result.Product = task.Product
	result.Location = task.Location
	result.Provider = task.Provider
	result.StartedAt = startAt
	r.metrics.ObserveTask(task.Provider, "ok", time.Since(began))
	return result
}

// waitForToken reserves the provider's next slot and sleeps until it opens.
// It returns the (possibly simulated) time the request was allowed to start.
func (r *Runner) waitForToken(ctx context.Context, provider string) (time.Time, error) {
	now := r.clock.Now()
	l := r.limiter(provider)
	if l == nil {
		return now, nil
	}

	res := l.ReserveN(now, 1)
	if !res.OK() {
		return now, fmt.Errorf("runner: rate limit for %s cannot admit a request", provider)
	}
	delay := res.DelayFrom(now)
	r.metrics.ObserveWait(provider, delay)

	if err := r.clock.Sleep(ctx, delay); err != nil {
		res.CancelAt(r.clock.Now())
		return now, err
	}
	return now.Add(delay), nil
}

// safeCall runs job and converts a panic into an error.
func safeCall(ctx context.Context, task models.Task, job Job) (result *models.ExtractionResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("task panicked", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			result, err = nil, fmt.Errorf("runner: task panicked: %v", rec)
		}
	}()

	result, err = job(ctx, task)
	if err == nil && result == nil {
		err = fmt.Errorf("runner: job returned no result")
	}
	return result, err
}

// FailedResult is the all-default result recorded for a task that failed.
func FailedResult(task models.Task, err error, startedAt time.Time) *models.ExtractionResult {
	return &models.ExtractionResult{
		Product:           task.Product,
		Location:          task.Location,
		Provider:          task.Provider,
		Sources:           []string{},
		PresenceMatches:   map[string]int{},
		CompetitorMatches: map[string]int{},
		Error:             err.Error(),
		StartedAt:         startedAt,
	}
}
