package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sitesync/sitesync/internal/config"
	"github.com/sitesync/sitesync/internal/utils"
)

const (
	// DefaultRetryAttempts is how often a failed scheduled run is retried
	DefaultRetryAttempts = 3
	// DefaultRetryDelay is the pause between retry attempts
	DefaultRetryDelay = 5 * time.Minute
)

// JobFunc runs one full scrape cycle for a site
type JobFunc func(ctx context.Context, site *config.SiteConfig) error

// Scheduler runs per-site scrape jobs on their cron schedules. At most one
// run per site is in flight at a time; a tick that fires while the previous
// run is still going is skipped.
type Scheduler struct {
	cron          *cron.Cron
	run           JobFunc
	logger        *utils.Logger
	retryAttempts int
	retryDelay    time.Duration

	mu      sync.Mutex
	running map[string]bool
}

// Options contains options for creating a Scheduler
type Options struct {
	Run           JobFunc
	Logger        *utils.Logger
	RetryAttempts int
	RetryDelay    time.Duration
}

// New creates a Scheduler
func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	attempts := opts.RetryAttempts
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	return &Scheduler{
		cron:          cron.New(),
		run:           opts.Run,
		logger:        logger.WithComponent("scheduler"),
		retryAttempts: attempts,
		retryDelay:    delay,
		running:       map[string]bool{},
	}
}

// Register adds a site's cron schedule. Sites without a schedule are
// ignored and return id 0.
func (s *Scheduler) Register(ctx context.Context, site *config.SiteConfig) (cron.EntryID, error) {
	if site.Schedule == "" {
		return 0, nil
	}

	id, err := s.cron.AddFunc(site.Schedule, func() {
		s.execute(ctx, site)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Str("site", site.Name).
		Str("schedule", site.Schedule).
		Msg("Registered scheduled scrape")
	return id, nil
}

// RegisterAll registers every site that carries a schedule and returns the
// number registered. Invalid cron expressions are logged and skipped.
func (s *Scheduler) RegisterAll(ctx context.Context, sites []*config.SiteConfig) int {
	registered := 0
	for _, site := range sites {
		if site.Schedule == "" {
			continue
		}
		if _, err := s.Register(ctx, site); err != nil {
			s.logger.Error().Err(err).
				Str("site", site.Name).
				Str("schedule", site.Schedule).
				Msg("Invalid schedule, skipping site")
			continue
		}
		registered++
	}
	return registered
}

// Run starts the cron loop and blocks until ctx is cancelled. In-flight
// jobs finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) execute(ctx context.Context, site *config.SiteConfig) {
	if !s.tryAcquire(site.Name) {
		s.logger.Warn().Str("site", site.Name).Msg("Previous run still in progress, skipping tick")
		return
	}
	defer s.release(site.Name)

	logger := s.logger.WithSite(site.Name)

	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}

		logger.Info().Int("attempt", attempt).Int("max_attempts", s.retryAttempts).Msg("Starting scheduled scrape")
		err := s.run(ctx, site)
		if err == nil {
			logger.Info().Msg("Scheduled scrape completed")
			return
		}

		logger.Error().Err(err).Int("attempt", attempt).Msg("Scheduled scrape failed")
		if attempt < s.retryAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.retryDelay):
			}
		}
	}

	logger.Error().Int("attempts", s.retryAttempts).Msg("All scrape attempts failed")
}

func (s *Scheduler) tryAcquire(site string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[site] {
		return false
	}
	s.running[site] = true
	return true
}

func (s *Scheduler) release(site string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, site)
}
