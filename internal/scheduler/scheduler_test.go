package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesync/sitesync/internal/config"
)

func testScheduler(run JobFunc) *Scheduler {
	return New(Options{
		Run:           run,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	})
}

func TestRegister_NoSchedule(t *testing.T) {
	s := testScheduler(func(ctx context.Context, site *config.SiteConfig) error { return nil })

	id, err := s.Register(context.Background(), &config.SiteConfig{Name: "a"})
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.Empty(t, s.cron.Entries())
}

func TestRegister_InvalidCron(t *testing.T) {
	s := testScheduler(func(ctx context.Context, site *config.SiteConfig) error { return nil })

	_, err := s.Register(context.Background(), &config.SiteConfig{Name: "a", Schedule: "not a cron"})
	assert.Error(t, err)
}

func TestRegisterAll(t *testing.T) {
	s := testScheduler(func(ctx context.Context, site *config.SiteConfig) error { return nil })

	sites := []*config.SiteConfig{
		{Name: "hourly", Schedule: "0 * * * *"},
		{Name: "manual"},
		{Name: "broken", Schedule: "nope"},
		{Name: "daily", Schedule: "30 3 * * *"},
	}

	assert.Equal(t, 2, s.RegisterAll(context.Background(), sites))
	assert.Len(t, s.cron.Entries(), 2)
}

func TestExecute_RetriesThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	s := testScheduler(func(ctx context.Context, site *config.SiteConfig) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})

	s.execute(context.Background(), &config.SiteConfig{Name: "a"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestExecute_GivesUpAfterRetries(t *testing.T) {
	attempts := 0
	s := testScheduler(func(ctx context.Context, site *config.SiteConfig) error {
		attempts++
		return errors.New("always fails")
	})

	s.execute(context.Background(), &config.SiteConfig{Name: "a"})
	assert.Equal(t, 2, attempts)
}

func TestExecute_SingleInstancePerSite(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	var mu sync.Mutex
	runs := 0

	s := testScheduler(func(ctx context.Context, site *config.SiteConfig) error {
		mu.Lock()
		runs++
		mu.Unlock()
		close(started)
		<-unblock
		return nil
	})

	site := &config.SiteConfig{Name: "a"}

	go s.execute(context.Background(), site)
	<-started

	// Second tick while the first run is blocked must be a no-op
	s.execute(context.Background(), site)

	close(unblock)
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, runs)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := testScheduler(func(ctx context.Context, site *config.SiteConfig) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}
}
