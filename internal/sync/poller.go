package sync

import (
	"context"
	"log/slog"
	"slices"
	gosync "sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/nhle/studyflow/internal/store"
)

// Runner runs a single sync for a user.
type Runner interface {
	Run(ctx context.Context, userID string) (Result, error)
}

const (
	defaultPollInterval = 30 * time.Second
	maxConcurrentSyncs  = 4
)

// Poller triggers scheduled syncs. On every tick it compares the current
// local HH:MM with each user's syncTimes and runs a sync on a match, at
// most once per user per matching minute.
type Poller struct {
	store    store.Store
	runner   Runner
	interval time.Duration
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time

	mu      gosync.Mutex
	lastRun map[string]string
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewPoller creates a Poller. A non-positive interval defaults to 30s.
func NewPoller(s store.Store, runner Runner, interval time.Duration, loc *time.Location, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		store:    s,
		runner:   runner,
		interval: interval,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
		lastRun:  make(map[string]string),
	}
}

// Start launches the polling goroutine. It is a no-op if already running.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.loop(ctx)
}

// Stop halts polling and waits for in-flight syncs to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	done := p.doneCh
	p.mu.Unlock()

	<-done
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs the syncs due at the current minute and returns the ids of
// the users it synced.
func (p *Poller) Tick(ctx context.Context) []string {
	now := p.now().In(p.loc)
	clock := now.Format("15:04")
	minute := now.Format("2006-01-02T15:04")

	all, err := p.store.ListSettings(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "listing settings for scheduled sync", "error", err)
		return nil
	}

	var due []string
	p.mu.Lock()
	for _, s := range all {
		if !slices.Contains(s.SyncTimes, clock) {
			continue
		}
		if p.lastRun[s.UserID] == minute {
			continue
		}
		p.lastRun[s.UserID] = minute
		due = append(due, s.UserID)
	}
	p.mu.Unlock()

	if len(due) == 0 {
		return nil
	}

	wp := pool.New().WithMaxGoroutines(maxConcurrentSyncs)
	for _, userID := range due {
		userID := userID
		wp.Go(func() {
			res, err := p.runner.Run(ctx, userID)
			if err != nil {
				p.logger.ErrorContext(ctx, "scheduled sync failed", "user_id", userID, "error", err)
				return
			}
			p.logger.InfoContext(ctx, "scheduled sync finished",
				"user_id", userID,
				"created_pending", res.CreatedPending,
			)
		})
	}
	wp.Wait()

	return due
}
