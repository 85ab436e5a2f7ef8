package reschedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shopbooking/internal/metrics"
	"shopbooking/internal/model"
)

const sweepLockKey = "shopbooking:lock:reschedule-sweep"

// Expirer is the operation the sweeper runs on every tick.
type Expirer interface {
	ExpireOverdueRequests(ctx context.Context) ([]model.ExpiredRequestInfo, error)
}

// Locker serializes sweeps across instances. Acquire reports false when another
// holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// SweeperConfig holds configuration for the expiration sweeper.
type SweeperConfig struct {
	// Interval between sweeps. Default: 1 hour.
	Interval time.Duration

	// RunTimeout bounds a single sweep. Default: 5 minutes.
	RunTimeout time.Duration

	// LockTTL is how long the cross-instance lock is held at most. Default: 5 minutes.
	LockTTL time.Duration
}

// Sweeper periodically expires overdue pending reschedule requests.
type Sweeper struct {
	config  SweeperConfig
	expirer Expirer
	locker  Locker
	logger  zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	runMu   sync.Mutex
}

// NewSweeper creates a sweeper. locker may be nil for single-instance deployments.
func NewSweeper(cfg SweeperConfig, expirer Expirer, locker Locker, logger zerolog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Sweeper{
		config:  cfg,
		expirer: expirer,
		locker:  locker,
		logger:  logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start runs one sweep immediately and then one per interval. Calling Start on a
// running sweeper does nothing.
func (s *Sweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(s.stopCh)

	s.logger.Info().Dur("interval", s.config.Interval).Msg("Expiration sweeper started")
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Expiration sweeper stopped")
}

// IsRunning reports whether the loop is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow performs one sweep synchronously and returns what it expired.
// When the locker fails the sweep still runs, unlocked.
func (s *Sweeper) RunNow(ctx context.Context) ([]model.ExpiredRequestInfo, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.locker != nil {
		release, acquired, err := s.locker.Acquire(ctx, sweepLockKey, s.config.LockTTL)
		switch {
		case err != nil:
			// Expiry is a conditional update, so an unlocked sweep that overlaps
			// another instance expires each request once.
			metrics.IncSweep("lock_error")
			s.logger.Warn().Err(err).Msg("Sweep lock unavailable, sweeping without it")
		case !acquired:
			metrics.IncSweep("skipped")
			s.logger.Debug().Msg("Sweep lock held by another instance, skipping")
			return []model.ExpiredRequestInfo{}, nil
		default:
			defer release()
		}
	}

	expired, err := s.expirer.ExpireOverdueRequests(ctx)
	if err != nil {
		metrics.IncSweep("error")
		return nil, err
	}
	metrics.IncSweep("ok")
	return expired, nil
}

func (s *Sweeper) loop(stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep(stop)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sweep(stop)
		}
	}
}

// sweep runs once and logs failures; the loop always continues.
func (s *Sweeper) sweep(stop <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()

	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	expired, err := s.RunNow(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Expiration sweep failed")
		return
	}
	if len(expired) > 0 {
		s.logger.Info().Int("expired", len(expired)).Msg("Expiration sweep completed")
	}
}
