// Package janitor runs periodic housekeeping for the identity store.
package janitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is used when Config.Interval is not positive.
const DefaultInterval = 10 * time.Minute

// Purger deletes expired records and reports how many were removed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Janitor sweeps expired reset tickets on a fixed interval.
type Janitor interface {
	Start(ctx context.Context) error
	Shutdown()
}

type Config struct {
	Interval time.Duration
	Logger   logrus.FieldLogger
}

type janitor struct {
	cfg    Config
	purger Purger

	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfg Config, purger Purger) Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &janitor{cfg: cfg, purger: purger}
}

// Start launches the sweep loop. It runs one sweep immediately.
func (j *janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return errors.New("janitor already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.loop(runCtx)
	}()

	j.cfg.Logger.Infof("reset ticket janitor started, interval: %s", j.cfg.Interval)
	return nil
}

func (j *janitor) Shutdown() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
	j.cfg.Logger.Info("reset ticket janitor stopped")
}

func (j *janitor) loop(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *janitor) sweep(ctx context.Context) {
	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		j.cfg.Logger.WithField("error", err).Warn("purge expired reset tickets")
		return
	}
	if n > 0 {
		j.cfg.Logger.WithField("deleted", n).Info("purged expired reset tickets")
	} else {
		j.cfg.Logger.Debug("no expired reset tickets")
	}
}
