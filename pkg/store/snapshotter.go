package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/curvelabs/bondcurve/pkg/bonding"
)

const DefaultSnapshotInterval = 30 * time.Second

// Saver is the slice of Store the snapshotter needs.
type Saver interface {
	Save(ctx context.Context, snap bonding.Snapshot) error
}

type SnapshotterConfig struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Registry *bonding.Registry
	Saver    Saver
	Interval time.Duration
}

func (c *SnapshotterConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Registry == nil {
		return errors.New("registry is required")
	}
	if c.Saver == nil {
		return errors.New("saver is required")
	}
	if c.Interval <= 0 {
		c.Interval = DefaultSnapshotInterval
	}
	return nil
}

// Snapshotter periodically persists every registered curve. A failed save
// is logged and retried on the next tick; it never stops the worker.
type Snapshotter struct {
	cfg SnapshotterConfig
}

func NewSnapshotter(cfg SnapshotterConfig) (*Snapshotter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Snapshotter{cfg: cfg}, nil
}

// Run persists all curves on every tick until the context is canceled. The
// final state is flushed once more on shutdown.
func (s *Snapshotter) Run(ctx context.Context) error {
	s.cfg.Logger.Info("snapshotter started", "interval", s.cfg.Interval)
	ticker := s.cfg.Clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := s.SaveAll(flushCtx); err != nil {
				s.cfg.Logger.Error("final snapshot flush failed", "error", err)
			}
			s.cfg.Logger.Info("snapshotter stopped")
			return nil
		case <-ticker.Chan():
			if err := s.SaveAll(ctx); err != nil {
				s.cfg.Logger.Error("snapshot tick failed", "error", err)
			}
		}
	}
}

// SaveAll persists every registered curve, returning the first error after
// attempting all of them.
func (s *Snapshotter) SaveAll(ctx context.Context) error {
	var firstErr error
	for _, eng := range s.cfg.Registry.List() {
		if err := s.cfg.Saver.Save(ctx, eng.Snapshot()); err != nil {
			s.cfg.Logger.Error("failed to save curve snapshot", "curve", eng.ID(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
