package registry

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/kroegman/neartrip/internal/logger"
)

const (
	// DefaultRetention is how long closed sessions stay visible.
	DefaultRetention = 7 * 24 * time.Hour
	// DefaultSweepInterval is how often the sweep runs.
	DefaultSweepInterval = 6 * time.Hour
)

// Sweeper periodically removes sessions older than the retention window
// from the registry and the history store, together with any per-session
// NMEA files those sessions own.
type Sweeper struct {
	registry  *Registry
	history   *History // may be nil
	nmeaDir   string   // may be empty
	log       logger.Logger
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
}

// NewSweeper creates a sweeper. Zero interval or retention select the
// defaults.
func NewSweeper(reg *Registry, history *History, nmeaDir string, log logger.Logger, interval, retention time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Sweeper{
		registry:  reg,
		history:   history,
		nmeaDir:   nmeaDir,
		log:       log,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start runs one sweep immediately, then on every interval tick until
// Stop is called or ctx is cancelled.
func (sw *Sweeper) Start(ctx context.Context) {
	sw.Collect()

	ticker := time.NewTicker(sw.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sw.Collect()
			case <-sw.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the periodic sweep.
func (sw *Sweeper) Stop() {
	close(sw.stopCh)
}

// Collect performs one sweep pass.
func (sw *Sweeper) Collect() {
	cutoff := time.Now().Add(-sw.retention)

	removed := sw.registry.Sweep(cutoff)
	for _, id := range removed {
		if sw.nmeaDir == "" {
			continue
		}
		path := filepath.Join(sw.nmeaDir, id+".nmea")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			sw.log.Warn("failed to remove session nmea file",
				logger.String("session", id),
				logger.Error(err))
		}
	}

	var pruned int64
	if sw.history != nil {
		var err error
		pruned, err = sw.history.PruneBefore(cutoff)
		if err != nil {
			sw.log.Error("history prune failed", logger.Error(err))
		}
	}

	if len(removed) > 0 || pruned > 0 {
		sw.log.Info("session sweep completed",
			logger.Int("removed", len(removed)),
			logger.Int64("history_pruned", pruned))
	} else {
		sw.log.Debug("session sweep found nothing to remove")
	}
}
