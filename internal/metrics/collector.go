package metrics

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper locks sessions that have outlived their unlock policy.
type Sweeper interface {
	SweepExpired() int
}

// VaultLister lists the identities that have a vault file.
type VaultLister interface {
	List() ([]string, error)
}

// StartCollector periodically sweeps expired sessions and refreshes gauges.
// It blocks until ctx is done.
func StartCollector(ctx context.Context, sweeper Sweeper, lister VaultLister, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on startup
	collect(sweeper, lister)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collect(sweeper, lister)
		}
	}
}

func collect(sweeper Sweeper, lister VaultLister) {
	if n := sweeper.SweepExpired(); n > 0 {
		slog.Debug("locked expired sessions", "count", n)
	}

	ids, err := lister.List()
	if err != nil {
		slog.Debug("failed to list vaults for metrics", "error", err)
		return
	}
	VaultFiles.Set(float64(len(ids)))
}
