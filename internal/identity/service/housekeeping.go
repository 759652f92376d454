package service

import (
	"context"
	"time"

	"github.com/authlane/identity/internal/identity/store"
	"github.com/authlane/identity/pkg/slogx"
)

// Housekeeping sweeps expired second-factor challenge sessions on an
// interval. The store already filters expired sessions on read, so the sweep
// only reclaims space.
type Housekeeping struct {
	Store    store.Store
	Interval time.Duration
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (h *Housekeeping) Run(ctx context.Context) {
	log := slogx.FromContext(ctx)

	interval := h.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.Store.MFASessions().DeleteExpired(ctx); err != nil {
				log.Warn("housekeeping sweep failed", "error", err)
			}
		}
	}
}
