// Package worker contains background tasks that run alongside the
// HTTP server.  The expiry sweeper reclaims seats from lapsed holds
// so abandoned bookings release inventory without manual
// intervention.
package worker

import (
	"context"
	"log"
	"time"
)

// Sweeper is the subset of the booking coordinator the expiry worker
// needs.  Expiry is data-driven (expires_at on the reservation row),
// so the sweep is safe to run concurrently with itself and with other
// instances of this process.
type Sweeper interface {
	ExpireSweep(ctx context.Context, now time.Time) (int, error)
}

// ExpirySweeper periodically expires lapsed holds.  Holds are also
// checked lazily on confirm and check-in; the sweeper exists so seats
// return to inventory even when nobody touches the reservation again.
type ExpirySweeper struct {
	sweeper  Sweeper
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewExpirySweeper returns a sweeper that runs at the given interval.
func NewExpirySweeper(s Sweeper, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		sweeper:  s,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is
// called.  It is intended to run in its own goroutine.
func (w *ExpirySweeper) Start(ctx context.Context) {
	log.Printf("expiry-sweeper: started (interval=%s)", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			log.Printf("expiry-sweeper: stopped (context cancelled)")
			return
		case <-w.stopCh:
			log.Printf("expiry-sweeper: stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for it to finish.
func (w *ExpirySweeper) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *ExpirySweeper) sweep(ctx context.Context) {
	count, err := w.sweeper.ExpireSweep(ctx, time.Now().UTC())
	if err != nil {
		// Partial failures: the sweep already processed what it
		// could; log and move on to the next tick.
		log.Printf("expiry-sweeper: sweep finished with errors (expired=%d): %v", count, err)
		return
	}
	if count > 0 {
		log.Printf("expiry-sweeper: expired %d lapsed holds", count)
	}
}
