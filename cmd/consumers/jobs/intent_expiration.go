package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"futsal/internal/service"
)

// Sweeper settles payment intents whose gateway callback never arrived
type Sweeper interface {
	SweepStale(ctx context.Context, ttl time.Duration, limit int) (service.SweepReport, error)
}

// IntentExpirationJob periodically reconciles stale payment intents with the gateway
type IntentExpirationJob struct {
	sweeper   Sweeper
	ttl       time.Duration
	interval  time.Duration
	batchSize int

	running sync.Mutex
	ticker  *time.Ticker
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewIntentExpirationJob(sweeper Sweeper, ttl, interval time.Duration, batchSize int) *IntentExpirationJob {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &IntentExpirationJob{
		sweeper:   sweeper,
		ttl:       ttl,
		interval:  interval,
		batchSize: batchSize,
		done:      make(chan struct{}),
	}
}

// Start runs a sweep immediately and then on every tick until Stop or ctx is done
func (j *IntentExpirationJob) Start(ctx context.Context) {
	slog.Info("Starting intent expiration job", "check_interval", j.interval, "ttl", j.ttl, "batch_size", j.batchSize)

	j.ticker = time.NewTicker(j.interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.sweep(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.sweep(ctx)
			case <-ctx.Done():
				slog.Info("Intent expiration job stopped")
				return
			case <-j.done:
				slog.Info("Intent expiration job stopped")
				return
			}
		}
	}()
}

// Stop waits for an in-flight sweep to finish
func (j *IntentExpirationJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
	j.wg.Wait()
}

func (j *IntentExpirationJob) sweep(ctx context.Context) {
	if !j.running.TryLock() {
		slog.Debug("Previous sweep still running, skipping tick")
		return
	}
	defer j.running.Unlock()

	start := time.Now()
	report, err := j.sweeper.SweepStale(ctx, j.ttl, j.batchSize)
	if err != nil {
		slog.Error("Intent sweep failed", "error", err)
		return
	}

	total := report.Finalized + report.Expired + report.Skipped + report.Failed
	if total == 0 {
		slog.Debug("No stale intents found")
		return
	}

	slog.Info("Intent sweep completed",
		"finalized", report.Finalized,
		"expired", report.Expired,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", time.Since(start).String())
}
