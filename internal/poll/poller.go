// Package poll periodically reconciles the pool table against the
// backend's pending-pool snapshot. Polling is the source of truth: a
// snapshot overwrites whatever the event stream wrote in the meantime,
// so a missed or misleading event heals within one interval.
package poll

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"poolConsole/internal/model"
	"poolConsole/internal/notify"
	"poolConsole/internal/pipeline"
	"poolConsole/internal/storage"
	"poolConsole/internal/store"
)

// PoolLister fetches the pending-pool snapshot.
type PoolLister interface {
	PendingPools(ctx context.Context) ([]model.Pool, error)
}

// SnapshotMirror receives each fresh snapshot for persistence.
type SnapshotMirror interface {
	UpsertPendingPools(ctx context.Context, pools []model.Pool) error
}

// Notifier receives one notification per newly appeared pool.
type Notifier interface {
	Offer(n notify.Notification)
}

// Config holds runtime settings for the poller.
type Config struct {
	Interval time.Duration
	Journal  storage.Storage
	Mirror   SnapshotMirror
	Notifier Notifier

	// OnError is invoked after every failed fetch. Embedding surfaces
	// use it to raise a stale-data banner; the loop itself keeps going.
	OnError func(error)
}

// Poller drives the snapshot reconciliation loop. At most one fetch is
// in flight at a time; refreshes requested while one is running are
// remembered and satisfied by an immediate follow-up fetch.
type Poller struct {
	cfg    Config
	client PoolLister
	pools  *store.Store
	logger *zap.Logger

	inFlight atomic.Bool
	again    atomic.Bool

	mu       sync.Mutex
	lastSync time.Time
	lastErr  error
}

func NewPoller(cfg Config, client PoolLister, pools *store.Store, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Poller{
		cfg:    cfg,
		client: client,
		pools:  pools,
		logger: logger,
	}
}

// Run polls immediately, then on every interval tick until the context
// is cancelled. Fetch failures are logged and retried on the next
// tick; only context cancellation ends the loop.
func (p *Poller) Run(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("pool lister is nil")
	}
	if p.pools == nil {
		return fmt.Errorf("pool store is nil")
	}

	p.Poll(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs one reconciliation. If a poll is already in flight the
// request is coalesced into a follow-up fetch instead of running
// concurrently, so callers can always demand freshness without racing
// the ticker.
func (p *Poller) Poll(ctx context.Context) error {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.again.Store(true)
		return nil
	}
	defer p.inFlight.Store(false)

	for {
		err := p.pollOnce(ctx)
		if !p.again.CompareAndSwap(true, false) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) error {
	next, err := p.client.PendingPools(ctx)
	if err != nil {
		p.recordError(err)
		p.logger.Warn("snapshot fetch failed", zap.Error(err))
		if p.cfg.OnError != nil {
			p.cfg.OnError(err)
		}
		return err
	}

	prev := p.pools.Snapshot()
	if slices.Equal(prev, next) {
		p.recordSync()
		return nil
	}

	transitions := p.diffTransitions(prev, next)
	added := p.newEntries(prev, next)

	p.pools.Replace(next)
	p.recordSync()

	p.logger.Info("snapshot applied",
		zap.Int("pools", len(next)),
		zap.Int("new", len(added)),
		zap.Int("transitions", len(transitions)))

	if p.cfg.Journal != nil && len(transitions) > 0 {
		if err := p.cfg.Journal.PutTransitions(ctx, transitions); err != nil {
			p.logger.Warn("journal write failed", zap.Error(err))
		}
	}
	if p.cfg.Mirror != nil {
		if err := p.cfg.Mirror.UpsertPendingPools(ctx, next); err != nil {
			p.logger.Warn("snapshot mirror failed", zap.Error(err))
		}
	}

	// One notification per newly appeared pool. The very first snapshot
	// is a load, not an update; notifying on it would greet every
	// session with a storm.
	if p.cfg.Notifier != nil && len(prev) > 0 {
		for _, pool := range added {
			msg := fmt.Sprintf("pool %d entered the deployment pipeline", pool.ID)
			if pool.Name != "" {
				msg = fmt.Sprintf("pool %d (%s) entered the deployment pipeline", pool.ID, pool.Name)
			}
			p.cfg.Notifier.Offer(notify.Notification{
				PoolID:  pool.ID,
				Level:   notify.LevelInfo,
				Message: msg,
			})
		}
	}
	return nil
}

// diffTransitions collects the status changes a snapshot implies for
// pools that were already tracked.
func (p *Poller) diffTransitions(prev, next []model.Pool) []model.StatusTransition {
	prevByID := make(map[int64]pipeline.Status, len(prev))
	for _, pool := range prev {
		prevByID[pool.ID] = pool.Status
	}

	var out []model.StatusTransition
	for _, pool := range next {
		from, ok := prevByID[pool.ID]
		if !ok || from == pool.Status {
			continue
		}
		out = append(out, model.NewStatusTransition(pool.ID, from, pool.Status, model.SourcePoll, ""))
	}
	return out
}

// newEntries returns the pools a snapshot carries that the previous
// one did not.
func (p *Poller) newEntries(prev, next []model.Pool) []model.Pool {
	seen := make(map[int64]struct{}, len(prev))
	for _, pool := range prev {
		seen[pool.ID] = struct{}{}
	}

	var out []model.Pool
	for _, pool := range next {
		if _, ok := seen[pool.ID]; !ok {
			out = append(out, pool)
		}
	}
	return out
}

func (p *Poller) recordSync() {
	p.mu.Lock()
	p.lastSync = time.Now()
	p.lastErr = nil
	p.mu.Unlock()
}

func (p *Poller) recordError(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

// LastSync reports when the last successful reconciliation finished.
func (p *Poller) LastSync() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSync
}

// LastError reports the most recent fetch failure, cleared by the next
// successful poll.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
