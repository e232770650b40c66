// Package action executes the moderation operations on pools: approve,
// reject, and step retry. Each action is validated against the local
// pool table before the backend is called, and a fresh snapshot is
// demanded afterwards so the result is visible immediately instead of
// at the next interval.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"poolConsole/internal/model"
	"poolConsole/internal/pipeline"
)

var (
	ErrPoolNotFound  = errors.New("pool not found")
	ErrNotPending    = errors.New("pool is not awaiting approval")
	ErrNotFailed     = errors.New("pool is not in a failed state")
	ErrEmptyReason   = errors.New("rejection reason is required")
	ErrStepNotProven = errors.New("step is not the eligible retry target")
)

// Backend performs the remote side of each action.
type Backend interface {
	Approve(ctx context.Context, poolID int64) error
	Reject(ctx context.Context, poolID int64, reason string) error
	RetryStep(ctx context.Context, poolID int64, step pipeline.Step) error
}

// PoolReader looks up the local view of a pool.
type PoolReader interface {
	Get(poolID int64) (model.Pool, bool)
}

// Refresher forces a snapshot reconciliation.
type Refresher interface {
	Poll(ctx context.Context) error
}

// Orchestrator validates and executes pool actions.
type Orchestrator struct {
	backend   Backend
	pools     PoolReader
	refresher Refresher
	logger    *zap.Logger
}

func NewOrchestrator(backend Backend, pools PoolReader, refresher Refresher, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		backend:   backend,
		pools:     pools,
		refresher: refresher,
		logger:    logger,
	}
}

// Approve moves a pending pool into deployment. Only pools still
// awaiting approval qualify.
func (o *Orchestrator) Approve(ctx context.Context, poolID int64) error {
	pool, ok := o.pools.Get(poolID)
	if !ok {
		return fmt.Errorf("pool %d: %w", poolID, ErrPoolNotFound)
	}
	if pool.Status != pipeline.StatusPending {
		return fmt.Errorf("pool %d is %s: %w", poolID, pool.Status, ErrNotPending)
	}

	if err := o.backend.Approve(ctx, poolID); err != nil {
		return fmt.Errorf("approve pool %d: %w", poolID, err)
	}
	o.logger.Info("pool approved", zap.Int64("pool_id", poolID))
	o.refresh(ctx)
	return nil
}

// Reject permanently declines a pending pool. The reason is mandatory
// and is forwarded to the creator.
func (o *Orchestrator) Reject(ctx context.Context, poolID int64, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrEmptyReason
	}

	pool, ok := o.pools.Get(poolID)
	if !ok {
		return fmt.Errorf("pool %d: %w", poolID, ErrPoolNotFound)
	}
	if pool.Status != pipeline.StatusPending {
		return fmt.Errorf("pool %d is %s: %w", poolID, pool.Status, ErrNotPending)
	}

	if err := o.backend.Reject(ctx, poolID, reason); err != nil {
		return fmt.Errorf("reject pool %d: %w", poolID, err)
	}
	o.logger.Info("pool rejected", zap.Int64("pool_id", poolID), zap.String("reason", reason))
	o.refresh(ctx)
	return nil
}

// RetryStep re-runs one deployment step of a failed pool. The step
// must be the first one without transaction evidence; evidenced steps
// already happened on chain and must never run twice.
func (o *Orchestrator) RetryStep(ctx context.Context, poolID int64, step pipeline.Step) error {
	pool, ok := o.pools.Get(poolID)
	if !ok {
		return fmt.Errorf("pool %d: %w", poolID, ErrPoolNotFound)
	}
	if pool.Status != pipeline.StatusFailed {
		return fmt.Errorf("pool %d is %s: %w", poolID, pool.Status, ErrNotFailed)
	}
	eligible, ok := pool.EligibleRetryStep()
	if !ok || eligible != step {
		return fmt.Errorf("pool %d step %s: %w", poolID, step, ErrStepNotProven)
	}

	if err := o.backend.RetryStep(ctx, poolID, step); err != nil {
		return fmt.Errorf("retry pool %d step %s: %w", poolID, step, err)
	}
	o.logger.Info("step retry requested",
		zap.Int64("pool_id", poolID),
		zap.String("step", string(step)))
	o.refresh(ctx)
	return nil
}

// refresh pulls a fresh snapshot after a successful action. The action
// already succeeded; a refresh failure only delays visibility, so it
// is logged and swallowed.
func (o *Orchestrator) refresh(ctx context.Context) {
	if o.refresher == nil {
		return
	}
	if err := o.refresher.Poll(ctx); err != nil {
		o.logger.Warn("post-action refresh failed", zap.Error(err))
	}
}
