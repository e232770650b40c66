// Package push maintains the deployment event stream: it keeps the
// connection alive across failures, normalizes whatever the server
// sends, and applies status changes to the pool store the moment they
// arrive.
package push

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"poolConsole/internal/event"
	"poolConsole/internal/model"
	"poolConsole/internal/notify"
	"poolConsole/internal/pipeline"
	"poolConsole/internal/storage"
)

// State describes the stream connection for display.
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateError      State = "error"
)

// StreamOpener opens the deployment event stream.
type StreamOpener interface {
	OpenEvents(ctx context.Context) (io.ReadCloser, error)
}

// PoolStore is the slice of the pool table the stream needs: status
// writes and tx-id lookups for legacy events.
type PoolStore interface {
	ApplyStatus(poolID int64, status pipeline.Status) (pipeline.Status, bool)
	FindByTxID(txID string) (model.Pool, bool)
}

// Notifier receives user-facing notifications for terminal events.
type Notifier interface {
	Offer(n notify.Notification)
}

// Config holds runtime settings for the stream manager.
type Config struct {
	Backoff  Backoff
	Journal  storage.Storage
	Notifier Notifier
}

// Manager owns the event stream lifecycle. Create with NewManager and
// drive with Run.
type Manager struct {
	cfg        Config
	opener     StreamOpener
	pools      PoolStore
	normalizer *event.Normalizer
	logger     *zap.Logger

	mu    sync.Mutex
	state State
}

func NewManager(cfg Config, opener StreamOpener, pools PoolStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Backoff == nil {
		cfg.Backoff = FixedBackoff{Delay: 5 * time.Second}
	}
	return &Manager{
		cfg:        cfg,
		opener:     opener,
		pools:      pools,
		normalizer: event.NewNormalizer(pools, logger),
		logger:     logger,
		state:      StateConnecting,
	}
}

// State reports the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Run connects to the event stream and consumes it until the context
// is cancelled, reconnecting after every failure. It only returns the
// context's error; stream errors are retried forever.
func (m *Manager) Run(ctx context.Context) error {
	if m.opener == nil {
		return fmt.Errorf("stream opener is nil")
	}
	if m.pools == nil {
		return fmt.Errorf("pool store is nil")
	}

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		m.setState(StateConnecting)
		body, err := m.opener.OpenEvents(ctx)
		if err != nil {
			m.setState(StateError)
			attempt++
			delay := m.cfg.Backoff.Next(attempt)
			m.logger.Warn("event stream connect failed",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", delay))
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
			continue
		}

		attempt = 0
		m.setState(StateOpen)
		m.logger.Info("event stream open")

		scanErr := m.consume(ctx, body)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		m.setState(StateError)
		attempt++
		delay := m.cfg.Backoff.Next(attempt)
		m.logger.Warn("event stream closed",
			zap.Error(scanErr),
			zap.Duration("retry_in", delay))
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}
}

// consume reads the stream line by line until it ends or the context
// is cancelled. The body is closed on the way out in both cases.
func (m *Manager) consume(ctx context.Context, body io.ReadCloser) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			body.Close()
		case <-done:
		}
	}()
	defer func() {
		close(done)
		body.Close()
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m.handleLine(ctx, scanner.Text())
	}
	return scanner.Err()
}

// handleLine extracts the JSON payload from one stream line. Framing
// lines (comments, event names, ids) carry no payload and are skipped.
func (m *Manager) handleLine(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ":") {
		return
	}
	for _, framing := range []string{"event:", "id:", "retry:"} {
		if strings.HasPrefix(line, framing) {
			return
		}
	}
	payload := line
	if rest, ok := strings.CutPrefix(line, "data:"); ok {
		payload = strings.TrimSpace(rest)
	}
	if payload == "" {
		return
	}

	ev, ok := m.normalizer.Normalize([]byte(payload))
	if !ok {
		return
	}
	m.apply(ctx, ev)
}

// apply writes the event's status into the pool table. Events only
// ever touch the status column; transaction ids arrive via polling.
func (m *Manager) apply(ctx context.Context, ev model.DeploymentEvent) {
	prev, ok := m.pools.ApplyStatus(ev.PoolID, ev.Status)
	if !ok {
		m.logger.Debug("event for untracked pool", zap.Int64("pool_id", ev.PoolID))
		return
	}

	if prev != ev.Status {
		m.logger.Info("pool status changed",
			zap.Int64("pool_id", ev.PoolID),
			zap.String("from", string(prev)),
			zap.String("to", string(ev.Status)),
			zap.String("kind", ev.Kind))
		m.journal(ctx, ev, prev)
	}

	m.notify(ev)
}

func (m *Manager) journal(ctx context.Context, ev model.DeploymentEvent, prev pipeline.Status) {
	if m.cfg.Journal == nil {
		return
	}
	tr := model.NewStatusTransition(ev.PoolID, prev, ev.Status, model.SourcePush, ev.TxHash)
	if err := m.cfg.Journal.PutTransitions(ctx, []model.StatusTransition{tr}); err != nil {
		m.logger.Warn("journal write failed", zap.Error(err))
	}
}

// notify surfaces terminal events to the operator. The event kind, not
// the status, decides which notification accompanies a mutation; legacy
// events carry no kind and fall back to their reported status.
func (m *Manager) notify(ev model.DeploymentEvent) {
	if m.cfg.Notifier == nil {
		return
	}
	switch ev.Kind {
	case event.KindDeploymentComplete:
		m.offerSuccess(ev)
	case event.KindDeploymentFailed:
		m.offerFailure(ev)
	case event.KindLegacy:
		switch ev.Status {
		case pipeline.StatusDeployed:
			m.offerSuccess(ev)
		case pipeline.StatusFailed:
			m.offerFailure(ev)
		}
	}
}

func (m *Manager) offerSuccess(ev model.DeploymentEvent) {
	m.cfg.Notifier.Offer(notify.Notification{
		PoolID:  ev.PoolID,
		Level:   notify.LevelSuccess,
		Message: fmt.Sprintf("pool %d deployed", ev.PoolID),
	})
}

func (m *Manager) offerFailure(ev model.DeploymentEvent) {
	msg := fmt.Sprintf("pool %d deployment failed", ev.PoolID)
	if ev.Error != "" {
		msg = fmt.Sprintf("pool %d deployment failed: %s", ev.PoolID, ev.Error)
	}
	m.cfg.Notifier.Offer(notify.Notification{
		PoolID:  ev.PoolID,
		Level:   notify.LevelError,
		Message: msg,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
