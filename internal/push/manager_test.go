package push

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"poolConsole/internal/model"
	"poolConsole/internal/notify"
	"poolConsole/internal/pipeline"
	"poolConsole/internal/store"
)

type chanOpener struct {
	ch    chan io.ReadCloser
	fails int
	mu    sync.Mutex
	calls int
}

func (o *chanOpener) OpenEvents(ctx context.Context) (io.ReadCloser, error) {
	o.mu.Lock()
	o.calls++
	fail := o.calls <= o.fails
	o.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	select {
	case body := <-o.ch:
		return body, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type captureNotifier struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (c *captureNotifier) Offer(n notify.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notes)
}

type captureJournal struct {
	mu          sync.Mutex
	transitions []model.StatusTransition
}

func (c *captureJournal) PutTransitions(_ context.Context, trs []model.StatusTransition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitions = append(c.transitions, trs...)
	return nil
}

func (c *captureJournal) all() []model.StatusTransition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.StatusTransition, len(c.transitions))
	copy(out, c.transitions)
	return out
}

func seedStore() *store.Store {
	s := store.New()
	s.Replace([]model.Pool{
		{ID: 1, Status: pipeline.StatusDeployingPool, PoolCreationTxID: "tx-a"},
		{ID: 2, Status: pipeline.StatusPending},
	})
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestManagerAppliesStreamEvents(t *testing.T) {
	st := seedStore()
	opener := &chanOpener{ch: make(chan io.ReadCloser, 1)}
	pr, pw := io.Pipe()
	opener.ch <- pr

	m := NewManager(Config{Backoff: FixedBackoff{Delay: time.Millisecond}}, opener, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	pw.Write([]byte("data: {\"type\":\"deployment_update\",\"poolId\":1,\"status\":\"POOL_CREATED\"}\n"))

	waitFor(t, func() bool {
		p, _ := st.Get(1)
		return p.Status == pipeline.StatusPoolCreated
	})

	// Status is the only column the stream may touch.
	p, _ := st.Get(1)
	if p.PoolCreationTxID != "tx-a" {
		t.Fatalf("tx id clobbered: %+v", p)
	}

	cancel()
	pw.Close()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
}

func TestManagerSkipsFramingLines(t *testing.T) {
	st := seedStore()
	opener := &chanOpener{ch: make(chan io.ReadCloser, 1)}
	pr, pw := io.Pipe()
	opener.ch <- pr

	m := NewManager(Config{Backoff: FixedBackoff{Delay: time.Millisecond}}, opener, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	pw.Write([]byte(": heartbeat\n"))
	pw.Write([]byte("event: deployment\n"))
	pw.Write([]byte("id: 42\n"))
	pw.Write([]byte("retry: 3000\n"))
	// A raw JSON line without framing still counts.
	pw.Write([]byte("{\"type\":\"pool_configured\",\"poolId\":1,\"status\":\"POOL_CONFIGURED\"}\n"))

	waitFor(t, func() bool {
		p, _ := st.Get(1)
		return p.Status == pipeline.StatusPoolConfigured
	})
	pw.Close()
}

func TestManagerReconnectsAfterStreamEnd(t *testing.T) {
	st := seedStore()
	opener := &chanOpener{ch: make(chan io.ReadCloser, 2)}

	pr1, pw1 := io.Pipe()
	pr2, pw2 := io.Pipe()
	opener.ch <- pr1
	opener.ch <- pr2

	m := NewManager(Config{Backoff: FixedBackoff{Delay: time.Millisecond}}, opener, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	pw1.Write([]byte("data: {\"type\":\"deployment_update\",\"poolId\":1,\"status\":\"POOL_CREATED\"}\n"))
	waitFor(t, func() bool {
		p, _ := st.Get(1)
		return p.Status == pipeline.StatusPoolCreated
	})
	pw1.Close()

	pw2.Write([]byte("data: {\"type\":\"deployment_update\",\"poolId\":1,\"status\":\"CONFIGURING_POOL\"}\n"))
	waitFor(t, func() bool {
		p, _ := st.Get(1)
		return p.Status == pipeline.StatusConfiguringPool
	})
	pw2.Close()
}

func TestManagerRetriesFailedConnects(t *testing.T) {
	st := seedStore()
	opener := &chanOpener{ch: make(chan io.ReadCloser, 1), fails: 3}
	pr, pw := io.Pipe()
	opener.ch <- pr

	m := NewManager(Config{Backoff: FixedBackoff{Delay: time.Millisecond}}, opener, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	waitFor(t, func() bool { return m.State() == StateOpen })

	pw.Write([]byte("data: {\"type\":\"deployment_update\",\"poolId\":2,\"status\":\"DEPLOYING_POOL\"}\n"))
	waitFor(t, func() bool {
		p, _ := st.Get(2)
		return p.Status == pipeline.StatusDeployingPool
	})
	pw.Close()
}

func TestManagerJournalsAndNotifies(t *testing.T) {
	st := seedStore()
	opener := &chanOpener{ch: make(chan io.ReadCloser, 1)}
	pr, pw := io.Pipe()
	opener.ch <- pr

	journal := &captureJournal{}
	notes := &captureNotifier{}
	m := NewManager(Config{
		Backoff:  FixedBackoff{Delay: time.Millisecond},
		Journal:  journal,
		Notifier: notes,
	}, opener, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	pw.Write([]byte("data: {\"type\":\"deployment_failed\",\"poolId\":1,\"status\":\"FAILED\",\"error\":\"revert\",\"txHash\":\"0xdead\"}\n"))

	waitFor(t, func() bool { return notes.count() == 1 })
	waitFor(t, func() bool { return len(journal.all()) == 1 })

	tr := journal.all()[0]
	if tr.PoolID != 1 || tr.Source != model.SourcePush {
		t.Fatalf("transition mismatch: %+v", tr)
	}
	if tr.From != pipeline.StatusDeployingPool || tr.To != pipeline.StatusFailed {
		t.Fatalf("transition statuses mismatch: %+v", tr)
	}
	if tr.TxHash != "0xdead" {
		t.Fatalf("tx hash missing: %+v", tr)
	}

	notes.mu.Lock()
	n := notes.notes[0]
	notes.mu.Unlock()
	if n.Level != notify.LevelError || n.PoolID != 1 {
		t.Fatalf("notification mismatch: %+v", n)
	}
	pw.Close()
}

func TestManagerNotifiesByKindNotStatus(t *testing.T) {
	st := seedStore()
	opener := &chanOpener{ch: make(chan io.ReadCloser, 1)}
	pr, pw := io.Pipe()
	opener.ch <- pr

	notes := &captureNotifier{}
	m := NewManager(Config{Backoff: FixedBackoff{Delay: time.Millisecond}, Notifier: notes}, opener, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// A plain update reaching DEPLOYED stays silent; only the
	// deployment_complete kind celebrates.
	pw.Write([]byte("data: {\"type\":\"deployment_update\",\"poolId\":1,\"status\":\"DEPLOYED\"}\n"))
	waitFor(t, func() bool {
		p, _ := st.Get(1)
		return p.Status == pipeline.StatusDeployed
	})
	if notes.count() != 0 {
		t.Fatalf("deployment_update must not notify, got %d", notes.count())
	}

	pw.Write([]byte("data: {\"type\":\"deployment_complete\",\"poolId\":2,\"status\":\"DEPLOYED\"}\n"))
	waitFor(t, func() bool { return notes.count() == 1 })

	notes.mu.Lock()
	n := notes.notes[0]
	notes.mu.Unlock()
	if n.Level != notify.LevelSuccess || n.PoolID != 2 {
		t.Fatalf("notification mismatch: %+v", n)
	}
	pw.Close()
}

func TestManagerLegacyEventNotifiesByStatus(t *testing.T) {
	st := seedStore()
	opener := &chanOpener{ch: make(chan io.ReadCloser, 1)}
	pr, pw := io.Pipe()
	opener.ch <- pr

	notes := &captureNotifier{}
	m := NewManager(Config{Backoff: FixedBackoff{Delay: time.Millisecond}, Notifier: notes}, opener, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// Legacy payloads carry no type; pool 1 owns tx-a.
	pw.Write([]byte("{\"transactionId\":\"tx-a\",\"status\":\"FAILED\",\"error\":\"out of gas\"}\n"))

	waitFor(t, func() bool { return notes.count() == 1 })
	notes.mu.Lock()
	n := notes.notes[0]
	notes.mu.Unlock()
	if n.Level != notify.LevelError || n.PoolID != 1 {
		t.Fatalf("notification mismatch: %+v", n)
	}
	pw.Close()
}

func TestManagerIgnoresUntrackedPools(t *testing.T) {
	st := seedStore()
	opener := &chanOpener{ch: make(chan io.ReadCloser, 1)}
	pr, pw := io.Pipe()
	opener.ch <- pr

	journal := &captureJournal{}
	m := NewManager(Config{Backoff: FixedBackoff{Delay: time.Millisecond}, Journal: journal}, opener, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	pw.Write([]byte("data: {\"type\":\"deployment_update\",\"poolId\":999,\"status\":\"DEPLOYED\"}\n"))
	pw.Write([]byte("data: {\"type\":\"deployment_update\",\"poolId\":1,\"status\":\"POOL_CREATED\"}\n"))

	waitFor(t, func() bool {
		p, _ := st.Get(1)
		return p.Status == pipeline.StatusPoolCreated
	})
	if len(journal.all()) != 1 {
		t.Fatalf("untracked pool must not journal, got %d entries", len(journal.all()))
	}
	pw.Close()
}
