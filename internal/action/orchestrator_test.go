package action

import (
	"context"
	"errors"
	"testing"

	"poolConsole/internal/model"
	"poolConsole/internal/pipeline"
	"poolConsole/internal/poll"
	"poolConsole/internal/store"
)

type fakeBackend struct {
	approved []int64
	rejected map[int64]string
	retried  map[int64]pipeline.Step
	err      error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rejected: make(map[int64]string),
		retried:  make(map[int64]pipeline.Step),
	}
}

func (f *fakeBackend) Approve(_ context.Context, poolID int64) error {
	if f.err != nil {
		return f.err
	}
	f.approved = append(f.approved, poolID)
	return nil
}

func (f *fakeBackend) Reject(_ context.Context, poolID int64, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.rejected[poolID] = reason
	return nil
}

func (f *fakeBackend) RetryStep(_ context.Context, poolID int64, step pipeline.Step) error {
	if f.err != nil {
		return f.err
	}
	f.retried[poolID] = step
	return nil
}

type fakeReader map[int64]model.Pool

func (f fakeReader) Get(poolID int64) (model.Pool, bool) {
	p, ok := f[poolID]
	return p, ok
}

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Poll(context.Context) error {
	f.calls++
	return f.err
}

func TestApprovePendingPool(t *testing.T) {
	backend := newFakeBackend()
	refresher := &fakeRefresher{}
	pools := fakeReader{5: {ID: 5, Status: pipeline.StatusPending}}

	o := NewOrchestrator(backend, pools, refresher, nil)
	if err := o.Approve(context.Background(), 5); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if len(backend.approved) != 1 || backend.approved[0] != 5 {
		t.Fatalf("backend not called: %+v", backend.approved)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected a forced refresh, got %d", refresher.calls)
	}
}

func TestApproveRequiresPending(t *testing.T) {
	backend := newFakeBackend()
	refresher := &fakeRefresher{}
	pools := fakeReader{5: {ID: 5, Status: pipeline.StatusDeployingPool}}

	o := NewOrchestrator(backend, pools, refresher, nil)
	err := o.Approve(context.Background(), 5)
	if !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if len(backend.approved) != 0 || refresher.calls != 0 {
		t.Fatalf("rejected action must not reach the backend")
	}
}

func TestApproveUnknownPool(t *testing.T) {
	o := NewOrchestrator(newFakeBackend(), fakeReader{}, &fakeRefresher{}, nil)
	if err := o.Approve(context.Background(), 42); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	backend := newFakeBackend()
	pools := fakeReader{5: {ID: 5, Status: pipeline.StatusPending}}

	o := NewOrchestrator(backend, pools, &fakeRefresher{}, nil)
	for _, reason := range []string{"", "   ", "\t\n"} {
		if err := o.Reject(context.Background(), 5, reason); !errors.Is(err, ErrEmptyReason) {
			t.Fatalf("reason %q: expected ErrEmptyReason, got %v", reason, err)
		}
	}
	if len(backend.rejected) != 0 {
		t.Fatalf("empty reason must not reach the backend")
	}
}

func TestRejectPendingPool(t *testing.T) {
	backend := newFakeBackend()
	refresher := &fakeRefresher{}
	pools := fakeReader{5: {ID: 5, Status: pipeline.StatusPending}}

	o := NewOrchestrator(backend, pools, refresher, nil)
	if err := o.Reject(context.Background(), 5, "  insufficient collateral  "); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if backend.rejected[5] != "insufficient collateral" {
		t.Fatalf("reason not forwarded trimmed: %q", backend.rejected[5])
	}
	if refresher.calls != 1 {
		t.Fatalf("expected a forced refresh, got %d", refresher.calls)
	}
}

func TestRetryStepOnlyForEligibleStep(t *testing.T) {
	backend := newFakeBackend()
	pools := fakeReader{7: {
		ID:               7,
		Status:           pipeline.StatusFailed,
		PoolCreationTxID: "tx-a",
	}}

	o := NewOrchestrator(backend, pools, &fakeRefresher{}, nil)

	// Evidenced and not-yet-reached steps are both refused.
	for _, step := range []pipeline.Step{pipeline.StepPoolCreation, pipeline.StepLoanDeployment} {
		if err := o.RetryStep(context.Background(), 7, step); !errors.Is(err, ErrStepNotProven) {
			t.Fatalf("step %s: expected ErrStepNotProven, got %v", step, err)
		}
	}
	if len(backend.retried) != 0 {
		t.Fatalf("refused retries must not reach the backend")
	}

	if err := o.RetryStep(context.Background(), 7, pipeline.StepPoolConfig); err != nil {
		t.Fatalf("RetryStep: %v", err)
	}
	if backend.retried[7] != pipeline.StepPoolConfig {
		t.Fatalf("backend saw step %s", backend.retried[7])
	}
}

func TestRetryStepRequiresFailed(t *testing.T) {
	pools := fakeReader{7: {ID: 7, Status: pipeline.StatusPending}}

	o := NewOrchestrator(newFakeBackend(), pools, &fakeRefresher{}, nil)
	err := o.RetryStep(context.Background(), 7, pipeline.StepPoolCreation)
	if !errors.Is(err, ErrNotFailed) {
		t.Fatalf("expected ErrNotFailed, got %v", err)
	}
}

func TestBackendErrorSurfacesWithoutRefresh(t *testing.T) {
	backend := newFakeBackend()
	backend.err = errors.New("502 bad gateway")
	refresher := &fakeRefresher{}
	pools := fakeReader{5: {ID: 5, Status: pipeline.StatusPending}}

	o := NewOrchestrator(backend, pools, refresher, nil)
	err := o.Approve(context.Background(), 5)
	if err == nil || !errors.Is(err, backend.err) {
		t.Fatalf("backend error must surface, got %v", err)
	}
	if refresher.calls != 0 {
		t.Fatalf("failed action must not refresh")
	}
}

func TestRefreshFailureDoesNotFailAction(t *testing.T) {
	backend := newFakeBackend()
	refresher := &fakeRefresher{err: errors.New("poll down")}
	pools := fakeReader{5: {ID: 5, Status: pipeline.StatusPending}}

	o := NewOrchestrator(backend, pools, refresher, nil)
	if err := o.Approve(context.Background(), 5); err != nil {
		t.Fatalf("refresh failure must not fail the action: %v", err)
	}
	if refresher.calls != 1 {
		t.Fatalf("refresh should still be attempted")
	}
}

type scriptedLister struct {
	pools []model.Pool
}

func (s *scriptedLister) PendingPools(context.Context) ([]model.Pool, error) {
	out := make([]model.Pool, len(s.pools))
	copy(out, s.pools)
	return out, nil
}

// The full approve cycle: action, forced re-poll, then a stream update
// that outruns the poll carrying the transaction id. The Pool Creation
// step must derive success from status alone during that window.
func TestApproveThenPushOutrunsPoll(t *testing.T) {
	st := store.New()
	st.Replace([]model.Pool{{ID: 5, Status: pipeline.StatusPending}})

	lister := &scriptedLister{pools: []model.Pool{{ID: 5, Status: pipeline.StatusDeployingPool}}}
	poller := poll.NewPoller(poll.Config{}, lister, st, nil)

	o := NewOrchestrator(newFakeBackend(), st, poller, nil)
	if err := o.Approve(context.Background(), 5); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	pool, _ := st.Get(5)
	if pool.Status != pipeline.StatusDeployingPool {
		t.Fatalf("forced refresh not applied: %+v", pool)
	}

	// Stream event arrives before the next poll fills in the tx id.
	st.ApplyStatus(5, pipeline.StatusPoolCreated)

	pool, _ = st.Get(5)
	steps := pool.DeploymentSteps()
	if steps[0].State != pipeline.StepSuccess {
		t.Fatalf("pool creation step: got %s", steps[0].State)
	}
	if steps[0].TxID != "" {
		t.Fatalf("tx id must still be unset during the window")
	}
}
