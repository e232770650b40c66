package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolConsole/internal/action"
	"poolConsole/internal/api"
	"poolConsole/internal/config"
	"poolConsole/internal/model"
	"poolConsole/internal/pipeline"
	"poolConsole/internal/poll"
	"poolConsole/internal/store"
)

// actionEnv bundles the pieces every one-shot pool command needs: the
// backend client, a freshly loadable pool table, and the orchestrator
// that validates actions against it.
type actionEnv struct {
	cfg    config.ActionConfig
	logger *zap.Logger
	client *api.Client
	pools  *store.Store
	poller *poll.Poller
	orch   *action.Orchestrator
}

func newActionEnv(cmd *cobra.Command) (*actionEnv, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAction(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.API == "" {
		return nil, fmt.Errorf("api base url is required")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.API, cfg.HTTPTimeout, logger)
	pools := store.New()
	poller := poll.NewPoller(poll.Config{}, client, pools, logger)

	return &actionEnv{
		cfg:    cfg,
		logger: logger,
		client: client,
		pools:  pools,
		poller: poller,
		orch:   action.NewOrchestrator(client, pools, poller, logger),
	}, nil
}

// load pulls the current pending snapshot so validity checks run
// against fresh state rather than an empty table.
func (e *actionEnv) load(ctx context.Context) error {
	if err := e.poller.Poll(ctx); err != nil {
		return fmt.Errorf("load pending pools: %w", err)
	}
	return nil
}

func parsePoolID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid pool id %q", arg)
	}
	return id, nil
}

// poolView is the console's output row: the raw record plus the derived
// progress and step states.
type poolView struct {
	model.Pool
	Progress pipeline.Progress      `json:"progress"`
	Steps    []model.DeploymentStep `json:"steps"`
}

func newPoolView(pool model.Pool) poolView {
	return poolView{
		Pool:     pool,
		Progress: pipeline.ProgressFor(pool.Status),
		Steps:    pool.DeploymentSteps(),
	}
}

// printPool writes the refreshed view of a pool to stdout. Terminal
// pools drop out of the pending snapshot, so absence is expected after
// a reject.
func printPool(pools *store.Store, poolID int64) error {
	pool, ok := pools.Get(poolID)
	if !ok {
		fmt.Printf("pool %d is no longer in the pending set\n", poolID)
		return nil
	}
	return json.NewEncoder(os.Stdout).Encode(newPoolView(pool))
}

func runPools(cmd *cobra.Command, _ []string) error {
	env, err := newActionEnv(cmd)
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pools, err := env.client.PendingPools(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for _, pool := range pools {
		if err := enc.Encode(newPoolView(pool)); err != nil {
			return fmt.Errorf("encode pool: %w", err)
		}
	}
	env.logger.Info("pending pools listed", zap.Int("count", len(pools)))
	return nil
}

func runApprove(cmd *cobra.Command, args []string) error {
	poolID, err := parsePoolID(args[0])
	if err != nil {
		return err
	}

	env, err := newActionEnv(cmd)
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := env.load(ctx); err != nil {
		return err
	}
	if err := env.orch.Approve(ctx, poolID); err != nil {
		return err
	}
	return printPool(env.pools, poolID)
}

func runReject(cmd *cobra.Command, args []string) error {
	poolID, err := parsePoolID(args[0])
	if err != nil {
		return err
	}
	reason, _ := cmd.Flags().GetString("reason")

	env, err := newActionEnv(cmd)
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := env.load(ctx); err != nil {
		return err
	}
	if err := env.orch.Reject(ctx, poolID, reason); err != nil {
		return err
	}
	return printPool(env.pools, poolID)
}

func runRetryStep(cmd *cobra.Command, args []string) error {
	poolID, err := parsePoolID(args[0])
	if err != nil {
		return err
	}

	env, err := newActionEnv(cmd)
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := env.load(ctx); err != nil {
		return err
	}

	var step pipeline.Step
	if len(args) > 1 {
		step, err = pipeline.ParseStep(args[1])
		if err != nil {
			return err
		}
	} else {
		pool, ok := env.pools.Get(poolID)
		if !ok {
			return fmt.Errorf("pool %d is not in the pending set", poolID)
		}
		step, ok = pool.EligibleRetryStep()
		if !ok {
			return fmt.Errorf("pool %d has no retryable step", poolID)
		}
	}

	if err := env.orch.RetryStep(ctx, poolID, step); err != nil {
		return err
	}
	return printPool(env.pools, poolID)
}
