package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolConsole/internal/api"
	"poolConsole/internal/chain"
	"poolConsole/internal/config"
	"poolConsole/internal/model"
)

func runVerify(cmd *cobra.Command, args []string) error {
	poolID, err := parsePoolID(args[0])
	if err != nil {
		return err
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadVerify(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.API == "" {
		return fmt.Errorf("api base url is required")
	}
	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(cfg.API, cfg.HTTPTimeout, logger)
	pools, err := client.PendingPools(ctx)
	if err != nil {
		return err
	}

	var pool model.Pool
	found := false
	for _, p := range pools {
		if p.ID == poolID {
			pool, found = p, true
			break
		}
	}
	if !found {
		return fmt.Errorf("pool %d is not in the pending set", poolID)
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("query chain id: %w", err)
	}
	logger.Info("rpc connected", zap.String("chain_id", chainID.String()))

	report, err := chainClient.VerifyPool(ctx, pool)
	if err != nil {
		return err
	}
	if len(report) == 0 {
		fmt.Printf("pool %d has no recorded transactions yet\n", poolID)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	for _, evidence := range report {
		if err := enc.Encode(evidence); err != nil {
			return fmt.Errorf("encode evidence: %w", err)
		}
	}
	logger.Info("evidence checked",
		zap.Int64("pool_id", poolID),
		zap.Int("transactions", len(report)))
	return nil
}
