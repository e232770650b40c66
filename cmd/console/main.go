package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"poolConsole/internal/api"
	"poolConsole/internal/config"
	"poolConsole/internal/notify"
	"poolConsole/internal/poll"
	"poolConsole/internal/push"
	"poolConsole/internal/storage"
	"poolConsole/internal/storage/postgres"
	"poolConsole/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:          "console",
		Short:        "Loan pool deployment console",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Track pool deployments until interrupted",
		RunE:  runWatch,
	}

	watchCmd.Flags().String("api", "", "backend base URL")
	watchCmd.Flags().Duration("poll-interval", 30*time.Second, "pending-pool snapshot interval")
	watchCmd.Flags().String("reconnect-policy", "fixed", "stream reconnect policy (fixed, exponential)")
	watchCmd.Flags().Duration("reconnect-delay", 5*time.Second, "delay before stream reconnects")
	watchCmd.Flags().Duration("reconnect-max", 60*time.Second, "reconnect delay cap for the exponential policy")
	watchCmd.Flags().Duration("notify-cooldown", 10*time.Second, "minimum quiet time between notification batches")
	watchCmd.Flags().Duration("notify-delay", 2*time.Second, "collection window before a notification batch flushes")
	watchCmd.Flags().Duration("http-timeout", 15*time.Second, "timeout for snapshot and action requests")
	watchCmd.Flags().String("journal", "./data/transitions.jsonl", "status transition journal JSONL path")
	watchCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the journal and snapshot mirror")
	watchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(watchCmd)

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "List pending pools with derived step states",
		Args:  cobra.NoArgs,
		RunE:  runPools,
	}
	addActionFlags(poolsCmd)
	root.AddCommand(poolsCmd)

	approveCmd := &cobra.Command{
		Use:   "approve <pool-id>",
		Short: "Approve a pending pool for deployment",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprove,
	}
	addActionFlags(approveCmd)
	root.AddCommand(approveCmd)

	rejectCmd := &cobra.Command{
		Use:   "reject <pool-id>",
		Short: "Reject a pending pool",
		Args:  cobra.ExactArgs(1),
		RunE:  runReject,
	}
	rejectCmd.Flags().String("reason", "", "rejection reason forwarded to the creator")
	addActionFlags(rejectCmd)
	root.AddCommand(rejectCmd)

	retryCmd := &cobra.Command{
		Use:   "retry <pool-id> [step]",
		Short: "Retry the failed step of a pool",
		Long: "Retry a deployment step of a failed pool. Without an explicit step the\n" +
			"first one lacking transaction evidence is retried.",
		Args: cobra.RangeArgs(1, 2),
		RunE: runRetryStep,
	}
	addActionFlags(retryCmd)
	root.AddCommand(retryCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify <pool-id>",
		Short: "Check a pool's recorded transactions against the chain",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify,
	}
	verifyCmd.Flags().String("api", "", "backend base URL")
	verifyCmd.Flags().String("rpc", "", "chain RPC URL")
	verifyCmd.Flags().Duration("http-timeout", 15*time.Second, "timeout for backend requests")
	verifyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(verifyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addActionFlags(cmd *cobra.Command) {
	cmd.Flags().String("api", "", "backend base URL")
	cmd.Flags().Duration("http-timeout", 15*time.Second, "timeout for backend requests")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
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

	backoff, err := newBackoff(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(cfg.API, cfg.HTTPTimeout, logger)
	pools := store.New()
	pools.OnChange(func() {
		logger.Debug("pool table changed", zap.Int("pending", len(pools.Pending())))
	})

	var sinks storage.Multi
	if cfg.Journal != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Journal))
	}

	var mirror poll.SnapshotMirror
	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		sinks = append(sinks, pgStore)
		mirror = pgStore
	}

	var journal storage.Storage
	if len(sinks) > 0 {
		journal = sinks
	}

	debouncer := notify.NewDebouncer(notify.NewLogSink(logger), cfg.NotifyCooldown, cfg.NotifyDelay)
	defer debouncer.Stop()

	poller := poll.NewPoller(poll.Config{
		Interval: cfg.PollInterval,
		Journal:  journal,
		Mirror:   mirror,
		Notifier: debouncer,
	}, client, pools, logger)

	manager := push.NewManager(push.Config{
		Backoff:  backoff,
		Journal:  journal,
		Notifier: debouncer,
	}, client, pools, logger)

	logger.Info("console watch start",
		zap.String("api", cfg.API),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("reconnect_policy", cfg.ReconnectPolicy),
		zap.Duration("reconnect_delay", cfg.ReconnectDelay),
		zap.String("journal", cfg.Journal),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	errc := make(chan error, 2)
	go func() { errc <- poller.Run(ctx) }()
	go func() { errc <- manager.Run(ctx) }()

	err = <-errc
	stop()
	<-errc

	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newBackoff(cfg config.Config) (push.Backoff, error) {
	switch cfg.ReconnectPolicy {
	case "fixed", "":
		return push.FixedBackoff{Delay: cfg.ReconnectDelay}, nil
	case "exponential":
		return push.ExponentialBackoff{Base: cfg.ReconnectDelay, Max: cfg.ReconnectMax}, nil
	default:
		return nil, fmt.Errorf("unknown reconnect policy: %s", cfg.ReconnectPolicy)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
