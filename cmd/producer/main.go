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

	"github.com/danielpatrickdp/datasentinel/producer/internal/config"
	"github.com/danielpatrickdp/datasentinel/producer/internal/logging"
	"github.com/danielpatrickdp/datasentinel/producer/internal/producer"
	"github.com/danielpatrickdp/datasentinel/producer/internal/tracing"
	"github.com/danielpatrickdp/datasentinel/producer/internal/transport"
)

const serviceName = "datasentinel-producer"

var version = "dev"

// #region main
func main() {
	if err := newRootCmd().Execute(); err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// #endregion main

// #region commands
func newRootCmd() *cobra.Command {
	cfg, envErr := config.Load()
	if envErr != nil {
		cfg = config.Default()
	}

	root := &cobra.Command{
		Use:   "producer",
		Short: "Stream synthetic feature vectors to the inference engine",
		Long: `Continuously sends normal, anomaly and malformed feature vectors to the
inference engine over the line (tcp) or structured (grpc) protocol, reconnecting
whenever the engine is unreachable. Environment variables set the defaults;
flags override them.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if envErr != nil {
				return envErr
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := root.Flags()
	f.StringVar(&cfg.Host, "host", cfg.Host, "engine host (ENGINE_HOST)")
	f.IntVar(&cfg.Port, "port", cfg.Port, "engine port (ENGINE_PORT)")
	f.StringVar((*string)(&cfg.Protocol), "protocol", string(cfg.Protocol), "wire protocol: tcp or grpc (DATASENTINEL_PROTOCOL)")
	f.Float64Var(&cfg.NormalMin, "normal-min", cfg.NormalMin, "lower bound of normal values (NORMAL_MIN)")
	f.Float64Var(&cfg.NormalMax, "normal-max", cfg.NormalMax, "upper bound of normal values (NORMAL_MAX)")
	f.Float64Var(&cfg.AnomalyMin, "anomaly-min", cfg.AnomalyMin, "lower bound of anomaly values (ANOMALY_MIN)")
	f.Float64Var(&cfg.AnomalyMax, "anomaly-max", cfg.AnomalyMax, "upper bound of anomaly values (ANOMALY_MAX)")
	f.Float64Var(&cfg.AnomalyRate, "anomaly-rate", cfg.AnomalyRate, "probability of an anomaly per cycle (ANOMALY_RATE)")
	f.DurationVar(&cfg.Interval, "interval", cfg.Interval, "pause between evaluated requests (PRODUCER_INTERVAL)")
	f.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "connect deadline (PRODUCER_CONNECT_TIMEOUT)")
	f.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "per-request deadline (PRODUCER_REQUEST_TIMEOUT)")
	f.DurationVar(&cfg.ConnectCooldown, "connect-cooldown", cfg.ConnectCooldown, "pause after a failed connect (PRODUCER_CONNECT_COOLDOWN)")
	f.DurationVar(&cfg.RetryCooldown, "retry-cooldown", cfg.RetryCooldown, "pause after a failed request (PRODUCER_RETRY_COOLDOWN)")
	f.IntVar(&cfg.MaxCycles, "max-cycles", cfg.MaxCycles, "stop after this many responses, 0 for no limit (PRODUCER_MAX_CYCLES)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (PRODUCER_LOG_LEVEL)")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console or json (PRODUCER_LOG_FORMAT)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("producer version %s\n", version)
		},
	})
	return root
}

// #endregion commands

// #region run
func run(parent context.Context, cfg config.ProducerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracing.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", zap.Error(err))
		}
	}()

	session, err := transport.New(cfg)
	if err != nil {
		return err
	}

	loop := producer.NewLoop(cfg, session, producer.WithLogger(logger))
	return loop.Run(ctx)
}

// #endregion run
