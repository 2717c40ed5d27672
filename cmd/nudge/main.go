// Command nudge runs the reminder bot: a Telegram front end over a per-user
// conversation engine that schedules one-shot reminders against a fixed
// base clock.
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

	"nudge/internal/bot"
	"nudge/internal/config"
	"nudge/internal/delivery/channels/telegram"
	"nudge/internal/logging"
	"nudge/internal/observability"
	"nudge/internal/scheduler"
	"nudge/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "nudge",
		Short:         "Telegram reminder bot with flat clock offsets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file path (default ~/.nudge/config.yaml)")
	return cmd
}

func run(parent context.Context, configPath string) error {
	var opts []config.Option
	if configPath != "" {
		opts = append(opts, config.WithFile(configPath))
	}
	cfg, meta, err := config.Load(opts...)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	obsLogger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	logger := logging.FromObservability(obsLogger, "nudge")
	logger.Debug("config loaded (token source=%s, base zone %s%+dh)",
		meta.Source("telegram_token"), cfg.BaseZoneName, cfg.BaseUTCOffsetHours)

	metrics, err := observability.NewMetricsCollector(observability.MetricsConfig{
		Enabled:        cfg.MetricsEnabled,
		PrometheusPort: cfg.MetricsPort,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown: %v", err)
		}
	}()

	registry := session.NewRegistry()
	registry.OnCreate(func(user session.UserID) {
		metrics.RecordSessionCreated(context.Background())
		logger.Info("session created for %s", user)
	})

	// All scheduling happens on the base clock; users only ever see their
	// offset applied on top of it.
	baseLoc := cfg.BaseLocation()
	baseClock := func() time.Time { return time.Now().In(baseLoc) }

	sched := scheduler.New(baseClock, logging.FromObservability(obsLogger, "scheduler"))

	gateway, err := telegram.NewGateway(telegram.Config{Token: cfg.TelegramToken},
		logging.FromObservability(obsLogger, "telegram"))
	if err != nil {
		return err
	}

	engine := bot.New(registry, sched, gateway, metrics,
		logging.FromObservability(obsLogger, "bot"), baseClock)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("nudge running")
	if err := gateway.Run(ctx, engine); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("nudge stopped")
	return nil
}
