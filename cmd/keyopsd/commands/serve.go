// Package commands holds the keyopsd subcommands.
package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/systmms/keyops/internal/config"
	"github.com/systmms/keyops/internal/logging"
	"github.com/systmms/keyops/internal/service"
)

// NewServeCommand builds the serve subcommand, the daemon's main entry
// point.
func NewServeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the key management service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			svc, err := service.New(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("starting keyopsd",
				zap.String("socket", cfg.Listener.SocketPath))
			err = svc.Run(ctx)
			logger.Info("keyopsd stopped")
			return err
		},
	}
}
