// File: cmd/serve.go
package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minsu-cho/declarepass/internal/observability"
	"github.com/minsu-cho/declarepass/internal/server"
	"github.com/minsu-cho/declarepass/internal/service"
)

var serveAddr string

// serveCmd runs the HTTP API until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the declaration submission HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		defer observability.Sync()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := service.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer svc.Shutdown(context.Background())

		srv := server.New(svc, cfg, Version, logger)
		if err := srv.ListenAndServe(ctx); err != nil {
			logger.Error("HTTP server exited with error.", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address for the HTTP API")
	rootCmd.AddCommand(serveCmd)
}
