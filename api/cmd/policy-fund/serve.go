package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"policy-fund-backend/api/internal/config"
	"policy-fund-backend/api/internal/cors"
	"policy-fund-backend/api/internal/handle"
	"policy-fund-backend/api/internal/httpserver"
	"policy-fund-backend/api/internal/logging"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			policy := cors.NewPolicy(cfg.FrontendOrigins, 0)
			if policy.AllowsAll() {
				log.Warn("FRONTEND_ORIGIN allows every origin")
			}
			router := httpserver.NewRouter(httpserver.Deps{
				Handle: handle.New(a.svc, a.pinger(), log),
				Policy: policy,
				Logger: log,
			})

			log.Info("starting http api",
				zap.Strings("origins", cfg.FrontendOrigins),
				zap.Duration("upstream_timeout", cfg.UpstreamTimeout),
			)
			return httpserver.Serve(ctx, cfg.Addr(), router, cfg.UpstreamTimeout+15*time.Second, log)
		},
	}
}
