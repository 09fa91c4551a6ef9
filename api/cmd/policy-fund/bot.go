package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"policy-fund-backend/api/internal/config"
	"policy-fund-backend/api/internal/cors"
	"policy-fund-backend/api/internal/handle"
	"policy-fund-backend/api/internal/httpserver"
	"policy-fund-backend/api/internal/logging"
	"policy-fund-backend/api/internal/telegram"
)

func newBotCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot (long polling) next to the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.TelegramBotToken == "" {
				return errors.New("TELEGRAM_BOT_TOKEN is required")
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

			bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
			if err != nil {
				return err
			}
			bot.Debug = false
			log.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))

			router := httpserver.NewRouter(httpserver.Deps{
				Handle: handle.New(a.svc, a.pinger(), log),
				Policy: cors.NewPolicy(cfg.FrontendOrigins, 0),
				Logger: log,
			})
			httpErr := make(chan error, 1)
			go func() {
				err := httpserver.Serve(ctx, cfg.Addr(), router, cfg.UpstreamTimeout+15*time.Second, log)
				if err != nil {
					log.Error("http server stopped", zap.Error(err))
					stop()
				}
				httpErr <- err
			}()

			r := &telegram.Router{Bot: bot, Svc: a.svc, Log: log}
			telegram.Poll(ctx, bot, workers, log, r.HandleUpdate)

			stop()
			return <-httpErr
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 8, "updates handled concurrently")
	return cmd
}
