package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/ba-analyser/internal/ratelimit"
	"github.com/kitbuilder587/ba-analyser/internal/server"
	"github.com/kitbuilder587/ba-analyser/internal/telegram"
)

func newServeCmd(env *environment) *cobra.Command {
	var (
		addr       string
		noTelegram bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when TELEGRAM_BOT_TOKEN is set, the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.setup(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}

			limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: a.cfg.RateLimit.RequestsPerMinute})
			defer limiter.Stop()

			sessions := a.newSessions()
			srv := server.New(server.Deps{
				Sessions:    sessions,
				Detector:    a.detector,
				NewAnalyser: a.newAnalyser,
				Stories:     a.stories,
				Limiter:     limiter,
				Metrics:     a.metrics,
				Logger:      a.logger,
				CORSOrigins: a.cfg.HTTP.CORSOrigins,
				Info: server.Info{
					Provider:             a.cfg.LLM.Provider,
					Model:                a.cfg.Model(),
					Threshold:            a.cfg.Analysis.QualityThreshold,
					DimensionConcurrency: a.cfg.Analysis.DimensionConcurrency,
					Store:                a.cfg.Store.Type,
				},
			})

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return srv.Run(gctx, addr)
			})

			if a.cfg.Telegram.Token != "" && !noTelegram {
				bot, err := telegram.New(telegram.BotConfig{
					Token:             a.cfg.Telegram.Token,
					Debug:             env.verbose,
					RequestsPerMinute: a.cfg.RateLimit.RequestsPerMinute,
					Threshold:         a.cfg.Analysis.QualityThreshold,
				}, telegram.Deps{
					Sessions: sessions,
					Detector: a.detector,
					Stories:  a.stories,
					Logger:   a.logger,
					Metrics:  a.metrics,
				})
				if err != nil {
					return fmt.Errorf("start telegram bot: %w", err)
				}
				g.Go(func() error {
					return bot.Run(gctx)
				})
			} else {
				a.logger.Info("telegram bot disabled")
			}

			a.logger.Info("ba-analyser started",
				zap.String("addr", addr),
				zap.String("provider", a.cfg.LLM.Provider),
				zap.String("model", a.cfg.Model()),
			)
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default HTTP_ADDR)")
	cmd.Flags().BoolVar(&noTelegram, "no-telegram", false, "do not start the Telegram bot")
	return cmd
}
