package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/courtside/courtside/internal/app"
	"github.com/courtside/courtside/internal/channel"
	"github.com/courtside/courtside/internal/config"
	"github.com/courtside/courtside/internal/confirm"
	"github.com/courtside/courtside/internal/court"
	"github.com/courtside/courtside/internal/history"
	"github.com/courtside/courtside/internal/match"
	"github.com/courtside/courtside/internal/notify"
	"github.com/courtside/courtside/internal/queue"
	"github.com/courtside/courtside/internal/reorder"
	"github.com/courtside/courtside/internal/resync"
	"github.com/courtside/courtside/internal/rest"
	"github.com/courtside/courtside/internal/router"
	"github.com/courtside/courtside/internal/viewer"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	api := rest.NewClient(cfg.Server.BaseURL)
	if cfg.Server.Token != "" {
		api.SetToken(cfg.Server.Token)
	}

	queueStore := queue.NewStore(clock)
	matchStore := match.NewStore(clock, nil)
	courtStore := court.NewStore()
	toasts := notify.NewDispatcher()

	var journal *history.Store
	if cfg.History.Enabled {
		journal, err = history.New(cfg.History.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.History.Path).Msg("failed to open history store")
		}
		defer journal.Close()
	}

	routes := router.New()

	chCfg := channel.DefaultConfig()
	chCfg.URL = cfg.Server.ChannelURL
	chCfg.Room = cfg.Server.Room
	chCfg.Token = cfg.Server.Token
	ch := channel.New(chCfg, routes, clock)

	fanout := viewer.NewFanout(viewer.DefaultFanoutConfig())

	// The countdown submits auto-confirms through the service, which is
	// built afterwards, so the submitter is bound late.
	var svc *app.Service
	countdown := confirm.New(clock, cfg.ConfirmTimeout(), matchStore,
		func(ctx context.Context, matchID, teamID string) error {
			return svc.AutoConfirm(ctx, matchID, teamID)
		},
		func(matchID string, remaining int) {
			fanout.Broadcast("confirm-countdown", map[string]any{
				"matchId":      matchID,
				"remainingSec": remaining,
			})
		})
	matchStore.SetTimers(countdown)

	reorders := reorder.NewCoordinator(api, queueStore, clock)
	resyncer := resync.New(api, resync.Stores{
		Queue: queueStore,
		Match: matchStore,
		Court: courtStore,
	}, reorders, resync.DiscardFunc(func() {
		if svc != nil {
			svc.DiscardPendingConfirm()
		}
	}))

	svc = app.New(app.Deps{
		Channel:  ch,
		Router:   routes,
		API:      api,
		Queue:    queueStore,
		Match:    matchStore,
		Court:    courtStore,
		Count:    countdown,
		Reorders: reorders,
		Resync:   resyncer,
		Toasts:   toasts,
		Journal:  journal,
		Clock:    clock,
		AdminID:  cfg.Server.AdminID,
	})

	if cfg.Viewer.Enabled {
		viewSrv := viewer.NewServer(queueStore, matchStore, courtStore, countdown, ch, journal, fanout)
		viewSrv.Bind(toasts)
		go fanout.Start(ctx)

		httpSrv := &http.Server{
			Addr:    cfg.Viewer.Addr,
			Handler: viewSrv.Handler(),
		}
		go func() {
			log.Info().Str("addr", cfg.Viewer.Addr).Msg("viewer API listening")
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("viewer server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)
		}()
	}

	log.Info().
		Str("server", cfg.Server.BaseURL).
		Str("channel", cfg.Server.ChannelURL).
		Str("room", cfg.Server.Room).
		Msg("courtside starting")

	if err := svc.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("courtside stopped")
	}
	log.Info().Msg("courtside shut down")
}
