// Command capdir runs the search core daemon: it bootstraps the registry
// from the upstream store, starts the change tailer, and serves the HTTP
// request surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/edirooss/capdir/internal/config"
	"github.com/edirooss/capdir/internal/core"
	"github.com/edirooss/capdir/internal/core/filter"
	"github.com/edirooss/capdir/internal/core/registry"
	"github.com/edirooss/capdir/internal/core/tailer"
	"github.com/edirooss/capdir/internal/httpapi"
	"github.com/edirooss/capdir/internal/store/postgres"
)

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	log := zap.Must(logConfig.Build())
	defer log.Sync()
	log = log.Named("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.StoreDSN)
	if err != nil {
		log.Fatal("store connect failed", zap.Error(err))
	}
	defer pool.Close()

	src := postgres.New(log, pool)
	reg := registry.New()
	t := tailer.New(log, reg, src, cfg.PollInterval, cfg.PollBatchSize)

	log.Info("bootstrapping registry")
	if err := t.Bootstrap(ctx); err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}

	cache := filter.NewCache(cfg.FilterCacheSize)
	c := core.New(reg, cache, t)

	router := httpapi.NewRouter(log, c, cfg.TrustedHeaders, cfg.PollInterval.Milliseconds(), cfg.Env == "dev")
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return t.Run(gctx)
	})
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error("shutdown with error", zap.Error(err))
	}
}
