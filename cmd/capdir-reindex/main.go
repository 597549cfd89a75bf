// Command capdir-reindex forces a full registry rebuild from the upstream
// store and reports the resulting stats, for operators who suspect the
// daemon's in-memory index has drifted from the store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edirooss/capdir/internal/config"
	"github.com/edirooss/capdir/internal/core/registry"
	"github.com/edirooss/capdir/internal/core/tailer"
	"github.com/edirooss/capdir/internal/store/postgres"
)

func main() {
	dsn := flag.String("dsn", "", "store DSN (defaults to STORE_DSN)")
	flag.Parse()

	log := buildLogger()
	log = log.Named("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}
	if *dsn != "" {
		cfg.StoreDSN = *dsn
	}
	if cfg.StoreDSN == "" {
		fmt.Println("Usage: ./capdir-reindex -dsn=<store_dsn> (or set STORE_DSN)")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, cfg.StoreDSN)
	if err != nil {
		log.Fatal("store connect failed", zap.Error(err))
	}
	defer pool.Close()

	src := postgres.New(log, pool)
	reg := registry.New()
	t := tailer.New(log, reg, src, cfg.PollInterval, cfg.PollBatchSize)

	start := time.Now()
	if err := t.Bootstrap(ctx); err != nil {
		log.Fatal("reindex failed", zap.Error(err))
	}

	docs, eq, presence, postingsCard := reg.Stats()
	log.Info("reindex complete",
		zap.Int("docs", docs),
		zap.Int("eq_tokens", eq),
		zap.Int("presence_tokens", presence),
		zap.Uint64("postings_cardinality", postingsCard),
		zap.Int64("last_seq", t.LastSeq()),
		zap.Duration("took", time.Since(start)),
	)
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}
