// Package tailer implements the change tailer (C8): a startup snapshot
// load followed by a fixed-interval poll loop against the upstream store's
// change log, applying each row to the registry idempotently.
package tailer

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/edirooss/capdir/internal/core/registry"
	"github.com/edirooss/capdir/internal/model"
	"github.com/edirooss/capdir/internal/store"
)

// DefaultInterval and DefaultBatchSize are the tuning defaults spec.md
// §4.8 names.
const (
	DefaultInterval  = 500 * time.Millisecond
	DefaultBatchSize = 500
)

// Tailer owns last_seq and drives the registry's updates from the
// upstream store. The zero value is not usable; construct with New.
type Tailer struct {
	reg   *registry.Registry
	store store.Store
	log   *zap.Logger

	interval  time.Duration
	batchSize int

	lastSeq atomic.Int64
	group   singleflight.Group
}

// New constructs a Tailer over reg and src. interval and batchSize fall
// back to the package defaults when zero.
func New(log *zap.Logger, reg *registry.Registry, src store.Store, interval time.Duration, batchSize int) *Tailer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Tailer{
		reg:       reg,
		store:     src,
		log:       log.Named("tailer"),
		interval:  interval,
		batchSize: batchSize,
	}
}

// LastSeq returns the current high-water mark.
func (t *Tailer) LastSeq() int64 { return t.lastSeq.Load() }

// Bootstrap loads every row of the latest view into the registry in one
// batch, resorts once, then initializes last_seq from the store's current
// max (spec.md §4.8 "Startup").
func (t *Tailer) Bootstrap(ctx context.Context) error {
	start := time.Now()
	n := 0
	err := t.store.ListLatest(ctx, func(e *model.Entry) error {
		t.reg.Upsert(e, false)
		n++
		return nil
	})
	if err != nil {
		return err
	}
	t.reg.Resort()

	seq, err := t.store.MaxSeq(ctx)
	if err != nil {
		return err
	}
	t.lastSeq.Store(seq)

	t.log.Info("bootstrap complete",
		zap.Int("docs", n),
		zap.Int64("last_seq", seq),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Run blocks, polling at t.interval until ctx is canceled. A tick that
// fires while a poll is still in flight is dropped (spec.md §5
// "in_flight").
func (t *Tailer) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.pollOnce(ctx)
		}
	}
}

// pollOnce runs a single poll cycle, deduplicated via singleflight so an
// overrunning cycle cannot overlap with the next tick.
func (t *Tailer) pollOnce(ctx context.Context) {
	_, _, _ = t.group.Do("poll", func() (any, error) {
		if err := t.cycle(ctx); err != nil {
			t.log.Error("poll cycle aborted", zap.Error(err))
		}
		return nil, nil
	})
}

// cycle fetches and applies batches until a batch returns fewer than
// batchSize rows (spec.md §4.8 "Poll"). An error aborts the cycle without
// advancing last_seq past the failing row.
func (t *Tailer) cycle(ctx context.Context) error {
	for {
		rows, err := t.store.NextChanges(ctx, t.lastSeq.Load(), t.batchSize)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.Entry != nil {
				t.reg.Upsert(row.Entry, true)
			}
			t.lastSeq.Store(row.Seq)
		}
		if len(rows) < t.batchSize {
			return nil
		}
	}
}
