// Package store defines the upstream store contract the change tailer
// consumes: the three read-only queries spec.md §6 names against the
// durable relational store (history, latest view, changes) that lives
// outside this repo's scope.
package store

import (
	"context"
	"time"

	"github.com/edirooss/capdir/internal/model"
)

// ChangeRow is one row of the "next changes" query: a change-log entry
// left-joined to the entries table by (id, rev). Entry is nil when the
// join found no matching row.
type ChangeRow struct {
	Seq        int64
	ID         string
	Rev        int64
	ChangeType string
	ChangedAt  time.Time
	Entry      *model.Entry
}

// Store is the upstream store's read-only surface (spec.md §6): list the
// latest view, read the change log's current high-water mark, and fetch
// the next batch of changes after a sequence number.
type Store interface {
	// ListLatest streams every row of the latest view. fn is called once
	// per row; returning an error aborts the stream.
	ListLatest(ctx context.Context, fn func(*model.Entry) error) error

	// MaxSeq returns the change log's current maximum sequence number, or
	// 0 if the log is empty.
	MaxSeq(ctx context.Context) (int64, error)

	// NextChanges returns up to batchSize rows with seq > lastSeq, ordered
	// by seq ascending.
	NextChanges(ctx context.Context, lastSeq int64, batchSize int) ([]ChangeRow, error)
}
