// Package postgres implements the upstream store contract against a
// relational schema of three tables: entry_history (append-only
// revisions), entry_latest (one row per id, the current revision), and
// entry_changes (append-only change log referencing entry_history by
// (id, rev)).
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/edirooss/capdir/internal/model"
	"github.com/edirooss/capdir/internal/store"
)

// Store is a pgx-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New constructs a Store over an already-configured connection pool.
func New(log *zap.Logger, pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, log: log.Named("store.postgres")}
}

// Connect parses dsn and opens a pooled connection, grounded in the same
// pgxpool.New entrypoint used throughout the pack's Postgres-backed
// services.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

const listLatestQuery = `
SELECT id, rev, type, namespace, name, description, version, attrs, manifest, meta, created_at, updated_at
FROM entry_latest
ORDER BY id
`

// ListLatest streams every row of entry_latest.
func (s *Store) ListLatest(ctx context.Context, fn func(*model.Entry) error) error {
	rows, err := s.pool.Query(ctx, listLatestQuery)
	if err != nil {
		return fmt.Errorf("postgres: list latest: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("postgres: scan latest row: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: list latest: %w", err)
	}
	return nil
}

// MaxSeq returns entry_changes' current high-water mark, 0 if empty.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM entry_changes`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("postgres: max seq: %w", err)
	}
	return seq, nil
}

const nextChangesQuery = `
SELECT c.seq, c.id, c.rev, c.change_type, c.changed_at,
       e.type, e.namespace, e.name, e.description, e.version, e.attrs, e.manifest, e.meta, e.created_at, e.updated_at
FROM entry_changes c
LEFT JOIN entry_history e ON e.id = c.id AND e.rev = c.rev
WHERE c.seq > $1
ORDER BY c.seq ASC
LIMIT $2
`

// NextChanges fetches up to batchSize change rows after lastSeq, each
// left-joined to the entry that produced it.
func (s *Store) NextChanges(ctx context.Context, lastSeq int64, batchSize int) ([]store.ChangeRow, error) {
	rows, err := s.pool.Query(ctx, nextChangesQuery, lastSeq, batchSize)
	if err != nil {
		return nil, fmt.Errorf("postgres: next changes: %w", err)
	}
	defer rows.Close()

	var out []store.ChangeRow
	for rows.Next() {
		var (
			cr                                       store.ChangeRow
			entryType, namespace, name, description  *string
			version                                  *string
			attrsRaw, manifestRaw, metaRaw           []byte
			createdAt, updatedAt                     *string
		)
		if err := rows.Scan(
			&cr.Seq, &cr.ID, &cr.Rev, &cr.ChangeType, &cr.ChangedAt,
			&entryType, &namespace, &name, &description, &version, &attrsRaw, &manifestRaw, &metaRaw, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan change row: %w", err)
		}

		if entryType != nil {
			e := &model.Entry{
				ID:          cr.ID,
				Rev:         cr.Rev,
				Type:        *entryType,
				Namespace:   deref(namespace),
				Name:        deref(name),
				Description: deref(description),
				Version:     deref(version),
				CreatedAt:   deref(createdAt),
				UpdatedAt:   deref(updatedAt),
			}
			if len(attrsRaw) > 0 {
				if err := json.Unmarshal(attrsRaw, &e.Attrs); err != nil {
					return nil, fmt.Errorf("postgres: decode attrs: %w", err)
				}
			}
			if len(manifestRaw) > 0 {
				if err := json.Unmarshal(manifestRaw, &e.Manifest); err != nil {
					return nil, fmt.Errorf("postgres: decode manifest: %w", err)
				}
			}
			if len(metaRaw) > 0 {
				if err := json.Unmarshal(metaRaw, &e.Meta); err != nil {
					return nil, fmt.Errorf("postgres: decode meta: %w", err)
				}
			}
			cr.Entry = e
		}
		out = append(out, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: next changes: %w", err)
	}
	return out, nil
}

func scanEntry(rows pgx.Rows) (*model.Entry, error) {
	e := &model.Entry{}
	var version *string
	var attrsRaw, manifestRaw, metaRaw []byte
	if err := rows.Scan(
		&e.ID, &e.Rev, &e.Type, &e.Namespace, &e.Name, &e.Description, &version,
		&attrsRaw, &manifestRaw, &metaRaw, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Version = deref(version)
	if len(attrsRaw) > 0 {
		if err := json.Unmarshal(attrsRaw, &e.Attrs); err != nil {
			return nil, fmt.Errorf("decode attrs: %w", err)
		}
	}
	if len(manifestRaw) > 0 {
		if err := json.Unmarshal(manifestRaw, &e.Manifest); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
	}
	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &e.Meta); err != nil {
			return nil, fmt.Errorf("decode meta: %w", err)
		}
	}
	return e, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
