// Package postgres stores documents as JSONB rows keyed by (collection, id)
// with a version column. Transactions run at REPEATABLE READ and commit their
// buffered writes with a compare-and-swap on the version observed by each read.
// Committed changes are announced on Redis pub/sub to serve watches.
package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
)

// Schema creates the single table backing every collection.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT        NOT NULL,
    id         TEXT        NOT NULL,
    data       JSONB       NOT NULL,
    version    BIGINT      NOT NULL DEFAULT 1,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_created_at_idx
    ON documents (collection, ((data->>'createdAt')));
`

const (
	selectSQL = `SELECT data, version FROM documents WHERE collection = $1 AND id = $2`
	insertSQL = `INSERT INTO documents (collection, id, data, version) VALUES ($1, $2, $3, 1)
        ON CONFLICT (collection, id) DO NOTHING`
	upsertSQL = `INSERT INTO documents (collection, id, data, version) VALUES ($1, $2, $3, 1)
        ON CONFLICT (collection, id) DO UPDATE
        SET data = documents.data || EXCLUDED.data, version = documents.version + 1, updated_at = now()`
	casUpdateSQL = `UPDATE documents SET data = data || $3::jsonb, version = version + 1, updated_at = now()
        WHERE collection = $1 AND id = $2 AND version = $4`
	updateSQL = `UPDATE documents SET data = data || $3::jsonb, version = version + 1, updated_at = now()
        WHERE collection = $1 AND id = $2`
)

// Postgres SQLSTATEs that mean "another transaction got there first".
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a docstore.Store over PostgreSQL.
type Store struct {
	db     *sqlx.DB
	feed   *redis.Client
	logger *slog.Logger
}

var (
	_ docstore.Store  = (*Store)(nil)
	_ docstore.Pinger = (*Store)(nil)
)

// New builds a store. feed may be nil, in which case Watch is unavailable.
func New(db *sqlx.DB, feed *redis.Client, logger *slog.Logger) *Store {
	return &Store{db: db, feed: feed, logger: logger}
}

// Migrate creates the documents table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate documents: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// NewRef allocates a random id.
func (s *Store) NewRef(collection string) docstore.Ref {
	return docstore.Doc(collection, uuid.NewString())
}

// Get reads the committed state of ref.
func (s *Store) Get(ctx context.Context, ref docstore.Ref) (docstore.Snapshot, error) {
	return get(ctx, s.db, ref)
}

type queryer interface {
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}

func get(ctx context.Context, q queryer, ref docstore.Ref) (docstore.Snapshot, error) {
	var (
		raw     []byte
		version int64
	)
	err := q.QueryRowxContext(ctx, selectSQL, ref.Collection, ref.ID).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Snapshot{Ref: ref}, nil
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get %s: %w", ref.Path(), translate(err))
	}
	fields, err := decode(raw)
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("decode %s: %w", ref.Path(), err)
	}
	return docstore.Snapshot{Ref: ref, Exists: true, Fields: fields, Version: version}, nil
}

type row struct {
	ID      string `db:"id"`
	Data    []byte `db:"data"`
	Version int64  `db:"version"`
}

// Query translates q into a single SELECT over the JSONB payload.
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	var (
		b    strings.Builder
		args = []any{q.Collection}
	)
	b.WriteString(`SELECT id, data, version FROM documents WHERE collection = $1`)
	for _, f := range q.Where {
		if !fieldName.MatchString(f.Field) {
			return nil, fmt.Errorf("query %s: invalid field %q", q.Collection, f.Field)
		}
		args = append(args, f.Equals)
		fmt.Fprintf(&b, ` AND data->>'%s' = $%d`, f.Field, len(args))
	}
	if q.OrderBy != "" {
		if !fieldName.MatchString(q.OrderBy) {
			return nil, fmt.Errorf("query %s: invalid order field %q", q.Collection, q.OrderBy)
		}
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&b, ` ORDER BY (data->>'%s')::timestamptz %s, id`, q.OrderBy, dir)
	} else {
		b.WriteString(` ORDER BY id`)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, b.String(), args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, translate(err))
	}
	out := make([]docstore.Snapshot, 0, len(rows))
	for _, r := range rows {
		fields, err := decode(r.Data)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", q.Collection, r.ID, err)
		}
		out = append(out, docstore.Snapshot{
			Ref:     docstore.Doc(q.Collection, r.ID),
			Exists:  true,
			Fields:  fields,
			Version: r.Version,
		})
	}
	return out, nil
}

// RunTransaction runs fn once inside a REPEATABLE READ transaction.
func (s *Store) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("begin tx: %w", translate(err))
	}
	defer sqlTx.Rollback() // nolint:errcheck

	tx := &transaction{sqlTx: sqlTx, reads: make(map[docstore.Ref]int64)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	touched := make([]docstore.Ref, 0, len(tx.writes))
	for _, w := range tx.writes {
		if err := tx.apply(ctx, w); err != nil {
			return err
		}
		touched = append(touched, w.ref)
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", translate(err))
	}

	s.publish(ctx, touched)
	return nil
}

type writeKind int

const (
	writeCreate writeKind = iota + 1
	writeSet
	writeUpdate
)

type write struct {
	kind   writeKind
	ref    docstore.Ref
	fields docstore.Fields
}

type transaction struct {
	sqlTx  *sqlx.Tx
	reads  map[docstore.Ref]int64
	writes []write
}

func (t *transaction) Get(ctx context.Context, ref docstore.Ref) (docstore.Snapshot, error) {
	if len(t.writes) > 0 {
		return docstore.Snapshot{}, docstore.ErrReadAfterWrite
	}
	snap, err := get(ctx, t.sqlTx, ref)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	if _, seen := t.reads[ref]; !seen {
		t.reads[ref] = snap.Version
	}
	return snap, nil
}

func (t *transaction) Create(ref docstore.Ref, fields docstore.Fields) error {
	t.writes = append(t.writes, write{kind: writeCreate, ref: ref, fields: fields.Clone()})
	return nil
}

func (t *transaction) Set(ref docstore.Ref, fields docstore.Fields) error {
	t.writes = append(t.writes, write{kind: writeSet, ref: ref, fields: fields.Clone()})
	return nil
}

func (t *transaction) Update(ref docstore.Ref, fields docstore.Fields) error {
	t.writes = append(t.writes, write{kind: writeUpdate, ref: ref, fields: fields.Clone()})
	return nil
}

// apply executes one buffered write. Documents read earlier in the
// transaction are written with a version check so a concurrent commit
// surfaces as docstore.ErrConflict.
func (t *transaction) apply(ctx context.Context, w write) error {
	data, err := json.Marshal(w.fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", w.ref.Path(), err)
	}
	payload := string(data)
	seen, wasRead := t.reads[w.ref]

	switch w.kind {
	case writeCreate:
		n, err := t.exec(ctx, insertSQL, w.ref.Collection, w.ref.ID, payload)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("create %s: %w", w.ref.Path(), docstore.ErrAlreadyExists)
		}
		t.reads[w.ref] = 1

	case writeSet:
		switch {
		case !wasRead:
			_, err := t.exec(ctx, upsertSQL, w.ref.Collection, w.ref.ID, payload)
			return err
		case seen == 0:
			n, err := t.exec(ctx, insertSQL, w.ref.Collection, w.ref.ID, payload)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("set %s: %w", w.ref.Path(), docstore.ErrConflict)
			}
			t.reads[w.ref] = 1
		default:
			if err := t.compareAndSwap(ctx, w.ref, payload, seen); err != nil {
				return err
			}
		}

	case writeUpdate:
		switch {
		case !wasRead:
			n, err := t.exec(ctx, updateSQL, w.ref.Collection, w.ref.ID, payload)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("update %s: %w", w.ref.Path(), docstore.ErrNotFound)
			}
		case seen == 0:
			return fmt.Errorf("update %s: %w", w.ref.Path(), docstore.ErrNotFound)
		default:
			if err := t.compareAndSwap(ctx, w.ref, payload, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *transaction) compareAndSwap(ctx context.Context, ref docstore.Ref, payload string, version int64) error {
	n, err := t.exec(ctx, casUpdateSQL, ref.Collection, ref.ID, payload, version)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("write %s: %w", ref.Path(), docstore.ErrConflict)
	}
	t.reads[ref] = version + 1
	return nil
}

func (t *transaction) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.sqlTx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// translate maps serialization failures to docstore.ErrConflict.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return fmt.Errorf("%w: %s", docstore.ErrConflict, pgErr.Message)
		}
	}
	return err
}

func decode(raw []byte) (docstore.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields docstore.Fields
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}
