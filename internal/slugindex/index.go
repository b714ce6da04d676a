package slugindex

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"lauschr/internal/apperr"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

const (
	component = "slugindex"

	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	maxSuffix = 10000
)

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Entry pairs a feed with its slug.
type Entry struct {
	FeedID string
	Slug   string
}

// Index manages slug reservations backed by SQLite.
type Index struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the slug database at path.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, component, "open", "create index directory", err)
	}

	query := url.Values{}
	query.Add("_pragma", "journal_mode(WAL)")
	query.Add("_pragma", "busy_timeout(5000)")
	query.Add("_txlock", "immediate")
	dsn := "file:" + filepath.ToSlash(path) + "?" + query.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorageUnavailable, component, "open", "open sqlite db", err)
	}
	// Single connection: in-process writers queue in the pool.
	db.SetMaxOpenConns(1)

	idx := &Index{db: db, path: path, now: time.Now}
	if err := idx.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// Close closes the underlying database connection.
func (i *Index) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

// Path returns the database file location.
func (i *Index) Path() string {
	return i.path
}

func (i *Index) initSchema(ctx context.Context) error {
	var tableExists int
	err := i.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, component, "init schema", "check schema_version table", err)
	}

	if tableExists == 0 {
		return i.createSchema(ctx)
	}

	var version int
	if err := i.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, component, "init schema", "read schema version", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: slug index has version %d, expected %d (delete %s and run 'lauschr feed reindex')",
			ErrSchemaMismatch, version, schemaVersion, i.path)
	}
	return nil
}

func (i *Index) createSchema(ctx context.Context) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, component, "create schema", "begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, component, "create schema", "", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, component, "create schema", "record schema version", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.ErrStorageUnavailable, component, "create schema", "commit", err)
	}
	return nil
}

// Reserve claims the first free slug among base, base-1, base-2, ... for
// feedID and returns it. A slug already held by feedID counts as free, so
// re-reserving the same base is stable. Any other slug previously held by
// feedID is released in the same transaction.
func (i *Index) Reserve(ctx context.Context, base, feedID string) (string, error) {
	base = strings.TrimSpace(base)
	feedID = strings.TrimSpace(feedID)
	if base == "" || feedID == "" {
		return "", apperr.Validation(component, "reserve", "slug base and feed id are required")
	}

	var slug string
	err := i.withTx(ctx, func(tx *sql.Tx) error {
		chosen, err := probeFree(ctx, tx, base, feedID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM slugs WHERE feed_id = ? AND slug <> ?", feedID, chosen); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO slugs (slug, feed_id, reserved_at) VALUES (?, ?, ?) ON CONFLICT(slug) DO NOTHING",
			chosen, feedID, i.now().UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
		slug = chosen
		return nil
	})
	if err != nil {
		return "", wrapErr("reserve", base, err)
	}
	return slug, nil
}

func probeFree(ctx context.Context, tx *sql.Tx, base, feedID string) (string, error) {
	for n := 0; n < maxSuffix; n++ {
		candidate := base
		if n > 0 {
			candidate = base + "-" + strconv.Itoa(n)
		}
		var owner string
		err := tx.QueryRowContext(ctx, "SELECT feed_id FROM slugs WHERE slug = ?", candidate).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && owner == feedID) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", apperr.Validation(component, "reserve", fmt.Sprintf("no free slug for %q", base))
}

// Lookup returns the feed holding slug.
func (i *Index) Lookup(ctx context.Context, slug string) (string, bool, error) {
	var feedID string
	err := retryOnBusy(ensureContext(ctx), func() error {
		return i.db.QueryRowContext(ensureContext(ctx), "SELECT feed_id FROM slugs WHERE slug = ?", slug).Scan(&feedID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr("lookup", slug, err)
	}
	return feedID, true, nil
}

// Release frees the slug held by feedID. Releasing an unknown feed succeeds.
func (i *Index) Release(ctx context.Context, feedID string) error {
	err := i.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM slugs WHERE feed_id = ?", feedID)
		return err
	})
	if err != nil {
		return wrapErr("release", feedID, err)
	}
	return nil
}

// Entries returns every reservation ordered by slug.
func (i *Index) Entries(ctx context.Context) ([]Entry, error) {
	ctx = ensureContext(ctx)
	rows, err := i.db.QueryContext(ctx, "SELECT feed_id, slug FROM slugs ORDER BY slug")
	if err != nil {
		return nil, wrapErr("entries", "", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.FeedID, &entry.Slug); err != nil {
			return nil, wrapErr("entries", "", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("entries", "", err)
	}
	return entries, nil
}

// Rebuild replaces the whole index with entries in one transaction. Duplicate
// slugs in entries are rejected and leave the index unchanged.
func (i *Index) Rebuild(ctx context.Context, entries []Entry) error {
	err := i.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM slugs"); err != nil {
			return err
		}
		stamp := i.now().UTC().Format(time.RFC3339)
		for _, entry := range entries {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO slugs (slug, feed_id, reserved_at) VALUES (?, ?, ?)",
				entry.Slug, entry.FeedID, stamp,
			); err != nil {
				return fmt.Errorf("insert %s -> %s: %w", entry.Slug, entry.FeedID, err)
			}
		}
		return nil
	})
	if err != nil {
		return wrapErr("rebuild", "", err)
	}
	return nil
}

func (i *Index) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := i.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func wrapErr(operation, subject string, err error) error {
	if errors.Is(err, apperr.ErrValidation) {
		return err
	}
	return apperr.Wrap(apperr.ErrStorageUnavailable, component, operation, subject, err)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
