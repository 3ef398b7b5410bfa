package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/citecheck/internal/model"
)

const durableSchema = `
CREATE TABLE IF NOT EXISTS citations (
	citation_key       TEXT PRIMARY KEY,
	case_name          TEXT NOT NULL DEFAULT '',
	year               TEXT NOT NULL DEFAULT '',
	parallel_citations TEXT NOT NULL DEFAULT '[]',
	verification       TEXT NOT NULL DEFAULT '{}',
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_citations_updated_at ON citations(updated_at DESC);
`

// Fixed-width so updated_at sorts lexically
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

type citationRow struct {
	Key               string `db:"citation_key"`
	CaseName          string `db:"case_name"`
	Year              string `db:"year"`
	ParallelCitations string `db:"parallel_citations"`
	Verification      string `db:"verification"`
	UpdatedAt         string `db:"updated_at"`
}

type writeOp struct {
	apply func(ctx context.Context, db *sqlx.DB) error
	ctx   context.Context
	done  chan error
}

// DurableCache is the relational tier. Reads run concurrently; writes go
// through a single writer goroutine.
type DurableCache struct {
	db     *sqlx.DB
	writes chan writeOp

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDurableCache opens (creating if needed) the SQLite database at path
func NewDurableCache(path string) (*DurableCache, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(durableSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	c := &DurableCache{
		db:     db,
		writes: make(chan writeOp),
	}
	c.wg.Add(1)
	go c.writer()
	return c, nil
}

func (c *DurableCache) writer() {
	defer c.wg.Done()
	for op := range c.writes {
		op.done <- op.apply(op.ctx, c.db)
	}
}

// write queues fn on the writer goroutine and waits for its result
func (c *DurableCache) write(ctx context.Context, fn func(ctx context.Context, db *sqlx.DB) error) (err error) {
	defer func() {
		// Writing to the closed queue after Close
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: durable cache closed", ErrTierUnavailable)
		}
	}()

	op := writeOp{apply: fn, ctx: ctx, done: make(chan error, 1)}
	select {
	case c.writes <- op:
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-op.done
}

// Name returns the tier name
func (c *DurableCache) Name() string {
	return TierDurable
}

// Get reads a record row
func (c *DurableCache) Get(ctx context.Context, key string) (model.CacheRecord, error) {
	var row citationRow
	err := c.db.GetContext(ctx, &row,
		`SELECT citation_key, case_name, year, parallel_citations, verification, updated_at
		 FROM citations WHERE citation_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CacheRecord{}, ErrMiss
	}
	if err != nil {
		return model.CacheRecord{}, fmt.Errorf("select citation: %w", err)
	}
	return row.record()
}

// Set upserts a record row
func (c *DurableCache) Set(ctx context.Context, key string, record model.CacheRecord) error {
	parallels := record.ParallelCitations
	if parallels == nil {
		parallels = []string{}
	}
	parallelJSON, err := json.Marshal(parallels)
	if err != nil {
		return fmt.Errorf("marshal parallel citations: %w", err)
	}
	verificationJSON, err := json.Marshal(record.Verification)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	now := time.Now().UTC().Format(timestampLayout)

	return c.write(ctx, func(ctx context.Context, db *sqlx.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO citations (citation_key, case_name, year, parallel_citations, verification, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(citation_key) DO UPDATE SET
			   case_name = excluded.case_name,
			   year = excluded.year,
			   parallel_citations = excluded.parallel_citations,
			   verification = excluded.verification,
			   updated_at = excluded.updated_at`,
			key, record.CaseName, record.Year, string(parallelJSON), string(verificationJSON), now, now)
		if err != nil {
			return fmt.Errorf("upsert citation: %w", err)
		}
		return nil
	})
}

// Delete removes a record row
func (c *DurableCache) Delete(ctx context.Context, key string) error {
	return c.write(ctx, func(ctx context.Context, db *sqlx.DB) error {
		if _, err := db.ExecContext(ctx, `DELETE FROM citations WHERE citation_key = ?`, key); err != nil {
			return fmt.Errorf("delete citation: %w", err)
		}
		return nil
	})
}

// Clear removes all rows
func (c *DurableCache) Clear(ctx context.Context) error {
	return c.write(ctx, func(ctx context.Context, db *sqlx.DB) error {
		if _, err := db.ExecContext(ctx, `DELETE FROM citations`); err != nil {
			return fmt.Errorf("clear citations: %w", err)
		}
		return nil
	})
}

// Recent returns up to limit records, most recently updated first
func (c *DurableCache) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var rows []citationRow
	err := c.db.SelectContext(ctx, &rows,
		`SELECT citation_key, case_name, year, parallel_citations, verification, updated_at
		 FROM citations ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent citations: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		record, err := row.record()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: row.Key, Record: record})
	}
	return entries, nil
}

// Count returns the number of stored rows
func (c *DurableCache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM citations`); err != nil {
		return 0, fmt.Errorf("count citations: %w", err)
	}
	return n, nil
}

// Close stops the writer and closes the database
func (c *DurableCache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.writes)
		c.wg.Wait()
		err = c.db.Close()
	})
	return err
}

func (r citationRow) record() (model.CacheRecord, error) {
	record := model.CacheRecord{
		CaseName: r.CaseName,
		Year:     r.Year,
	}
	if err := json.Unmarshal([]byte(r.ParallelCitations), &record.ParallelCitations); err != nil {
		return model.CacheRecord{}, fmt.Errorf("decode parallel citations: %w", err)
	}
	if len(record.ParallelCitations) == 0 {
		record.ParallelCitations = nil
	}
	if err := json.Unmarshal([]byte(r.Verification), &record.Verification); err != nil {
		return model.CacheRecord{}, fmt.Errorf("decode verification: %w", err)
	}
	return record, nil
}
