// Package ingest upserts every exported cycle into the options_snapshots
// table and guards the crawler with a Postgres advisory lock so only one
// instance runs against a database.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dgnsrekt/odax_crawler/internal/assemble"
)

// DefaultLockKey is the advisory lock shared by every crawler of a database.
const DefaultLockKey int64 = 1234567890

// ErrLocked is returned when another crawler holds the advisory lock.
var ErrLocked = errors.New("another crawler holds the advisory lock")

const schema = `
CREATE TABLE IF NOT EXISTS options_snapshots (
	quote_time       TIMESTAMPTZ NOT NULL,
	crawl_time       TIMESTAMPTZ NOT NULL,
	expiry_date      DATE NOT NULL,
	monthly_weekly   TEXT,
	option_type      TEXT NOT NULL,
	strike           NUMERIC NOT NULL,
	last_trade       TIMESTAMPTZ,
	open_price       NUMERIC,
	high_price       NUMERIC,
	low_price        NUMERIC,
	daily_settlement NUMERIC,
	open_interest    BIGINT,
	volume           BIGINT,
	last_price       NUMERIC,
	bid              NUMERIC,
	ask              NUMERIC,
	raw              JSONB,
	PRIMARY KEY (quote_time, expiry_date, strike, option_type)
);
`

const upsertSQL = `
INSERT INTO options_snapshots
	(quote_time, crawl_time, expiry_date, monthly_weekly, option_type, strike,
	 last_trade, open_price, high_price, low_price, daily_settlement, open_interest, volume,
	 last_price, bid, ask, raw)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (quote_time, expiry_date, strike, option_type)
DO UPDATE SET
	last_trade = EXCLUDED.last_trade,
	open_price = EXCLUDED.open_price,
	high_price = EXCLUDED.high_price,
	low_price = EXCLUDED.low_price,
	daily_settlement = EXCLUDED.daily_settlement,
	open_interest = EXCLUDED.open_interest,
	volume = EXCLUDED.volume,
	last_price = EXCLUDED.last_price,
	bid = EXCLUDED.bid,
	ask = EXCLUDED.ask,
	raw = EXCLUDED.raw,
	crawl_time = EXCLUDED.crawl_time
`

// Execer runs a statement. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DB is the part of a pool the ingester writes through.
type DB interface {
	Execer
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// lockConn is a dedicated connection; *pgxpool.Conn satisfies it.
type lockConn interface {
	Execer
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Release()
}

// Connect creates a connection pool and verifies it.
func Connect(ctx context.Context, url string, maxConns int) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the snapshot table when missing.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create options_snapshots: %w", err)
	}
	return nil
}

// Lock holds a session advisory lock on a dedicated connection.
type Lock struct {
	conn lockConn
	key  int64
}

// TryLock takes the advisory lock without waiting. It returns ErrLocked when
// another session holds it.
func TryLock(ctx context.Context, db *pgxpool.Pool, key int64) (*Lock, error) {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}
	return tryLock(ctx, conn, key)
}

func tryLock(ctx context.Context, conn lockConn, key int64) (*Lock, error) {
	var got bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&got); err != nil {
		conn.Release()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !got {
		conn.Release()
		return nil, ErrLocked
	}
	return &Lock{conn: conn, key: key}, nil
}

// Release unlocks and returns the connection to the pool.
func (l *Lock) Release(ctx context.Context) error {
	defer l.conn.Release()
	if _, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.key); err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return nil
}

// Ingester writes exported cycles. It satisfies export.Sink.
type Ingester struct {
	db        DB
	loc       *time.Location
	batchSize int
	now       func() time.Time
}

func New(db DB, loc *time.Location, batchSize int) *Ingester {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Ingester{db: db, loc: loc, batchSize: batchSize, now: time.Now}
}

// Export upserts every (expiration, side, strike) of doc.
func (in *Ingester) Export(ctx context.Context, doc assemble.Document) error {
	rows, skipped := Rows(doc.Tables, in.now(), in.loc)
	if skipped > 0 {
		slog.Warn("ingest skipped unparsable rows", "cycle_id", doc.CycleID, "skipped", skipped)
	}
	if len(rows) == 0 {
		slog.Info("ingest found no rows", "cycle_id", doc.CycleID)
		return nil
	}

	start := time.Now()
	for i := 0; i < len(rows); i += in.batchSize {
		end := min(i+in.batchSize, len(rows))
		if err := in.batchUpsert(ctx, rows[i:end]); err != nil {
			return fmt.Errorf("ingest rows %d-%d: %w", i, end, err)
		}
	}
	slog.Info("ingested cycle", "cycle_id", doc.CycleID, "rows", len(rows), "duration", time.Since(start))
	return nil
}

func (in *Ingester) batchUpsert(ctx context.Context, rows []Row) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsertSQL,
			r.QuoteTime, r.CrawlTime, r.ExpiryDate, r.MonthlyWeekly, r.OptionType, r.Strike,
			r.LastTrade, r.Open, r.High, r.Low, r.Settle, r.OpenInterest, r.Volume,
			r.LastPrice, r.Bid, r.Ask, r.Raw,
		)
	}

	results := in.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
