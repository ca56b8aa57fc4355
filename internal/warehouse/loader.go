// Package warehouse loads the fact and summary tables into PostgreSQL.
//
// A load is a full refresh: both tables are created if missing, then
// truncated and refilled with COPY inside one transaction, so readers see
// either the previous run or the new one.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/maintetl/internal/config"
	"github.com/JonMunkholm/maintetl/internal/core"
	"github.com/JonMunkholm/maintetl/internal/logging"
)

// DB is the subset of *pgxpool.Pool the loader needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Loader writes pipeline output to PostgreSQL.
type Loader struct {
	db DB
}

// NewLoader wraps an open database handle.
func NewLoader(db DB) *Loader {
	return &Loader{db: db}
}

// Connect opens and pings a pool sized from cfg.
func Connect(ctx context.Context, cfg config.WarehouseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse warehouse URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to warehouse: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to warehouse", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to warehouse")
	}
	return pool, nil
}

// Load replaces the contents of both tables. Every failure is an
// *core.ExportError wrapping core.ErrWarehouseLoad.
func (l *Loader) Load(ctx context.Context, facts []core.FactRow, summary []core.SummaryRow) error {
	start := time.Now()
	logger := logging.FromContext(ctx)

	for _, ddl := range []struct{ table, sql string }{
		{FactTable, createFactTable},
		{SummaryTable, createSummaryTable},
	} {
		if _, err := l.db.Exec(ctx, ddl.sql); err != nil {
			return loadError(ddl.table, fmt.Errorf("create table: %w", err))
		}
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return loadError(FactTable, fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(ctx) // No-op once committed

	if _, err := tx.Exec(ctx, "TRUNCATE "+FactTable+", "+SummaryTable); err != nil {
		return loadError(FactTable, fmt.Errorf("truncate: %w", err))
	}

	factRows, err := copyRows(ctx, tx, FactTable, factColumns, facts, factValues)
	if err != nil {
		return loadError(FactTable, err)
	}
	summaryRows, err := copyRows(ctx, tx, SummaryTable, summaryColumns, summary, summaryValues)
	if err != nil {
		return loadError(SummaryTable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return loadError(FactTable, fmt.Errorf("commit: %w", err))
	}

	logger.Info("warehouse loaded",
		"fact_rows", factRows,
		"summary_rows", summaryRows,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func copyRows[T any](ctx context.Context, tx pgx.Tx, table string, columns []string, rows []T, values func(T) ([]any, error)) (int64, error) {
	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		v, err := values(rows[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		return v, nil
	})

	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, src)
	if err != nil {
		return 0, fmt.Errorf("copy: %w", err)
	}
	if n != int64(len(rows)) {
		return n, fmt.Errorf("copy: wrote %d of %d rows", n, len(rows))
	}
	return n, nil
}

func loadError(table string, err error) error {
	return &core.ExportError{
		Table:  table,
		Format: "postgres",
		Err:    fmt.Errorf("%w: %w", core.ErrWarehouseLoad, err),
	}
}
