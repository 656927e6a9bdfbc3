package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// schema creates the stream tables as TimescaleDB hypertables. Every
// statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS option_quotes (
		quote_ts      TIMESTAMPTZ NOT NULL,
		received_at   TIMESTAMPTZ NOT NULL,
		ticker        TEXT        NOT NULL,
		root          TEXT        NOT NULL,
		expiration    DATE,
		strike        BIGINT      NOT NULL DEFAULT 0,
		"right"       TEXT        NOT NULL DEFAULT '',
		bid           BIGINT      NOT NULL,
		bid_size      BIGINT      NOT NULL,
		bid_exchange  INTEGER     NOT NULL,
		bid_condition INTEGER     NOT NULL,
		ask           BIGINT      NOT NULL,
		ask_size      BIGINT      NOT NULL,
		ask_exchange  INTEGER     NOT NULL,
		ask_condition INTEGER     NOT NULL,
		UNIQUE (ticker, quote_ts)
	)`,
	`SELECT create_hypertable('option_quotes', 'quote_ts', if_not_exists => TRUE)`,
	`CREATE TABLE IF NOT EXISTS option_trades (
		trade_ts    TIMESTAMPTZ NOT NULL,
		received_at TIMESTAMPTZ NOT NULL,
		ticker      TEXT        NOT NULL,
		root        TEXT        NOT NULL,
		expiration  DATE,
		strike      BIGINT      NOT NULL DEFAULT 0,
		"right"     TEXT        NOT NULL DEFAULT '',
		sequence    BIGINT      NOT NULL,
		price       BIGINT      NOT NULL,
		size        BIGINT      NOT NULL,
		exchange    INTEGER     NOT NULL,
		condition   INTEGER     NOT NULL,
		UNIQUE (ticker, trade_ts, sequence)
	)`,
	`SELECT create_hypertable('option_trades', 'trade_ts', if_not_exists => TRUE)`,
	`CREATE INDEX IF NOT EXISTS option_quotes_root_ts ON option_quotes (root, quote_ts DESC)`,
	`CREATE INDEX IF NOT EXISTS option_trades_root_ts ON option_trades (root, trade_ts DESC)`,
}

// EnsureSchema creates the stream tables if they do not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
