package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/clickhouse"
	"github.com/curvelabs/bondcurve/utils/pkg/retry"
)

const DefaultTable = "curve_events"

// ClickHouseConfig holds the configuration for a ClickHouse-backed journal.
type ClickHouseConfig struct {
	Logger *slog.Logger
	Client clickhouse.Client
	Table  string
	Retry  retry.Config
}

func (c *ClickHouseConfig) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.DefaultConfig()
	}
	return nil
}

// ClickHouse appends events to a MergeTree table, one row per event.
// Amounts are stored as decimal strings since they can exceed 64 bits.
type ClickHouse struct {
	cfg ClickHouseConfig
}

func NewClickHouse(cfg ClickHouseConfig) (*ClickHouse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &ClickHouse{cfg: cfg}, nil
}

// EnsureSchema creates the events table if it does not exist yet.
func (c *ClickHouse) EnsureSchema(ctx context.Context) error {
	conn, err := c.cfg.Client.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID,
			at DateTime64(3, 'UTC'),
			curve_id UUID,
			kind LowCardinality(String),
			actor String,
			recipient String,
			amount String,
			price String,
			reserve String,
			beneficiary_amount String,
			dividend_amount String
		) ENGINE = MergeTree
		ORDER BY (curve_id, at)
	`, c.cfg.Table)

	if err := conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}
	c.cfg.Logger.Debug("events table ready", "table", c.cfg.Table)
	return nil
}

func (c *ClickHouse) Record(ctx context.Context, ev Event) error {
	conn, err := c.cfg.Client.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	query := fmt.Sprintf(
		"INSERT INTO %s (id, at, curve_id, kind, actor, recipient, amount, price, reserve, beneficiary_amount, dividend_amount) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		c.cfg.Table,
	)

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	err = retry.Do(ctx, c.cfg.Retry, func() error {
		return conn.AsyncInsert(ctx, query, false,
			ev.ID,
			at.UTC(),
			ev.CurveID,
			string(ev.Kind),
			ev.Actor.String(),
			ev.Recipient.String(),
			dec(ev.Amount),
			dec(ev.Price),
			dec(ev.Reserve),
			dec(ev.BeneficiaryAmount),
			dec(ev.DividendAmount),
		)
	})
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func dec(a *uint256.Int) string {
	if a == nil {
		return ""
	}
	return a.Dec()
}
