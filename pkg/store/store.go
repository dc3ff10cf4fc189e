package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/curvelabs/bondcurve/pkg/account"
	"github.com/curvelabs/bondcurve/pkg/amount"
	"github.com/curvelabs/bondcurve/pkg/bonding"
	"github.com/curvelabs/bondcurve/pkg/rewards"
)

var ErrNotFound = errors.New("curve snapshot not found")

type Config struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Pool == nil {
		return errors.New("pool is required")
	}
	return nil
}

// Store reads and writes curve snapshots. Amounts are NUMERIC(78,0)
// columns, wide enough for any 256-bit value, moved as decimal strings.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Store{log: cfg.Logger, pool: cfg.Pool}, nil
}

// Save upserts the snapshot and replaces the curve's stake rows, all in one
// transaction.
func (s *Store) Save(ctx context.Context, snap bonding.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save %s: begin: %w", snap.ID, err)
	}
	defer tx.Rollback(ctx)

	var capStr *string
	if snap.MilestoneCap != nil {
		v := snap.MilestoneCap.Dec()
		capStr = &v
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO curves (
			id, owner, beneficiary, reserve_percentage, split_on_pay,
			pre_mint, milestone_cap, reserve_balance, curve_bought, curve_sold,
			paused, total_eligible, per_unit, remainder, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			beneficiary = EXCLUDED.beneficiary,
			reserve_percentage = EXCLUDED.reserve_percentage,
			split_on_pay = EXCLUDED.split_on_pay,
			pre_mint = EXCLUDED.pre_mint,
			milestone_cap = EXCLUDED.milestone_cap,
			reserve_balance = EXCLUDED.reserve_balance,
			curve_bought = EXCLUDED.curve_bought,
			curve_sold = EXCLUDED.curve_sold,
			paused = EXCLUDED.paused,
			total_eligible = EXCLUDED.total_eligible,
			per_unit = EXCLUDED.per_unit,
			remainder = EXCLUDED.remainder,
			updated_at = now()
	`,
		snap.ID.String(),
		snap.Owner.String(),
		snap.Beneficiary.String(),
		snap.ReservePercentage,
		snap.SplitOnPay,
		amount.String(snap.PreMint),
		capStr,
		amount.String(snap.ReserveBalance),
		amount.String(snap.CurveBought),
		amount.String(snap.CurveSold),
		snap.Paused,
		amount.String(snap.Rewards.TotalEligible),
		amount.String(snap.Rewards.PerUnit),
		amount.String(snap.Rewards.Remainder),
	)
	if err != nil {
		return fmt.Errorf("save %s: upsert curve: %w", snap.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM stakes WHERE curve_id = $1`, snap.ID.String()); err != nil {
		return fmt.Errorf("save %s: clear stakes: %w", snap.ID, err)
	}
	for _, p := range snap.Rewards.Participants {
		_, err := tx.Exec(ctx, `
			INSERT INTO stakes (curve_id, participant, stake, credit, pending)
			VALUES ($1, $2, $3, $4, $5)
		`, snap.ID.String(), p.Account.String(), amount.String(p.Stake), amount.String(p.Credit), amount.String(p.Pending))
		if err != nil {
			return fmt.Errorf("save %s: insert stake for %s: %w", snap.ID, p.Account, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("save %s: commit: %w", snap.ID, err)
	}
	s.log.Debug("saved curve snapshot", "curve", snap.ID, "participants", len(snap.Rewards.Participants))
	return nil
}

// Load reads back the full snapshot for one curve.
func (s *Store) Load(ctx context.Context, id uuid.UUID) (bonding.Snapshot, error) {
	var (
		snap                            bonding.Snapshot
		owner, beneficiary              string
		preMint, reserveBal             string
		bought, sold                    string
		capStr                          *string
		totalEligible, perUnit, remaind string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT owner, beneficiary, reserve_percentage, split_on_pay,
		       pre_mint::text, milestone_cap::text, reserve_balance::text,
		       curve_bought::text, curve_sold::text, paused,
		       total_eligible::text, per_unit::text, remainder::text
		FROM curves WHERE id = $1
	`, id.String()).Scan(
		&owner, &beneficiary, &snap.ReservePercentage, &snap.SplitOnPay,
		&preMint, &capStr, &reserveBal,
		&bought, &sold, &snap.Paused,
		&totalEligible, &perUnit, &remaind,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return bonding.Snapshot{}, fmt.Errorf("load %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return bonding.Snapshot{}, fmt.Errorf("load %s: %w", id, err)
	}

	snap.ID = id
	snap.Owner = account.Account(owner)
	snap.Beneficiary = account.Account(beneficiary)
	if snap.PreMint, err = amount.Parse(preMint); err != nil {
		return bonding.Snapshot{}, fmt.Errorf("load %s: pre_mint: %w", id, err)
	}
	if capStr != nil {
		if snap.MilestoneCap, err = amount.Parse(*capStr); err != nil {
			return bonding.Snapshot{}, fmt.Errorf("load %s: milestone_cap: %w", id, err)
		}
	}
	if snap.ReserveBalance, err = amount.Parse(reserveBal); err != nil {
		return bonding.Snapshot{}, fmt.Errorf("load %s: reserve_balance: %w", id, err)
	}
	if snap.CurveBought, err = amount.Parse(bought); err != nil {
		return bonding.Snapshot{}, fmt.Errorf("load %s: curve_bought: %w", id, err)
	}
	if snap.CurveSold, err = amount.Parse(sold); err != nil {
		return bonding.Snapshot{}, fmt.Errorf("load %s: curve_sold: %w", id, err)
	}

	rs := &rewards.Snapshot{}
	if rs.TotalEligible, err = amount.Parse(totalEligible); err != nil {
		return bonding.Snapshot{}, fmt.Errorf("load %s: total_eligible: %w", id, err)
	}
	if rs.PerUnit, err = amount.Parse(perUnit); err != nil {
		return bonding.Snapshot{}, fmt.Errorf("load %s: per_unit: %w", id, err)
	}
	if rs.Remainder, err = amount.Parse(remaind); err != nil {
		return bonding.Snapshot{}, fmt.Errorf("load %s: remainder: %w", id, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT participant, stake::text, credit::text, pending::text
		FROM stakes WHERE curve_id = $1 ORDER BY participant
	`, id.String())
	if err != nil {
		return bonding.Snapshot{}, fmt.Errorf("load %s: stakes: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			participant           string
			stake, credit, pendng string
		)
		if err := rows.Scan(&participant, &stake, &credit, &pendng); err != nil {
			return bonding.Snapshot{}, fmt.Errorf("load %s: scan stake: %w", id, err)
		}
		ps := rewards.ParticipantSnapshot{Account: account.Account(participant)}
		if ps.Stake, err = amount.Parse(stake); err != nil {
			return bonding.Snapshot{}, fmt.Errorf("load %s: stake: %w", id, err)
		}
		if ps.Credit, err = amount.Parse(credit); err != nil {
			return bonding.Snapshot{}, fmt.Errorf("load %s: credit: %w", id, err)
		}
		if ps.Pending, err = amount.Parse(pendng); err != nil {
			return bonding.Snapshot{}, fmt.Errorf("load %s: pending: %w", id, err)
		}
		rs.Participants = append(rs.Participants, ps)
	}
	if err := rows.Err(); err != nil {
		return bonding.Snapshot{}, fmt.Errorf("load %s: stakes: %w", id, err)
	}

	snap.Rewards = rs
	return snap, nil
}

// List returns the IDs of all persisted curves.
func (s *Store) List(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text FROM curves ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list curves: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("list curves: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("list curves: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a curve snapshot and its stake rows.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM curves WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	return nil
}
