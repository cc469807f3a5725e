package store

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberfi/stake-engine/internal/model"
	"github.com/emberfi/stake-engine/internal/params"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All amounts are stored as NUMERIC for exact integer precision; multi-step
// mutations run inside one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the ledger tables and seeds the singleton pool-state
// row when missing. Idempotent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS positions (
			id                     BIGSERIAL PRIMARY KEY,
			owner_addr             TEXT NOT NULL,
			principal_amount       NUMERIC(78,0) NOT NULL,
			principal_claim_amount NUMERIC(78,0) NOT NULL,
			deadline               TIMESTAMPTZ NOT NULL,
			closed                 BOOLEAN NOT NULL DEFAULT FALSE,
			created_at             TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS positions_owner_idx ON positions (owner_addr);

		CREATE TABLE IF NOT EXISTS pool_state (
			id               SMALLINT PRIMARY KEY CHECK (id = 1),
			total_staked     NUMERIC(78,0) NOT NULL,
			total_yield_pool NUMERIC(78,0) NOT NULL
		);
		INSERT INTO pool_state (id, total_staked, total_yield_pool)
		VALUES (1, 0, 0) ON CONFLICT (id) DO NOTHING;

		CREATE TABLE IF NOT EXISTS ledger_params (
			id                     SMALLINT PRIMARY KEY CHECK (id = 1),
			min_lockup_days        BIGINT NOT NULL,
			max_lockup_days        BIGINT NOT NULL,
			force_unstake_fee_rate BIGINT NOT NULL,
			burned_yt_fee_rate     BIGINT NOT NULL,
			min_stake              NUMERIC(78,0) NOT NULL
		);

		CREATE TABLE IF NOT EXISTS ledger_entries (
			id          UUID PRIMARY KEY,
			position_id BIGINT NOT NULL,
			op          TEXT NOT NULL,
			user_addr   TEXT NOT NULL,
			amount      NUMERIC(78,0) NOT NULL,
			claim_delta NUMERIC(78,0) NOT NULL,
			yield_delta NUMERIC(78,0) NOT NULL,
			fee         NUMERIC(78,0) NOT NULL,
			timestamp   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS ledger_entries_position_idx ON ledger_entries (position_id);
		CREATE INDEX IF NOT EXISTS ledger_entries_user_idx ON ledger_entries (user_addr);
	`)
	return err
}

func (s *PostgresStore) ApplyStake(ctx context.Context, p *model.Position, e *model.LedgerEntry) (uint64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var id uint64
	err = tx.QueryRow(ctx,
		`INSERT INTO positions (owner_addr, principal_amount, principal_claim_amount, deadline, closed, created_at)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4, FALSE, $5)
		 RETURNING id`,
		p.Owner, p.PrincipalAmount.String(), p.PrincipalClaimAmount.String(),
		p.Deadline, p.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert position: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE pool_state SET total_staked = total_staked + $1::NUMERIC WHERE id = 1`,
		p.PrincipalAmount.String()); err != nil {
		return 0, fmt.Errorf("update staked total: %w", err)
	}

	if e != nil {
		entry := *e
		entry.PositionID = id
		if err := insertEntry(ctx, tx, &entry); err != nil {
			return 0, err
		}
	}
	return id, tx.Commit(ctx)
}

func (s *PostgresStore) ApplyUnstake(ctx context.Context, u UnstakeUpdate, e *model.LedgerEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE positions
		 SET principal_amount = principal_amount - $2::NUMERIC,
		     principal_claim_amount = principal_claim_amount - $3::NUMERIC,
		     deadline = $4,
		     closed = closed OR $5
		 WHERE id = $1 AND principal_amount >= $2::NUMERIC`,
		u.PositionID, u.PrincipalDelta.String(), u.ClaimDelta.String(),
		u.SettledDeadline, u.Close)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %d: %w", u.PositionID, ErrPositionNotFound)
	}

	tag, err = tx.Exec(ctx,
		`UPDATE pool_state SET total_staked = total_staked - $1::NUMERIC
		 WHERE id = 1 AND total_staked >= $1::NUMERIC`,
		u.PrincipalDelta.String())
	if err != nil {
		return fmt.Errorf("update staked total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStakedUnderflow
	}

	if e != nil {
		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ExtendPosition(ctx context.Context, id uint64, newDeadline time.Time, e *model.LedgerEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE positions SET deadline = $2 WHERE id = $1`, id, newDeadline)
	if err != nil {
		return fmt.Errorf("extend position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %d: %w", id, ErrPositionNotFound)
	}
	if e != nil {
		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetPosition(ctx context.Context, id uint64) (*model.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_addr, principal_amount::TEXT, principal_claim_amount::TEXT,
		        deadline, closed, created_at
		 FROM positions WHERE id = $1`, id)
	pos, err := scanPosition(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("position %d: %w", id, ErrPositionNotFound)
		}
		return nil, fmt.Errorf("get position %d: %w", id, err)
	}
	return pos, nil
}

func (s *PostgresStore) ListPositionsByOwner(ctx context.Context, owner string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_addr, principal_amount::TEXT, principal_claim_amount::TEXT,
		        deadline, closed, created_at
		 FROM positions WHERE owner_addr = $1 ORDER BY id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPositions(rows)
}

func (s *PostgresStore) ListOpenPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_addr, principal_amount::TEXT, principal_claim_amount::TEXT,
		        deadline, closed, created_at
		 FROM positions WHERE NOT closed AND principal_amount > 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPositions(rows)
}

func (s *PostgresStore) GetPoolState(ctx context.Context) (*model.PoolState, error) {
	var stakedS, yieldS string
	err := s.pool.QueryRow(ctx,
		`SELECT total_staked::TEXT, total_yield_pool::TEXT FROM pool_state WHERE id = 1`).
		Scan(&stakedS, &yieldS)
	if err != nil {
		return nil, fmt.Errorf("get pool state: %w", err)
	}
	ps := model.NewPoolState()
	ps.TotalStaked = mustInt(stakedS)
	ps.TotalYieldPool = mustInt(yieldS)
	return ps, nil
}

func (s *PostgresStore) AddYield(ctx context.Context, amount math.Int, e *model.LedgerEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE pool_state SET total_yield_pool = total_yield_pool + $1::NUMERIC WHERE id = 1`,
		amount.String()); err != nil {
		return fmt.Errorf("add yield: %w", err)
	}
	if e != nil {
		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) SubtractYield(ctx context.Context, amount math.Int, e *model.LedgerEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE pool_state SET total_yield_pool = total_yield_pool - $1::NUMERIC
		 WHERE id = 1 AND total_yield_pool >= $1::NUMERIC`,
		amount.String())
	if err != nil {
		return fmt.Errorf("subtract yield: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrYieldPoolUnderflow
	}
	if e != nil {
		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetParams(ctx context.Context) (params.Params, error) {
	var p params.Params
	var minStakeS string
	err := s.pool.QueryRow(ctx,
		`SELECT min_lockup_days, max_lockup_days, force_unstake_fee_rate,
		        burned_yt_fee_rate, min_stake::TEXT
		 FROM ledger_params WHERE id = 1`).
		Scan(&p.MinLockupDays, &p.MaxLockupDays, &p.ForceUnstakeFeeRate,
			&p.BurnedYTFeeRate, &minStakeS)
	if err != nil {
		if err == pgx.ErrNoRows {
			return params.Default(), nil
		}
		return params.Params{}, fmt.Errorf("get params: %w", err)
	}
	p.MinStake = mustInt(minStakeS)
	return p, nil
}

func (s *PostgresStore) SaveParams(ctx context.Context, p params.Params) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ledger_params (id, min_lockup_days, max_lockup_days,
		                            force_unstake_fee_rate, burned_yt_fee_rate, min_stake)
		 VALUES (1, $1, $2, $3, $4, $5::NUMERIC)
		 ON CONFLICT (id) DO UPDATE SET
		   min_lockup_days = EXCLUDED.min_lockup_days,
		   max_lockup_days = EXCLUDED.max_lockup_days,
		   force_unstake_fee_rate = EXCLUDED.force_unstake_fee_rate,
		   burned_yt_fee_rate = EXCLUDED.burned_yt_fee_rate,
		   min_stake = EXCLUDED.min_stake`,
		p.MinLockupDays, p.MaxLockupDays, p.ForceUnstakeFeeRate,
		p.BurnedYTFeeRate, p.MinStake.String())
	return err
}

func (s *PostgresStore) LedgerByPosition(ctx context.Context, positionID uint64) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, position_id, op, user_addr,
		        amount::TEXT, claim_delta::TEXT, yield_delta::TEXT, fee::TEXT, timestamp
		 FROM ledger_entries WHERE position_id = $1 ORDER BY timestamp`, positionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) LedgerByUser(ctx context.Context, user string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, position_id, op, user_addr,
		        amount::TEXT, claim_delta::TEXT, yield_delta::TEXT, fee::TEXT, timestamp
		 FROM ledger_entries WHERE user_addr = $1 ORDER BY timestamp`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// --- scan helpers ---

func insertEntry(ctx context.Context, tx pgx.Tx, e *model.LedgerEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO ledger_entries (id, position_id, op, user_addr, amount, claim_delta, yield_delta, fee, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9)`,
		e.ID, e.PositionID, e.Op, e.User,
		e.Amount.String(), e.ClaimDelta.String(), e.YieldDelta.String(), e.Fee.String(),
		e.Timestamp)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func scanPosition(row pgx.Row) (*model.Position, error) {
	var p model.Position
	var principalS, claimS string
	if err := row.Scan(&p.ID, &p.Owner, &principalS, &claimS,
		&p.Deadline, &p.Closed, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.PrincipalAmount = mustInt(principalS)
	p.PrincipalClaimAmount = mustInt(claimS)
	return &p, nil
}

func scanPositions(rows pgx.Rows) ([]model.Position, error) {
	var out []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanEntries(rows pgx.Rows) ([]model.LedgerEntry, error) {
	var out []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var amountS, claimS, yieldS, feeS string
		if err := rows.Scan(&e.ID, &e.PositionID, &e.Op, &e.User,
			&amountS, &claimS, &yieldS, &feeS, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Amount = mustInt(amountS)
		e.ClaimDelta = mustInt(claimS)
		e.YieldDelta = mustInt(yieldS)
		e.Fee = mustInt(feeS)
		out = append(out, e)
	}
	return out, rows.Err()
}

// mustInt parses NUMERIC text from a column this package wrote. Unparseable
// text means the database was modified out-of-band; zero keeps reads usable.
func mustInt(s string) math.Int {
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.ZeroInt()
	}
	return v
}
