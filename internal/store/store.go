// Package store defines the persistence interface for the staking ledger.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and development).
//
// Multi-step mutations (ApplyStake, ApplyUnstake) must commit atomically:
// either the position change and the pool-total change both land, or
// neither does.
package store

import (
	"context"
	"errors"
	"time"

	"cosmossdk.io/math"

	"github.com/emberfi/stake-engine/internal/model"
	"github.com/emberfi/stake-engine/internal/params"
)

var (
	// ErrPositionNotFound is returned for an unknown position id.
	ErrPositionNotFound = errors.New("store: position not found")

	// ErrYieldPoolUnderflow is returned when a withdrawal would push the
	// yield pool negative. The accountant derives withdrawal amounts from
	// the same pool, so hitting this means state corruption, not bad input.
	ErrYieldPoolUnderflow = errors.New("store: yield pool underflow")

	// ErrStakedUnderflow is the staked-total analogue of ErrYieldPoolUnderflow.
	ErrStakedUnderflow = errors.New("store: staked total underflow")
)

// UnstakeUpdate describes the position and pool mutation of one settlement.
type UnstakeUpdate struct {
	PositionID uint64
	// Close flips the terminal flag (atomic model full exits).
	Close bool
	// SettledDeadline replaces the position deadline; early exits set it to
	// the settlement time so repeated partial exits are not penalized twice.
	SettledDeadline time.Time
	// PrincipalDelta is subtracted from the position principal and the
	// staked total.
	PrincipalDelta math.Int
	// ClaimDelta is subtracted from the position's outstanding principal
	// claim, keeping the redemption ratio intact.
	ClaimDelta math.Int
}

// Store is the persistence interface.
type Store interface {
	// --- Position ledger ---

	// ApplyStake inserts the position, adds its principal to the staked
	// total, and appends the journal entry in one atomic step. The assigned
	// position id is strictly increasing and never reused.
	ApplyStake(ctx context.Context, p *model.Position, e *model.LedgerEntry) (uint64, error)

	// ApplyUnstake applies a settlement to the position and the staked
	// total atomically.
	ApplyUnstake(ctx context.Context, u UnstakeUpdate, e *model.LedgerEntry) error

	// ExtendPosition replaces the position deadline.
	ExtendPosition(ctx context.Context, id uint64, newDeadline time.Time, e *model.LedgerEntry) error

	// GetPosition retrieves a position by id.
	GetPosition(ctx context.Context, id uint64) (*model.Position, error)

	// ListPositionsByOwner returns all positions recorded for an owner.
	ListPositionsByOwner(ctx context.Context, owner string) ([]model.Position, error)

	// ListOpenPositions returns every position that is still open.
	ListOpenPositions(ctx context.Context) ([]model.Position, error)

	// --- Pool accumulators ---

	// GetPoolState returns the shared accumulators.
	GetPoolState(ctx context.Context) (*model.PoolState, error)

	// AddYield increases the yield pool (accrual callback path).
	AddYield(ctx context.Context, amount math.Int, e *model.LedgerEntry) error

	// SubtractYield decreases the yield pool, failing on underflow.
	SubtractYield(ctx context.Context, amount math.Int, e *model.LedgerEntry) error

	// --- Parameters ---

	// GetParams returns the stored parameter set, or defaults when none
	// have been stored yet.
	GetParams(ctx context.Context) (params.Params, error)

	// SaveParams persists a validated parameter set.
	SaveParams(ctx context.Context, p params.Params) error

	// --- Immutable journal ---

	// LedgerByPosition returns all journal entries for one position.
	LedgerByPosition(ctx context.Context, positionID uint64) ([]model.LedgerEntry, error)

	// LedgerByUser returns all journal entries for one user.
	LedgerByUser(ctx context.Context, user string) ([]model.LedgerEntry, error)
}
