// Package model defines the core domain types shared across the stake engine.
// All token amounts use cosmossdk.io/math integer arithmetic — never float64
// for money, and never decimals for on-ledger balances.
package model

import (
	"time"

	"cosmossdk.io/math"
)

// RatioDenominator is the basis-point denominator for every fee rate.
const RatioDenominator int64 = 10000

// SecondsPerDay is the lockup time unit. All deadlines are whole-second
// offsets of N days from the stake timestamp.
const SecondsPerDay int64 = 86400

// Ledger operation kinds recorded in the immutable journal.
const (
	OpStake         = "STAKE"
	OpUnstake       = "UNSTAKE"
	OpExtend        = "EXTEND"
	OpYieldAccrue   = "YIELD_ACCRUE"
	OpYieldWithdraw = "YIELD_WITHDRAW"
)

// Position is one stake record. IDs are assigned by the store, strictly
// increasing, and never reused. Under the atomic position model a position
// is closed exactly once; under the fractional model its principal and
// claim amounts shrink as shares are redeemed.
type Position struct {
	ID                   uint64    `json:"id" db:"id"`
	Owner                string    `json:"owner" db:"owner"`
	PrincipalAmount      math.Int  `json:"principal_amount" db:"principal_amount"`
	PrincipalClaimAmount math.Int  `json:"principal_claim_amount" db:"principal_claim_amount"`
	Deadline             time.Time `json:"deadline" db:"deadline"`
	Closed               bool      `json:"closed" db:"closed"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// Open reports whether the position can still be mutated.
func (p *Position) Open() bool {
	return !p.Closed && p.PrincipalAmount.IsPositive()
}

// PoolState holds the two process-wide accumulators. TotalStaked moves only
// on stake/unstake; TotalYieldPool moves only on yield accrual (up) and
// yield withdrawal (down). Both start at zero and never go negative.
type PoolState struct {
	TotalStaked    math.Int `json:"total_staked"`
	TotalYieldPool math.Int `json:"total_yield_pool"`
}

// NewPoolState returns a zeroed pool.
func NewPoolState() *PoolState {
	return &PoolState{
		TotalStaked:    math.ZeroInt(),
		TotalYieldPool: math.ZeroInt(),
	}
}

// LedgerEntry is an immutable record of one ledger operation. Once created,
// these are never modified or deleted; position and user history endpoints
// replay them.
type LedgerEntry struct {
	ID         string    `json:"id" db:"id"`
	PositionID uint64    `json:"position_id" db:"position_id"` // 0 for pool-level ops
	Op         string    `json:"op" db:"op"`
	User       string    `json:"user" db:"user_addr"`
	Amount     math.Int  `json:"amount" db:"amount"`           // principal or yield moved
	ClaimDelta math.Int  `json:"claim_delta" db:"claim_delta"` // principal claims minted(+)/burned(−)
	YieldDelta math.Int  `json:"yield_delta" db:"yield_delta"` // yield claims minted(+)/burned(−)
	Fee        math.Int  `json:"fee" db:"fee"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
}
