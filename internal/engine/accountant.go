// Package engine implements the numeric core of the staking ledger: claim
// issuance at stake time, pro-rata yield withdrawal, and early-exit
// settlement. Everything here is a pure function of its inputs — ledger
// totals are passed in as snapshots, never stored.
//
// All amounts are integer fixed-point (cosmossdk.io/math.Int). Division
// rounding direction is deliberate everywhere: issuance and payouts round
// down in the pool's favor, the early-exit clawback rounds the remaining-day
// count up.
package engine

import (
	"errors"
	"fmt"

	"cosmossdk.io/math"
)

// IssuancePolicy selects how principal claims are priced at stake time.
type IssuancePolicy string

const (
	// IssuanceAdditive mints day-weighted yield claims and discounts the
	// principal claim by the depositor's pro-rata slice of the already
	// pooled yield.
	IssuanceAdditive IssuancePolicy = "additive"

	// IssuanceShare prices principal claims like vault shares: by the ratio
	// of outstanding claim supply to the staked base-asset total.
	IssuanceShare IssuancePolicy = "share"
)

var (
	// ErrZeroInput is returned for zero or negative amounts where a positive
	// amount is required.
	ErrZeroInput = errors.New("engine: amount must be positive")

	// ErrUnknownPolicy is returned for an unrecognised issuance policy name.
	ErrUnknownPolicy = errors.New("engine: unknown issuance policy")

	// ErrDilutedIssuance is returned under the additive policy when the
	// pooled-yield discount consumes the entire principal claim. Accepting
	// such a stake would mint a position with nothing to redeem.
	ErrDilutedIssuance = errors.New("engine: pooled yield discount exceeds principal claim")
)

// PoolSnapshot is a point-in-time view of the shared ledger totals plus the
// outstanding claim-token supplies reported by the token collaborators.
type PoolSnapshot struct {
	TotalStaked    math.Int
	TotalYieldPool math.Int
	ClaimSupply    math.Int // principal claim token total supply
	YieldSupply    math.Int // yield claim token total supply
}

// Issuance is the pair of claim amounts minted for one stake.
type Issuance struct {
	PrincipalClaim math.Int `json:"principal_claim"`
	YieldClaim     math.Int `json:"yield_claim"`
}

// Accountant computes issuance ratios and yield redemptions for one
// configured policy. It is stateless and safe for concurrent use.
type Accountant struct {
	policy IssuancePolicy
}

// NewAccountant creates an accountant for the given issuance policy.
func NewAccountant(policy IssuancePolicy) (*Accountant, error) {
	switch policy {
	case IssuanceAdditive, IssuanceShare:
		return &Accountant{policy: policy}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// Policy returns the configured issuance policy.
func (a *Accountant) Policy() IssuancePolicy { return a.policy }

// Issue computes the claim amounts minted for staking principal over
// lockupDays. The yield claim is a day-weighted unit under both policies:
//
//	yieldClaim = principal * lockupDays
//
// The principal claim depends on the policy:
//
//	additive: principal − yieldClaim * totalYieldPool / yieldSupply
//	share:    principal * claimSupply / totalStaked   (1:1 on an empty pool)
//
// Both divisions round down.
func (a *Accountant) Issue(principal math.Int, lockupDays int64, pool PoolSnapshot) (Issuance, error) {
	if principal.IsNil() || !principal.IsPositive() {
		return Issuance{}, ErrZeroInput
	}
	if lockupDays <= 0 {
		return Issuance{}, fmt.Errorf("%w: lockup days", ErrZeroInput)
	}

	yieldClaim := principal.MulRaw(lockupDays)

	var principalClaim math.Int
	switch a.policy {
	case IssuanceAdditive:
		principalClaim = principal
		if pool.YieldSupply.IsPositive() && pool.TotalYieldPool.IsPositive() {
			discount := yieldClaim.Mul(pool.TotalYieldPool).Quo(pool.YieldSupply)
			principalClaim = principal.Sub(discount)
		}
		if !principalClaim.IsPositive() {
			return Issuance{}, ErrDilutedIssuance
		}
	case IssuanceShare:
		if pool.ClaimSupply.IsPositive() && pool.TotalStaked.IsPositive() {
			principalClaim = principal.Mul(pool.ClaimSupply).Quo(pool.TotalStaked)
		} else {
			principalClaim = principal
		}
		if !principalClaim.IsPositive() {
			return Issuance{}, ErrDilutedIssuance
		}
	default:
		return Issuance{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, a.policy)
	}

	return Issuance{PrincipalClaim: principalClaim, YieldClaim: yieldClaim}, nil
}

// YieldShare computes the base-asset amount redeemed for burning burnedYield
// yield claims:
//
//	yield = totalYieldPool * burnedYield / yieldSupply
//
// rounded down. The caller decrements the pool by the returned amount, which
// can never exceed totalYieldPool because burnedYield <= yieldSupply is
// enforced by the claim token's burn.
func (a *Accountant) YieldShare(burnedYield math.Int, pool PoolSnapshot) (math.Int, error) {
	if burnedYield.IsNil() || !burnedYield.IsPositive() {
		return math.Int{}, ErrZeroInput
	}
	if !pool.YieldSupply.IsPositive() || !pool.TotalYieldPool.IsPositive() {
		return math.ZeroInt(), nil
	}
	return pool.TotalYieldPool.Mul(burnedYield).Quo(pool.YieldSupply), nil
}
