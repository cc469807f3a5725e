// Package params holds the owner-mutable ledger configuration: lockup
// bounds, fee rates, and the minimum stake floor. Every write goes through
// the bounded setters here; out-of-range values are rejected before any
// state change.
package params

import (
	"errors"
	"fmt"

	"cosmossdk.io/math"

	"github.com/emberfi/stake-engine/internal/model"
)

var (
	// ErrFeeRateOverflow is returned when a fee rate falls outside
	// [0, RatioDenominator].
	ErrFeeRateOverflow = errors.New("params: fee rate outside [0, 10000]")

	// ErrInvalidLockupBounds is returned when a write would leave
	// minLockupDays > maxLockupDays, which would make every future stake
	// impossible. Rejected at write time rather than discovered at stake time.
	ErrInvalidLockupBounds = errors.New("params: min lockup days exceeds max")

	// ErrInvalidMinStake is returned for a negative minimum-stake floor.
	ErrInvalidMinStake = errors.New("params: negative minimum stake")
)

// Params is the full parameter set. Amounts are base-asset units; rates are
// basis points over model.RatioDenominator.
type Params struct {
	MinLockupDays       int64    `json:"min_lockup_days"`
	MaxLockupDays       int64    `json:"max_lockup_days"`
	ForceUnstakeFeeRate int64    `json:"force_unstake_fee_rate"`
	BurnedYTFeeRate     int64    `json:"burned_yt_fee_rate"`
	MinStake            math.Int `json:"min_stake"`
}

// Default returns the deployment defaults: 1–365 day lockups, a 5% force
// unstake fee, no extra yield-claim burn fee, and a 1e15 stake floor.
func Default() Params {
	return Params{
		MinLockupDays:       1,
		MaxLockupDays:       365,
		ForceUnstakeFeeRate: 500,
		BurnedYTFeeRate:     0,
		MinStake:            math.NewIntWithDecimal(1, 15),
	}
}

// Validate checks every field against its bounds.
func (p Params) Validate() error {
	if p.MinLockupDays < 0 || p.MaxLockupDays < 0 {
		return fmt.Errorf("%w: negative day bound", ErrInvalidLockupBounds)
	}
	if p.MinLockupDays > p.MaxLockupDays {
		return fmt.Errorf("%w: %d > %d", ErrInvalidLockupBounds, p.MinLockupDays, p.MaxLockupDays)
	}
	if err := validRate(p.ForceUnstakeFeeRate); err != nil {
		return fmt.Errorf("force unstake fee: %w", err)
	}
	if err := validRate(p.BurnedYTFeeRate); err != nil {
		return fmt.Errorf("burned yield claim fee: %w", err)
	}
	if p.MinStake.IsNil() || p.MinStake.IsNegative() {
		return ErrInvalidMinStake
	}
	return nil
}

// Update carries a partial parameter change; nil fields keep their current
// value. The merged result is re-validated as a whole, so a lockup-bound
// write that crosses the other bound is rejected even when each field is
// individually sane.
type Update struct {
	MinLockupDays       *int64    `json:"min_lockup_days,omitempty"`
	MaxLockupDays       *int64    `json:"max_lockup_days,omitempty"`
	ForceUnstakeFeeRate *int64    `json:"force_unstake_fee_rate,omitempty"`
	BurnedYTFeeRate     *int64    `json:"burned_yt_fee_rate,omitempty"`
	MinStake            *math.Int `json:"min_stake,omitempty"`
}

// Apply merges u into p and validates the result. p is unchanged on error.
func (p Params) Apply(u Update) (Params, error) {
	next := p
	if u.MinLockupDays != nil {
		next.MinLockupDays = *u.MinLockupDays
	}
	if u.MaxLockupDays != nil {
		next.MaxLockupDays = *u.MaxLockupDays
	}
	if u.ForceUnstakeFeeRate != nil {
		next.ForceUnstakeFeeRate = *u.ForceUnstakeFeeRate
	}
	if u.BurnedYTFeeRate != nil {
		next.BurnedYTFeeRate = *u.BurnedYTFeeRate
	}
	if u.MinStake != nil {
		next.MinStake = *u.MinStake
	}
	if err := next.Validate(); err != nil {
		return p, err
	}
	return next, nil
}

func validRate(rate int64) error {
	if rate < 0 || rate > model.RatioDenominator {
		return fmt.Errorf("%w: %d", ErrFeeRateOverflow, rate)
	}
	return nil
}
