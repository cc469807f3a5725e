package engine

import (
	"errors"
	"fmt"

	"cosmossdk.io/math"

	"github.com/emberfi/stake-engine/internal/model"
)

// PositionModel selects how positions are owned and redeemed.
type PositionModel string

const (
	// ModelAtomic positions are single-owner and all-or-nothing: one close,
	// authorized by owner equality.
	ModelAtomic PositionModel = "atomic"

	// ModelFractional positions are multi-owner and partially redeemable by
	// claim share; authorization is the burn of the redeemed claim tokens.
	ModelFractional PositionModel = "fractional"
)

var (
	// ErrUnknownModel is returned for an unrecognised position model name.
	ErrUnknownModel = errors.New("engine: unknown position model")

	// ErrShareExceedsClaim is returned when a fractional redemption asks for
	// more shares than the position has outstanding.
	ErrShareExceedsClaim = errors.New("engine: share exceeds outstanding claim")
)

// ExitQuote is the settlement breakdown for one unstake.
type ExitQuote struct {
	// Principal is the base-asset amount leaving the staked total.
	Principal math.Int `json:"principal"`
	// YieldClaimBurn is the yield-claim amount the exiting holder forfeits.
	// Zero for on-time exits.
	YieldClaimBurn math.Int `json:"yield_claim_burn"`
	// Fee is the early-exit fee routed to the revenue pool. Zero on time.
	Fee math.Int `json:"fee"`
	// Payout is Principal − Fee, paid to the holder.
	Payout math.Int `json:"payout"`
	// Early reports whether penalties applied.
	Early bool `json:"early"`
}

// Settlement computes early-exit penalties for one configured position
// model. Stateless, like Accountant.
type Settlement struct {
	model PositionModel
}

// NewSettlement creates a settlement engine for the given position model.
func NewSettlement(m PositionModel) (*Settlement, error) {
	switch m {
	case ModelAtomic, ModelFractional:
		return &Settlement{model: m}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, m)
	}
}

// Model returns the configured position model.
func (s *Settlement) Model() PositionModel { return s.model }

// PrincipalShare converts a redeemed claim share into base-asset principal
// using the position's original mint ratio, rounding down:
//
//	principal = share * principalAmount / principalClaimAmount
//
// Under the atomic model the whole position is always redeemed, so the share
// equals the full claim amount and the result is the full principal.
func (s *Settlement) PrincipalShare(pos *model.Position, share math.Int) (math.Int, error) {
	if share.IsNil() || !share.IsPositive() {
		return math.Int{}, ErrZeroInput
	}
	if share.GT(pos.PrincipalClaimAmount) {
		return math.Int{}, fmt.Errorf("%w: %s > %s",
			ErrShareExceedsClaim, share, pos.PrincipalClaimAmount)
	}
	if share.Equal(pos.PrincipalClaimAmount) {
		return pos.PrincipalAmount, nil
	}
	return share.Mul(pos.PrincipalAmount).Quo(pos.PrincipalClaimAmount), nil
}

// Quote computes the settlement for redeeming principalShare with
// remainDays of lock left (already ceiling-rounded by the lockup policy;
// zero means an on-time exit).
//
// Early exits forfeit the yield claims covering the remaining days:
//
//	atomic:     burn = principalShare * remainDays
//	fractional: burn = principalShare * remainDays * (RATIO + burnedYTFeeRate) / RATIO
//
// and pay a principal exit fee of principalShare * forceUnstakeFeeRate /
// RATIO (rounded down). On-time exits carry no burn and no fee.
func (s *Settlement) Quote(principalShare math.Int, remainDays int64, forceUnstakeFeeRate, burnedYTFeeRate int64) (ExitQuote, error) {
	if principalShare.IsNil() || !principalShare.IsPositive() {
		return ExitQuote{}, ErrZeroInput
	}

	q := ExitQuote{
		Principal:      principalShare,
		YieldClaimBurn: math.ZeroInt(),
		Fee:            math.ZeroInt(),
		Payout:         principalShare,
	}
	if remainDays <= 0 {
		return q, nil
	}

	q.Early = true
	q.YieldClaimBurn = principalShare.MulRaw(remainDays)
	if s.model == ModelFractional && burnedYTFeeRate > 0 {
		q.YieldClaimBurn = q.YieldClaimBurn.
			MulRaw(model.RatioDenominator + burnedYTFeeRate).
			QuoRaw(model.RatioDenominator)
	}
	if forceUnstakeFeeRate > 0 {
		q.Fee = principalShare.MulRaw(forceUnstakeFeeRate).QuoRaw(model.RatioDenominator)
		q.Payout = principalShare.Sub(q.Fee)
	}
	return q, nil
}
