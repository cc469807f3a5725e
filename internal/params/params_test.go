package params

import (
	"errors"
	"testing"

	"cosmossdk.io/math"
)

func int64p(v int64) *int64 { return &v }

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestValidate_MinExceedsMax(t *testing.T) {
	p := Default()
	p.MinLockupDays = 30
	p.MaxLockupDays = 7
	if err := p.Validate(); !errors.Is(err, ErrInvalidLockupBounds) {
		t.Errorf("expected ErrInvalidLockupBounds, got %v", err)
	}
}

func TestValidate_NegativeDayBound(t *testing.T) {
	p := Default()
	p.MinLockupDays = -1
	if err := p.Validate(); !errors.Is(err, ErrInvalidLockupBounds) {
		t.Errorf("expected ErrInvalidLockupBounds, got %v", err)
	}
}

func TestValidate_FeeRateBounds(t *testing.T) {
	p := Default()
	p.ForceUnstakeFeeRate = 10001
	if err := p.Validate(); !errors.Is(err, ErrFeeRateOverflow) {
		t.Errorf("expected ErrFeeRateOverflow above 10000, got %v", err)
	}

	p = Default()
	p.BurnedYTFeeRate = -1
	if err := p.Validate(); !errors.Is(err, ErrFeeRateOverflow) {
		t.Errorf("expected ErrFeeRateOverflow below 0, got %v", err)
	}

	p = Default()
	p.ForceUnstakeFeeRate = 10000
	if err := p.Validate(); err != nil {
		t.Errorf("10000 is inclusive, got %v", err)
	}
}

func TestValidate_NegativeMinStake(t *testing.T) {
	p := Default()
	p.MinStake = math.NewInt(-1)
	if err := p.Validate(); !errors.Is(err, ErrInvalidMinStake) {
		t.Errorf("expected ErrInvalidMinStake, got %v", err)
	}
}

func TestApply_PartialUpdate(t *testing.T) {
	p := Default()
	next, err := p.Apply(Update{ForceUnstakeFeeRate: int64p(250)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ForceUnstakeFeeRate != 250 {
		t.Errorf("expected fee rate 250, got %d", next.ForceUnstakeFeeRate)
	}
	// Untouched fields keep their values.
	if next.MinLockupDays != p.MinLockupDays || next.MaxLockupDays != p.MaxLockupDays {
		t.Error("unrelated fields changed")
	}
}

func TestApply_CrossFieldRejection(t *testing.T) {
	p := Default()
	// Each bound is individually sane, but min would cross max.
	_, err := p.Apply(Update{MinLockupDays: int64p(400)})
	if !errors.Is(err, ErrInvalidLockupBounds) {
		t.Errorf("expected ErrInvalidLockupBounds, got %v", err)
	}
}

func TestApply_UnchangedOnError(t *testing.T) {
	p := Default()
	got, err := p.Apply(Update{ForceUnstakeFeeRate: int64p(20000)})
	if err == nil {
		t.Fatal("expected error")
	}
	if got.ForceUnstakeFeeRate != p.ForceUnstakeFeeRate {
		t.Errorf("params mutated on failed apply: %d", got.ForceUnstakeFeeRate)
	}
}

func TestApply_MinStakeUpdate(t *testing.T) {
	p := Default()
	v := math.NewInt(42)
	next, err := p.Apply(Update{MinStake: &v})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.MinStake.Equal(v) {
		t.Errorf("expected min stake 42, got %s", next.MinStake)
	}
}
