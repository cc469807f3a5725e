package engine

import (
	"errors"
	"testing"

	"cosmossdk.io/math"

	"github.com/emberfi/stake-engine/internal/model"
)

func position(principal, claim int64) *model.Position {
	return &model.Position{
		PrincipalAmount:      math.NewInt(principal),
		PrincipalClaimAmount: math.NewInt(claim),
	}
}

// --- Constructor tests ---

func TestNewSettlement_ValidModels(t *testing.T) {
	for _, m := range []PositionModel{ModelAtomic, ModelFractional} {
		if _, err := NewSettlement(m); err != nil {
			t.Errorf("model %q: unexpected error: %v", m, err)
		}
	}
}

func TestNewSettlement_UnknownModel(t *testing.T) {
	_, err := NewSettlement("hybrid")
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
}

// --- PrincipalShare ---

func TestPrincipalShare_FullClaim(t *testing.T) {
	s, _ := NewSettlement(ModelFractional)
	out, err := s.PrincipalShare(position(1000, 950), n(950))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Redeeming the entire claim returns the entire principal, no rounding.
	if !out.Equal(n(1000)) {
		t.Errorf("expected 1000, got %s", out)
	}
}

func TestPrincipalShare_PartialRoundsDown(t *testing.T) {
	s, _ := NewSettlement(ModelFractional)
	out, err := s.PrincipalShare(position(1000, 950), n(475))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 475*1000/950 = 500.
	if !out.Equal(n(500)) {
		t.Errorf("expected 500, got %s", out)
	}

	out, err = s.PrincipalShare(position(1000, 3), n(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1*1000/3 = 333 (floor).
	if !out.Equal(n(333)) {
		t.Errorf("expected 333, got %s", out)
	}
}

func TestPrincipalShare_ExceedsClaim(t *testing.T) {
	s, _ := NewSettlement(ModelFractional)
	_, err := s.PrincipalShare(position(1000, 950), n(951))
	if !errors.Is(err, ErrShareExceedsClaim) {
		t.Errorf("expected ErrShareExceedsClaim, got %v", err)
	}
}

func TestPrincipalShare_ZeroShare(t *testing.T) {
	s, _ := NewSettlement(ModelFractional)
	_, err := s.PrincipalShare(position(1000, 950), n(0))
	if !errors.Is(err, ErrZeroInput) {
		t.Errorf("expected ErrZeroInput, got %v", err)
	}
}

// --- Quote ---

func TestQuote_OnTime_NoPenalty(t *testing.T) {
	s, _ := NewSettlement(ModelAtomic)
	q, err := s.Quote(n(1000), 0, 500, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Early {
		t.Error("expected on-time settlement")
	}
	if !q.Payout.Equal(n(1000)) {
		t.Errorf("expected payout 1000, got %s", q.Payout)
	}
	if !q.Fee.IsZero() || !q.YieldClaimBurn.IsZero() {
		t.Errorf("expected zero fee and burn, got fee=%s burn=%s", q.Fee, q.YieldClaimBurn)
	}
}

func TestQuote_Early_Atomic(t *testing.T) {
	s, _ := NewSettlement(ModelAtomic)
	q, err := s.Quote(n(1000), 5, 500, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Early {
		t.Error("expected early settlement")
	}
	// burn = 1000*5 = 5000, fee = 1000*500/10000 = 50, payout = 950.
	if !q.YieldClaimBurn.Equal(n(5000)) {
		t.Errorf("expected burn 5000, got %s", q.YieldClaimBurn)
	}
	if !q.Fee.Equal(n(50)) {
		t.Errorf("expected fee 50, got %s", q.Fee)
	}
	if !q.Payout.Equal(n(950)) {
		t.Errorf("expected payout 950, got %s", q.Payout)
	}
}

func TestQuote_Early_FractionalBurnSurcharge(t *testing.T) {
	s, _ := NewSettlement(ModelFractional)
	q, err := s.Quote(n(1000), 5, 500, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// burn = 5000 * (10000+100)/10000 = 5050.
	if !q.YieldClaimBurn.Equal(n(5050)) {
		t.Errorf("expected burn 5050, got %s", q.YieldClaimBurn)
	}
}

func TestQuote_Early_AtomicIgnoresBurnSurcharge(t *testing.T) {
	s, _ := NewSettlement(ModelAtomic)
	q, err := s.Quote(n(1000), 5, 500, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.YieldClaimBurn.Equal(n(5000)) {
		t.Errorf("expected burn 5000 without surcharge, got %s", q.YieldClaimBurn)
	}
}

func TestQuote_FeeRoundsDown(t *testing.T) {
	s, _ := NewSettlement(ModelAtomic)
	q, err := s.Quote(n(99), 1, 500, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 99*500/10000 = 4 (floor); payout = 95.
	if !q.Fee.Equal(n(4)) {
		t.Errorf("expected fee 4, got %s", q.Fee)
	}
	if !q.Payout.Equal(n(95)) {
		t.Errorf("expected payout 95, got %s", q.Payout)
	}
}

func TestQuote_ZeroFeeRate(t *testing.T) {
	s, _ := NewSettlement(ModelAtomic)
	q, err := s.Quote(n(1000), 3, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Fee.IsZero() {
		t.Errorf("expected zero fee, got %s", q.Fee)
	}
	if !q.Payout.Equal(n(1000)) {
		t.Errorf("expected full payout, got %s", q.Payout)
	}
	// Yield claim clawback still applies without a fee.
	if !q.YieldClaimBurn.Equal(n(3000)) {
		t.Errorf("expected burn 3000, got %s", q.YieldClaimBurn)
	}
}

func TestQuote_ZeroPrincipal(t *testing.T) {
	s, _ := NewSettlement(ModelAtomic)
	_, err := s.Quote(n(0), 5, 500, 0)
	if !errors.Is(err, ErrZeroInput) {
		t.Errorf("expected ErrZeroInput, got %v", err)
	}
}
