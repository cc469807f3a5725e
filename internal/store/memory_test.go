package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/math"

	"github.com/emberfi/stake-engine/internal/model"
)

func n(v int64) math.Int { return math.NewInt(v) }

func testPosition(owner string, principal int64) *model.Position {
	return &model.Position{
		Owner:                owner,
		PrincipalAmount:      n(principal),
		PrincipalClaimAmount: n(principal),
		Deadline:             time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:            time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestApplyStake_AssignsSequentialIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id1, err := s.ApplyStake(ctx, testPosition("alice", 100), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, _ := s.ApplyStake(ctx, testPosition("bob", 200), nil)
	if id1 != 1 || id2 != 2 {
		t.Errorf("expected ids 1, 2, got %d, %d", id1, id2)
	}

	ps, _ := s.GetPoolState(ctx)
	if !ps.TotalStaked.Equal(n(300)) {
		t.Errorf("expected total staked 300, got %s", ps.TotalStaked)
	}
	if err := s.CheckInvariants(); err != nil {
		t.Errorf("invariant violated: %v", err)
	}
}

func TestApplyUnstake_ClosePosition(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, _ := s.ApplyStake(ctx, testPosition("alice", 100), nil)

	err := s.ApplyUnstake(ctx, UnstakeUpdate{
		PositionID:      id,
		Close:           true,
		SettledDeadline: time.Now().UTC(),
		PrincipalDelta:  n(100),
		ClaimDelta:      n(100),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos, _ := s.GetPosition(ctx, id)
	if pos.Open() {
		t.Error("position should be closed")
	}
	ps, _ := s.GetPoolState(ctx)
	if !ps.TotalStaked.IsZero() {
		t.Errorf("expected zero staked, got %s", ps.TotalStaked)
	}
	if err := s.CheckInvariants(); err != nil {
		t.Errorf("invariant violated: %v", err)
	}
}

func TestApplyUnstake_UnderflowGuard(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, _ := s.ApplyStake(ctx, testPosition("alice", 100), nil)

	err := s.ApplyUnstake(ctx, UnstakeUpdate{
		PositionID:      id,
		SettledDeadline: time.Now().UTC(),
		PrincipalDelta:  n(101),
		ClaimDelta:      n(101),
	}, nil)
	if !errors.Is(err, ErrStakedUnderflow) {
		t.Errorf("expected ErrStakedUnderflow, got %v", err)
	}
}

func TestApplyUnstake_UnknownPosition(t *testing.T) {
	s := NewMemoryStore()
	err := s.ApplyUnstake(context.Background(), UnstakeUpdate{
		PositionID:     7,
		PrincipalDelta: n(1),
		ClaimDelta:     n(1),
	}, nil)
	if !errors.Is(err, ErrPositionNotFound) {
		t.Errorf("expected ErrPositionNotFound, got %v", err)
	}
}

func TestSubtractYield_UnderflowGuard(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.AddYield(ctx, n(100), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.SubtractYield(ctx, n(101), nil)
	if !errors.Is(err, ErrYieldPoolUnderflow) {
		t.Errorf("expected ErrYieldPoolUnderflow, got %v", err)
	}
	if err := s.SubtractYield(ctx, n(100), nil); err != nil {
		t.Errorf("exact drain should succeed: %v", err)
	}
}

func TestLedger_FiltersByPositionAndUser(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, _ := s.ApplyStake(ctx, testPosition("alice", 100), &model.LedgerEntry{
		ID: "e1", Op: model.OpStake, User: "alice",
		Amount: n(100), ClaimDelta: n(100), YieldDelta: n(1000), Fee: n(0),
	})
	s.AddYield(ctx, n(50), &model.LedgerEntry{
		ID: "e2", Op: model.OpYieldAccrue,
		Amount: n(50), ClaimDelta: n(0), YieldDelta: n(0), Fee: n(0),
	})

	byPos, _ := s.LedgerByPosition(ctx, id)
	if len(byPos) != 1 || byPos[0].Op != model.OpStake {
		t.Errorf("expected single stake entry, got %+v", byPos)
	}
	byUser, _ := s.LedgerByUser(ctx, "alice")
	if len(byUser) != 1 {
		t.Errorf("expected single user entry, got %d", len(byUser))
	}
}

func TestListOpenPositions_ExcludesClosedAndDrained(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.ApplyStake(ctx, testPosition("alice", 100), nil)
	id2, _ := s.ApplyStake(ctx, testPosition("bob", 200), nil)
	s.ApplyUnstake(ctx, UnstakeUpdate{
		PositionID:      id2,
		Close:           true,
		SettledDeadline: time.Now().UTC(),
		PrincipalDelta:  n(200),
		ClaimDelta:      n(200),
	}, nil)

	open, _ := s.ListOpenPositions(ctx)
	if len(open) != 1 || open[0].Owner != "alice" {
		t.Errorf("expected alice's open position only, got %+v", open)
	}
}
