package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cosmossdk.io/math"

	"github.com/emberfi/stake-engine/internal/model"
	"github.com/emberfi/stake-engine/internal/params"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    uint64
	positions map[uint64]*model.Position
	pool      model.PoolState
	params    params.Params
	ledger    []model.LedgerEntry
}

// NewMemoryStore creates an empty in-memory store with default parameters.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		positions: make(map[uint64]*model.Position),
		pool:      *model.NewPoolState(),
		params:    params.Default(),
	}
}

func (s *MemoryStore) ApplyStake(_ context.Context, p *model.Position, e *model.LedgerEntry) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	stored := *p
	stored.ID = id
	s.positions[id] = &stored
	s.pool.TotalStaked = s.pool.TotalStaked.Add(p.PrincipalAmount)

	if e != nil {
		entry := *e
		entry.PositionID = id
		s.ledger = append(s.ledger, entry)
	}
	return id, nil
}

func (s *MemoryStore) ApplyUnstake(_ context.Context, u UnstakeUpdate, e *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[u.PositionID]
	if !ok {
		return fmt.Errorf("position %d: %w", u.PositionID, ErrPositionNotFound)
	}
	if pos.PrincipalAmount.LT(u.PrincipalDelta) {
		return fmt.Errorf("position %d principal: %w", u.PositionID, ErrStakedUnderflow)
	}
	if s.pool.TotalStaked.LT(u.PrincipalDelta) {
		return fmt.Errorf("total staked: %w", ErrStakedUnderflow)
	}

	pos.PrincipalAmount = pos.PrincipalAmount.Sub(u.PrincipalDelta)
	pos.PrincipalClaimAmount = pos.PrincipalClaimAmount.Sub(u.ClaimDelta)
	pos.Deadline = u.SettledDeadline
	if u.Close {
		pos.Closed = true
	}
	s.pool.TotalStaked = s.pool.TotalStaked.Sub(u.PrincipalDelta)

	if e != nil {
		s.ledger = append(s.ledger, *e)
	}
	return nil
}

func (s *MemoryStore) ExtendPosition(_ context.Context, id uint64, newDeadline time.Time, e *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[id]
	if !ok {
		return fmt.Errorf("position %d: %w", id, ErrPositionNotFound)
	}
	pos.Deadline = newDeadline
	if e != nil {
		s.ledger = append(s.ledger, *e)
	}
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, id uint64) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[id]
	if !ok {
		return nil, fmt.Errorf("position %d: %w", id, ErrPositionNotFound)
	}
	cp := *pos
	return &cp, nil
}

func (s *MemoryStore) ListPositionsByOwner(_ context.Context, owner string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Position
	for _, pos := range s.positions {
		if pos.Owner == owner {
			out = append(out, *pos)
		}
	}
	sortPositions(out)
	return out, nil
}

func (s *MemoryStore) ListOpenPositions(_ context.Context) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Position
	for _, pos := range s.positions {
		if pos.Open() {
			out = append(out, *pos)
		}
	}
	sortPositions(out)
	return out, nil
}

func (s *MemoryStore) GetPoolState(_ context.Context) (*model.PoolState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := s.pool
	return &cp, nil
}

func (s *MemoryStore) AddYield(_ context.Context, amount math.Int, e *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pool.TotalYieldPool = s.pool.TotalYieldPool.Add(amount)
	if e != nil {
		s.ledger = append(s.ledger, *e)
	}
	return nil
}

func (s *MemoryStore) SubtractYield(_ context.Context, amount math.Int, e *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool.TotalYieldPool.LT(amount) {
		return fmt.Errorf("subtract %s from %s: %w", amount, s.pool.TotalYieldPool, ErrYieldPoolUnderflow)
	}
	s.pool.TotalYieldPool = s.pool.TotalYieldPool.Sub(amount)
	if e != nil {
		s.ledger = append(s.ledger, *e)
	}
	return nil
}

func (s *MemoryStore) GetParams(_ context.Context) (params.Params, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params, nil
}

func (s *MemoryStore) SaveParams(_ context.Context, p params.Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	return nil
}

func (s *MemoryStore) LedgerByPosition(_ context.Context, positionID uint64) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.LedgerEntry
	for _, e := range s.ledger {
		if e.PositionID == positionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) LedgerByUser(_ context.Context, user string) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.LedgerEntry
	for _, e := range s.ledger {
		if e.User == user {
			out = append(out, e)
		}
	}
	return out, nil
}

// CheckInvariants verifies that the sum of open-position principal equals
// the staked total and that both accumulators are non-negative. Tests call
// this after every operation sequence.
func (s *MemoryStore) CheckInvariants() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := math.ZeroInt()
	for _, pos := range s.positions {
		if pos.Open() {
			sum = sum.Add(pos.PrincipalAmount)
		}
	}
	if !sum.Equal(s.pool.TotalStaked) {
		return fmt.Errorf("open principal %s != total staked %s", sum, s.pool.TotalStaked)
	}
	if s.pool.TotalStaked.IsNegative() {
		return ErrStakedUnderflow
	}
	if s.pool.TotalYieldPool.IsNegative() {
		return ErrYieldPoolUnderflow
	}
	return nil
}

func sortPositions(ps []model.Position) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}
