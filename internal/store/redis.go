package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/redis/go-redis/v9"

	"github.com/emberfi/stake-engine/internal/model"
	"github.com/emberfi/stake-engine/internal/params"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot reads: single positions, the pool accumulators, and the
// parameter set. Writes go to the primary store and invalidate the cache.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

// --- Writes (primary first, then invalidate) ---

func (s *CachedStore) ApplyStake(ctx context.Context, p *model.Position, e *model.LedgerEntry) (uint64, error) {
	id, err := s.primary.ApplyStake(ctx, p, e)
	if err != nil {
		return 0, err
	}
	s.rdb.Del(ctx, poolKey())
	return id, nil
}

func (s *CachedStore) ApplyUnstake(ctx context.Context, u UnstakeUpdate, e *model.LedgerEntry) error {
	if err := s.primary.ApplyUnstake(ctx, u, e); err != nil {
		return err
	}
	s.rdb.Del(ctx, positionKey(u.PositionID), poolKey())
	return nil
}

func (s *CachedStore) ExtendPosition(ctx context.Context, id uint64, newDeadline time.Time, e *model.LedgerEntry) error {
	if err := s.primary.ExtendPosition(ctx, id, newDeadline, e); err != nil {
		return err
	}
	s.rdb.Del(ctx, positionKey(id))
	return nil
}

func (s *CachedStore) AddYield(ctx context.Context, amount math.Int, e *model.LedgerEntry) error {
	if err := s.primary.AddYield(ctx, amount, e); err != nil {
		return err
	}
	s.rdb.Del(ctx, poolKey())
	return nil
}

func (s *CachedStore) SubtractYield(ctx context.Context, amount math.Int, e *model.LedgerEntry) error {
	if err := s.primary.SubtractYield(ctx, amount, e); err != nil {
		return err
	}
	s.rdb.Del(ctx, poolKey())
	return nil
}

func (s *CachedStore) SaveParams(ctx context.Context, p params.Params) error {
	if err := s.primary.SaveParams(ctx, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, paramsKey())
	return nil
}

// --- Reads (cache first) ---

func (s *CachedStore) GetPosition(ctx context.Context, id uint64) (*model.Position, error) {
	data, err := s.rdb.Get(ctx, positionKey(id)).Bytes()
	if err == nil {
		var p model.Position
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPosition(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, positionKey(id), data, s.ttl)
	}
	return p, nil
}

func (s *CachedStore) GetPoolState(ctx context.Context) (*model.PoolState, error) {
	data, err := s.rdb.Get(ctx, poolKey()).Bytes()
	if err == nil {
		var ps model.PoolState
		if json.Unmarshal(data, &ps) == nil {
			return &ps, nil
		}
	}

	ps, err := s.primary.GetPoolState(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(ps); err == nil {
		s.rdb.Set(ctx, poolKey(), data, s.ttl)
	}
	return ps, nil
}

func (s *CachedStore) GetParams(ctx context.Context) (params.Params, error) {
	data, err := s.rdb.Get(ctx, paramsKey()).Bytes()
	if err == nil {
		var p params.Params
		if json.Unmarshal(data, &p) == nil {
			return p, nil
		}
	}

	p, err := s.primary.GetParams(ctx)
	if err != nil {
		return params.Params{}, err
	}
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, paramsKey(), data, s.ttl)
	}
	return p, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListPositionsByOwner(ctx context.Context, owner string) ([]model.Position, error) {
	return s.primary.ListPositionsByOwner(ctx, owner)
}

func (s *CachedStore) ListOpenPositions(ctx context.Context) ([]model.Position, error) {
	return s.primary.ListOpenPositions(ctx)
}

func (s *CachedStore) LedgerByPosition(ctx context.Context, positionID uint64) ([]model.LedgerEntry, error) {
	return s.primary.LedgerByPosition(ctx, positionID)
}

func (s *CachedStore) LedgerByUser(ctx context.Context, user string) ([]model.LedgerEntry, error) {
	return s.primary.LedgerByUser(ctx, user)
}

// --- Cache keys ---

func positionKey(id uint64) string { return fmt.Sprintf("position:%d", id) }
func poolKey() string              { return "pool:state" }
func paramsKey() string            { return "pool:params" }
