// Package stake provides the HTTP handlers and business logic for staking,
// unstake settlement, lock extension, and yield accrual/withdrawal.
//
// All amounts are integer fixed-point (cosmossdk.io/math.Int) — never
// float64 for money.
package stake

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emberfi/stake-engine/internal/engine"
	"github.com/emberfi/stake-engine/internal/lockup"
	"github.com/emberfi/stake-engine/internal/metrics"
	"github.com/emberfi/stake-engine/internal/model"
	"github.com/emberfi/stake-engine/internal/params"
	"github.com/emberfi/stake-engine/internal/store"
	"github.com/emberfi/stake-engine/internal/token"
)

var (
	// ErrPermissionDenied is returned when the caller is not authorized for
	// the position or endpoint. Always checked before any state mutation.
	ErrPermissionDenied = errors.New("stake: permission denied")

	// ErrPositionClosed is returned when mutating a closed position.
	ErrPositionClosed = errors.New("stake: position closed")

	// ErrMinStakeInsufficient is returned for stakes below the floor.
	ErrMinStakeInsufficient = errors.New("stake: amount below minimum stake")
)

// Collaborators bundles the external contracts the ledger consumes.
type Collaborators struct {
	Principal token.ClaimToken
	Yield     token.ClaimToken
	Wrapper   token.BaseAssetWrapper
	Revenue   token.RevenuePool
}

// Service handles ledger operations. Uses a mutex for serialized execution
// of state-changing calls (single-instance); reads go through unlocked.
type Service struct {
	store       store.Store
	accountant  *engine.Accountant
	settlement  *engine.Settlement
	tokens      Collaborators
	adminKey    string
	reporterKey string
	now         func() time.Time
	mu          sync.Mutex
	wsHub       *WSHub // optional hub for real-time broadcasts
}

// NewService creates a new stake service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, acct *engine.Accountant, settle *engine.Settlement,
	tokens Collaborators, adminKey, reporterKey string, hub *WSHub) *Service {
	return &Service{
		store:       st,
		accountant:  acct,
		settlement:  settle,
		tokens:      tokens,
		adminKey:    adminKey,
		reporterKey: reporterKey,
		now:         func() time.Time { return time.Now().UTC() },
		wsHub:       hub,
	}
}

// SetClock replaces the wall clock. Tests use this to settle positions at
// exact offsets from their deadlines.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// --- Request/Response types ---

// StakeRequest is the JSON body for POST /stake. Amounts are decimal strings.
type StakeRequest struct {
	User       string   `json:"user"`
	Amount     math.Int `json:"amount"`
	LockupDays int64    `json:"lockup_days"`
}

// StakeResponse is returned from POST /stake.
type StakeResponse struct {
	PositionID           uint64    `json:"position_id"`
	Deadline             time.Time `json:"deadline"`
	PrincipalClaimMinted math.Int  `json:"principal_claim_minted"`
	YieldClaimMinted     math.Int  `json:"yield_claim_minted"`
}

// UnstakeRequest is the JSON body for POST /unstake. Share is required under
// the fractional position model and ignored under the atomic model.
type UnstakeRequest struct {
	User       string    `json:"user"`
	PositionID uint64    `json:"position_id"`
	Share      *math.Int `json:"share,omitempty"`
}

// UnstakeResponse is the settlement breakdown returned from POST /unstake.
type UnstakeResponse struct {
	PositionID     uint64   `json:"position_id"`
	Principal      math.Int `json:"principal"`
	Payout         math.Int `json:"payout"`
	Fee            math.Int `json:"fee"`
	YieldClaimBurn math.Int `json:"yield_claim_burn"`
	Early          bool     `json:"early"`
	RemainingDays  int64    `json:"remaining_days"`
}

// ExtendRequest is the JSON body for POST /positions/{id}/extend.
type ExtendRequest struct {
	User       string `json:"user"`
	ExtendDays int64  `json:"extend_days"`
}

// WithdrawYieldRequest is the JSON body for POST /yield/withdraw. Amount is
// the yield-claim amount to burn.
type WithdrawYieldRequest struct {
	User   string   `json:"user"`
	Amount math.Int `json:"amount"`
}

// AccrueYieldRequest is the JSON body for POST /yield/accrue.
type AccrueYieldRequest struct {
	Amount math.Int `json:"amount"`
}

// PoolResponse is returned from GET /pool. The decimal statistics are
// derived for dashboards; on-ledger state stays integral.
type PoolResponse struct {
	TotalStaked            math.Int        `json:"total_staked"`
	TotalYieldPool         math.Int        `json:"total_yield_pool"`
	PrincipalClaimSupply   math.Int        `json:"principal_claim_supply"`
	YieldClaimSupply       math.Int        `json:"yield_claim_supply"`
	YieldPerClaim          decimal.Decimal `json:"yield_per_claim"`
	ForceUnstakeFeePercent decimal.Decimal `json:"force_unstake_fee_percent"`
}

// --- HTTP Handlers ---

// Stake handles POST /api/v1/stake.
func (s *Service) Stake(w http.ResponseWriter, r *http.Request) {
	var req StakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.User == "" {
		writeError(w, "user is required", http.StatusBadRequest)
		return
	}
	if req.Amount.IsNil() || !req.Amount.IsPositive() {
		writeError(w, engine.ErrZeroInput.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.GetParams(ctx)
	if err != nil {
		writeError(w, "failed to load parameters", http.StatusInternalServerError)
		return
	}
	if req.Amount.LT(p.MinStake) {
		writeError(w, ErrMinStakeInsufficient.Error(), http.StatusBadRequest)
		return
	}

	now := s.now()
	deadline, err := lockup.Validate(now, req.LockupDays, p.MinLockupDays, p.MaxLockupDays)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		writeError(w, "failed to read pool state", http.StatusInternalServerError)
		return
	}

	iss, err := s.accountant.Issue(req.Amount, req.LockupDays, snap)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pos := &model.Position{
		Owner:                req.User,
		PrincipalAmount:      req.Amount,
		PrincipalClaimAmount: iss.PrincipalClaim,
		Deadline:             deadline,
		CreatedAt:            now,
	}
	entry := s.entry(0, model.OpStake, req.User, req.Amount, iss.PrincipalClaim, iss.YieldClaim, math.ZeroInt())

	id, err := s.store.ApplyStake(ctx, pos, entry)
	if err != nil {
		writeError(w, "failed to record stake", http.StatusInternalServerError)
		return
	}

	if err := s.tokens.Principal.Mint(ctx, req.User, iss.PrincipalClaim); err != nil {
		writeError(w, "principal claim mint failed", http.StatusInternalServerError)
		return
	}
	if err := s.tokens.Yield.Mint(ctx, req.User, iss.YieldClaim); err != nil {
		writeError(w, "yield claim mint failed", http.StatusInternalServerError)
		return
	}

	metrics.StakesTotal.Inc()
	s.refreshGauges(ctx)

	slog.Info("stake recorded",
		"position_id", id,
		"user", req.User,
		"amount", req.Amount.String(),
		"lockup_days", req.LockupDays,
		"principal_claim", iss.PrincipalClaim.String(),
		"yield_claim", iss.YieldClaim.String(),
	)
	s.broadcast(WSMessage{
		Type:       "staked",
		PositionID: id,
		User:       req.User,
		Amount:     req.Amount.String(),
	})

	writeJSON(w, http.StatusCreated, StakeResponse{
		PositionID:           id,
		Deadline:             deadline,
		PrincipalClaimMinted: iss.PrincipalClaim,
		YieldClaimMinted:     iss.YieldClaim,
	})
}

// Unstake handles POST /api/v1/unstake.
// Settles a position early (with penalties) or on time (without).
func (s *Service) Unstake(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req UnstakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.User == "" {
		writeError(w, "user is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.GetParams(ctx)
	if err != nil {
		writeError(w, "failed to load parameters", http.StatusInternalServerError)
		return
	}

	pos, err := s.store.GetPosition(ctx, req.PositionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Authorization first, before any balance mutation.
	var claimBurn math.Int
	closing := false
	switch s.settlement.Model() {
	case engine.ModelAtomic:
		if pos.Owner != req.User {
			writeServiceError(w, ErrPermissionDenied)
			return
		}
		if pos.Closed {
			writeServiceError(w, ErrPositionClosed)
			return
		}
		claimBurn = pos.PrincipalClaimAmount
		closing = true
	case engine.ModelFractional:
		if !pos.Open() {
			writeServiceError(w, ErrPositionClosed)
			return
		}
		if req.Share == nil || req.Share.IsNil() || !req.Share.IsPositive() {
			writeError(w, engine.ErrZeroInput.Error(), http.StatusBadRequest)
			return
		}
		claimBurn = *req.Share
	}

	principalShare, err := s.settlement.PrincipalShare(pos, claimBurn)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	now := s.now()
	remain := lockup.RemainingDays(now, pos.Deadline)
	quote, err := s.settlement.Quote(principalShare, remain, p.ForceUnstakeFeeRate, p.BurnedYTFeeRate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Verify every leg before mutating: the claim burns authorize the
	// redemption, and the wrapper must cover the payout plus the fee it
	// routes to the revenue pool.
	if err := s.checkBalance(ctx, s.tokens.Principal, req.User, claimBurn); err != nil {
		writeServiceError(w, err)
		return
	}
	if quote.Early {
		if err := s.checkBalance(ctx, s.tokens.Yield, req.User, quote.YieldClaimBurn); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	if bal, err := s.tokens.Wrapper.Balance(ctx); err != nil || bal.LT(quote.Payout.Add(quote.Fee)) {
		writeServiceError(w, token.ErrInsufficientLiquidity)
		return
	}

	// Early exits settle the lock at now so a later partial redemption of
	// the same position is not penalized again.
	settledDeadline := pos.Deadline
	if quote.Early {
		settledDeadline = now
	}

	// Store commit first: the burns are infallible after the balance
	// prechecks above, while the store can fail. A failed commit must leave
	// the caller's claims untouched.
	entry := s.entry(req.PositionID, model.OpUnstake, req.User,
		principalShare, claimBurn.Neg(), quote.YieldClaimBurn.Neg(), quote.Fee)
	err = s.store.ApplyUnstake(ctx, store.UnstakeUpdate{
		PositionID:      req.PositionID,
		Close:           closing,
		SettledDeadline: settledDeadline,
		PrincipalDelta:  principalShare,
		ClaimDelta:      claimBurn,
	}, entry)
	if err != nil {
		writeError(w, "failed to record settlement", http.StatusInternalServerError)
		return
	}

	if err := s.tokens.Principal.Burn(ctx, req.User, claimBurn); err != nil {
		writeServiceError(w, err)
		return
	}
	if quote.Early && quote.YieldClaimBurn.IsPositive() {
		if err := s.tokens.Yield.Burn(ctx, req.User, quote.YieldClaimBurn); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	if quote.Payout.IsPositive() {
		if err := s.tokens.Wrapper.Withdraw(ctx, req.User, quote.Payout); err != nil {
			writeError(w, "payout failed", http.StatusInternalServerError)
			return
		}
	}
	if quote.Fee.IsPositive() {
		if err := s.tokens.Revenue.Collect(ctx, quote.Fee); err != nil {
			writeError(w, "fee routing failed", http.StatusInternalServerError)
			return
		}
	}

	timing := "on_time"
	if quote.Early {
		timing = "early"
	}
	metrics.UnstakesTotal.WithLabelValues(timing).Inc()
	metrics.SettlementLatency.WithLabelValues(timing).Observe(time.Since(started).Seconds())
	s.refreshGauges(ctx)

	slog.Info("unstake settled",
		"position_id", req.PositionID,
		"user", req.User,
		"principal", principalShare.String(),
		"payout", quote.Payout.String(),
		"fee", quote.Fee.String(),
		"yield_claim_burn", quote.YieldClaimBurn.String(),
		"early", quote.Early,
	)
	s.broadcast(WSMessage{
		Type:           "unstaked",
		PositionID:     req.PositionID,
		User:           req.User,
		Amount:         principalShare.String(),
		Payout:         quote.Payout.String(),
		Fee:            quote.Fee.String(),
		YieldClaimBurn: quote.YieldClaimBurn.String(),
	})

	writeJSON(w, http.StatusOK, UnstakeResponse{
		PositionID:     req.PositionID,
		Principal:      principalShare,
		Payout:         quote.Payout,
		Fee:            quote.Fee,
		YieldClaimBurn: quote.YieldClaimBurn,
		Early:          quote.Early,
		RemainingDays:  remain,
	})
}

// ExtendLock handles POST /api/v1/positions/{positionID}/extend.
// Pushes the deadline out and mints the yield claims covering the new days.
func (s *Service) ExtendLock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "positionID"), 10, 64)
	if err != nil {
		writeError(w, "invalid position id", http.StatusBadRequest)
		return
	}

	var req ExtendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.User == "" {
		writeError(w, "user is required", http.StatusBadRequest)
		return
	}
	if req.ExtendDays <= 0 {
		writeError(w, engine.ErrZeroInput.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.GetParams(ctx)
	if err != nil {
		writeError(w, "failed to load parameters", http.StatusInternalServerError)
		return
	}

	pos, err := s.store.GetPosition(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// Extending mints yield claims against the position's principal, so it
	// is owner-gated under both position models.
	if pos.Owner != req.User {
		writeServiceError(w, ErrPermissionDenied)
		return
	}
	if !pos.Open() {
		writeServiceError(w, ErrPositionClosed)
		return
	}

	now := s.now()
	newDeadline, err := lockup.Extend(now, pos.Deadline, req.ExtendDays, p.MinLockupDays, p.MaxLockupDays)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// The extra locked days earn like a fresh stake of the same principal.
	extraYield := pos.PrincipalAmount.MulRaw(req.ExtendDays)
	entry := s.entry(id, model.OpExtend, req.User, math.ZeroInt(), math.ZeroInt(), extraYield, math.ZeroInt())

	if err := s.store.ExtendPosition(ctx, id, newDeadline, entry); err != nil {
		writeError(w, "failed to extend position", http.StatusInternalServerError)
		return
	}
	if err := s.tokens.Yield.Mint(ctx, req.User, extraYield); err != nil {
		writeError(w, "yield claim mint failed", http.StatusInternalServerError)
		return
	}

	slog.Info("lock extended",
		"position_id", id,
		"user", req.User,
		"extend_days", req.ExtendDays,
		"new_deadline", newDeadline,
		"yield_claim_minted", extraYield.String(),
	)
	s.broadcast(WSMessage{Type: "lock_extended", PositionID: id, User: req.User})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"position_id":        id,
		"deadline":           newDeadline,
		"yield_claim_minted": extraYield,
	})
}

// WithdrawYield handles POST /api/v1/yield/withdraw.
// Burns yield claims for a pro-rata slice of the pooled yield.
func (s *Service) WithdrawYield(w http.ResponseWriter, r *http.Request) {
	var req WithdrawYieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.User == "" {
		writeError(w, "user is required", http.StatusBadRequest)
		return
	}
	if req.Amount.IsNil() || !req.Amount.IsPositive() {
		writeError(w, engine.ErrZeroInput.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkBalance(ctx, s.tokens.Yield, req.User, req.Amount); err != nil {
		writeServiceError(w, err)
		return
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		writeError(w, "failed to read pool state", http.StatusInternalServerError)
		return
	}

	yieldOut, err := s.accountant.YieldShare(req.Amount, snap)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Store commit before the burn, so a store failure leaves the caller's
	// yield claims untouched. The burn cannot fail after the balance check.
	if yieldOut.IsPositive() {
		entry := s.entry(0, model.OpYieldWithdraw, req.User, yieldOut, math.ZeroInt(), req.Amount.Neg(), math.ZeroInt())
		if err := s.store.SubtractYield(ctx, yieldOut, entry); err != nil {
			writeError(w, "failed to record withdrawal", http.StatusInternalServerError)
			return
		}
	}

	if err := s.tokens.Yield.Burn(ctx, req.User, req.Amount); err != nil {
		writeServiceError(w, err)
		return
	}

	if yieldOut.IsPositive() {
		if err := s.tokens.Wrapper.Withdraw(ctx, req.User, yieldOut); err != nil {
			writeError(w, "payout failed", http.StatusInternalServerError)
			return
		}
	}

	s.refreshGauges(ctx)
	slog.Info("yield withdrawn",
		"user", req.User,
		"yield_claim_burned", req.Amount.String(),
		"yield_paid", yieldOut.String(),
	)
	s.broadcast(WSMessage{Type: "yield_withdrawn", User: req.User, Amount: yieldOut.String()})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"yield_claim_burned": req.Amount,
		"yield_paid":         yieldOut,
	})
}

// AccrueYield handles POST /api/v1/yield/accrue.
// Restricted to the configured yield reporter; amounts are trusted as-is
// (accepted trust boundary — the reporter is the base-asset wrapper's
// off-chain agent, and a compromised reporter can inflate the pool).
func (s *Service) AccrueYield(w http.ResponseWriter, r *http.Request) {
	if s.reporterKey == "" || r.Header.Get("X-Reporter-Key") != s.reporterKey {
		writeServiceError(w, ErrPermissionDenied)
		return
	}

	var req AccrueYieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount.IsNil() || req.Amount.IsNegative() {
		writeError(w, engine.ErrZeroInput.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	s.mu.Lock()
	defer s.mu.Unlock()

	// Zero accruals are a silent no-op, not an error.
	if req.Amount.IsZero() {
		writeJSON(w, http.StatusOK, map[string]string{"accrued": "0"})
		return
	}

	entry := s.entry(0, model.OpYieldAccrue, "", req.Amount, math.ZeroInt(), math.ZeroInt(), math.ZeroInt())
	if err := s.store.AddYield(ctx, req.Amount, entry); err != nil {
		writeError(w, "failed to record accrual", http.StatusInternalServerError)
		return
	}

	s.refreshGauges(ctx)
	slog.Info("yield accrued", "amount", req.Amount.String())
	s.broadcast(WSMessage{Type: "yield_accrued", Amount: req.Amount.String()})

	writeJSON(w, http.StatusOK, map[string]interface{}{"accrued": req.Amount})
}

// GetPosition handles GET /api/v1/positions/{positionID}.
func (s *Service) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "positionID"), 10, 64)
	if err != nil {
		writeError(w, "invalid position id", http.StatusBadRequest)
		return
	}
	pos, err := s.store.GetPosition(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// ListPositions handles GET /api/v1/positions?owner=<addr>.
// Without an owner filter it returns all open positions.
func (s *Service) ListPositions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		positions []model.Position
		err       error
	)
	if owner := r.URL.Query().Get("owner"); owner != "" {
		positions, err = s.store.ListPositionsByOwner(ctx, owner)
	} else {
		positions, err = s.store.ListOpenPositions(ctx)
	}
	if err != nil {
		writeError(w, "failed to list positions", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []model.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

// GetPositionHistory handles GET /api/v1/positions/{positionID}/history.
func (s *Service) GetPositionHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "positionID"), 10, 64)
	if err != nil {
		writeError(w, "invalid position id", http.StatusBadRequest)
		return
	}
	entries, err := s.store.LedgerByPosition(r.Context(), id)
	if err != nil {
		writeError(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetUserHistory handles GET /api/v1/users/{user}/history.
func (s *Service) GetUserHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.LedgerByUser(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetPool handles GET /api/v1/pool.
func (s *Service) GetPool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := s.snapshot(ctx)
	if err != nil {
		writeError(w, "failed to read pool state", http.StatusInternalServerError)
		return
	}
	p, err := s.store.GetParams(ctx)
	if err != nil {
		writeError(w, "failed to load parameters", http.StatusInternalServerError)
		return
	}

	yieldPerClaim := decimal.Zero
	if snap.YieldSupply.IsPositive() {
		pool, _ := decimal.NewFromString(snap.TotalYieldPool.String())
		supply, _ := decimal.NewFromString(snap.YieldSupply.String())
		yieldPerClaim = pool.DivRound(supply, 18)
	}
	feePercent := decimal.NewFromInt(p.ForceUnstakeFeeRate).
		Div(decimal.NewFromInt(100)).Round(2)

	writeJSON(w, http.StatusOK, PoolResponse{
		TotalStaked:            snap.TotalStaked,
		TotalYieldPool:         snap.TotalYieldPool,
		PrincipalClaimSupply:   snap.ClaimSupply,
		YieldClaimSupply:       snap.YieldSupply,
		YieldPerClaim:          yieldPerClaim,
		ForceUnstakeFeePercent: feePercent,
	})
}

// GetParams handles GET /api/v1/params.
func (s *Service) GetParams(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetParams(r.Context())
	if err != nil {
		writeError(w, "failed to load parameters", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateParams handles PUT /api/v1/admin/params. Owner-gated; every field
// is range-checked and lockup bounds are cross-validated before the write.
func (s *Service) UpdateParams(w http.ResponseWriter, r *http.Request) {
	if s.adminKey == "" || r.Header.Get("X-Admin-Key") != s.adminKey {
		writeServiceError(w, ErrPermissionDenied)
		return
	}

	var upd params.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.GetParams(ctx)
	if err != nil {
		writeError(w, "failed to load parameters", http.StatusInternalServerError)
		return
	}
	next, err := current.Apply(upd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := s.store.SaveParams(ctx, next); err != nil {
		writeError(w, "failed to save parameters", http.StatusInternalServerError)
		return
	}

	slog.Info("params updated",
		"min_lockup_days", next.MinLockupDays,
		"max_lockup_days", next.MaxLockupDays,
		"force_unstake_fee_rate", next.ForceUnstakeFeeRate,
		"burned_yt_fee_rate", next.BurnedYTFeeRate,
		"min_stake", next.MinStake.String(),
	)
	s.broadcast(WSMessage{Type: "params_updated"})

	writeJSON(w, http.StatusOK, next)
}

// --- Internals ---

// snapshot assembles the pool totals and claim supplies the accountant
// prices against.
func (s *Service) snapshot(ctx context.Context) (engine.PoolSnapshot, error) {
	ps, err := s.store.GetPoolState(ctx)
	if err != nil {
		return engine.PoolSnapshot{}, err
	}
	claimSupply, err := s.tokens.Principal.TotalSupply(ctx)
	if err != nil {
		return engine.PoolSnapshot{}, err
	}
	yieldSupply, err := s.tokens.Yield.TotalSupply(ctx)
	if err != nil {
		return engine.PoolSnapshot{}, err
	}
	return engine.PoolSnapshot{
		TotalStaked:    ps.TotalStaked,
		TotalYieldPool: ps.TotalYieldPool,
		ClaimSupply:    claimSupply,
		YieldSupply:    yieldSupply,
	}, nil
}

func (s *Service) checkBalance(ctx context.Context, t token.ClaimToken, holder string, amount math.Int) error {
	bal, err := t.BalanceOf(ctx, holder)
	if err != nil {
		return err
	}
	if bal.LT(amount) {
		return token.ErrInsufficientBalance
	}
	return nil
}

func (s *Service) entry(positionID uint64, op, user string, amount, claimDelta, yieldDelta, fee math.Int) *model.LedgerEntry {
	return &model.LedgerEntry{
		ID:         uuid.New().String(),
		PositionID: positionID,
		Op:         op,
		User:       user,
		Amount:     amount,
		ClaimDelta: claimDelta,
		YieldDelta: yieldDelta,
		Fee:        fee,
		Timestamp:  s.now(),
	}
}

func (s *Service) refreshGauges(ctx context.Context) {
	ps, err := s.store.GetPoolState(ctx)
	if err != nil {
		return
	}
	metrics.TotalStaked.Set(intGauge(ps.TotalStaked))
	metrics.YieldPool.Set(intGauge(ps.TotalYieldPool))
	if open, err := s.store.ListOpenPositions(ctx); err == nil {
		metrics.OpenPositions.Set(float64(len(open)))
	}
}

func (s *Service) broadcast(msg WSMessage) {
	if s.wsHub != nil {
		s.wsHub.Broadcast(msg)
	}
}

// intGauge converts a ledger amount to a float for dashboards. Precision
// loss is fine here; the ledger itself never leaves integer space.
func intGauge(v math.Int) float64 {
	f, _ := new(big.Float).SetInt(v.BigInt()).Float64()
	return f
}

// writeServiceError maps sentinel errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrZeroInput),
		errors.Is(err, engine.ErrDilutedIssuance),
		errors.Is(err, lockup.ErrInvalidLockupDays),
		errors.Is(err, lockup.ErrInvalidExtendDays),
		errors.Is(err, params.ErrFeeRateOverflow),
		errors.Is(err, params.ErrInvalidLockupBounds),
		errors.Is(err, params.ErrInvalidMinStake),
		errors.Is(err, ErrMinStakeInsufficient):
		return http.StatusBadRequest
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, store.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPositionClosed),
		errors.Is(err, lockup.ErrReachedDeadline),
		errors.Is(err, engine.ErrShareExceedsClaim),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientLiquidity):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
