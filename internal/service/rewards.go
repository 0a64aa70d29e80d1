package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flarexfi/flarestake/internal/domain"
)

// secondsPerYear is the accrual year basis: 365 days, no leap handling.
const secondsPerYear = 365 * 24 * 60 * 60

// FlarePayer is the slice of the Flare client the claim path needs.
type FlarePayer interface {
	SendReward(ctx context.Context, recipient string, amount float64) (string, error)
}

// RewardsService computes reward accrual over active positions and settles
// claims with FLR payouts.
type RewardsService struct {
	reconciler *Reconciler
	rewards    domain.RewardStore
	cache      domain.RewardCache
	flare      FlarePayer
	bus        domain.SignalBus
	audit      domain.AuditStore
	notify     Notifier
	logger     *slog.Logger
	now        func() time.Time

	// claimMu serializes claims per owner so two concurrent claims cannot
	// both read the same available balance.
	claimMu keyedMutex
}

// NewRewardsService creates a RewardsService.
func NewRewardsService(
	reconciler *Reconciler,
	rewards domain.RewardStore,
	cache domain.RewardCache,
	flare FlarePayer,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notify Notifier,
	logger *slog.Logger,
) *RewardsService {
	return &RewardsService{
		reconciler: reconciler,
		rewards:    rewards,
		cache:      cache,
		flare:      flare,
		bus:        bus,
		audit:      audit,
		notify:     notify,
		logger:     logger.With(slog.String("component", "rewards")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// accrued returns the reward earned by one position over the interval from
// effectiveStart to now, both clamped to the position's term. A claim
// checkpoint after the term end yields zero.
func accrued(pos domain.StakePosition, lastClaim *time.Time, now time.Time) float64 {
	start := pos.StartDate
	if lastClaim != nil && !lastClaim.Before(start) {
		start = *lastClaim
	}
	end := now
	if end.After(pos.EndDate) {
		end = pos.EndDate
	}
	if !end.After(start) {
		return 0
	}
	elapsed := end.Sub(start).Seconds()
	return pos.Amount * (pos.APY / 100) * (elapsed / secondsPerYear)
}

// termTotal returns the reward the position will have earned at the end of
// its full term.
func termTotal(pos domain.StakePosition) float64 {
	termSeconds := pos.EndDate.Sub(pos.StartDate).Seconds()
	return pos.Amount * (pos.APY / 100) * (termSeconds / secondsPerYear)
}

// ComputeRewards derives the owner's reward figures from their active
// positions. Available accrues from the later of position start and the
// owner's last claim; Pending is the projected term total net of lifetime
// claims spread evenly across active positions, floored at zero per
// position.
func ComputeRewards(positions []domain.StakePosition, lastClaim *time.Time, claimed float64, now time.Time) domain.RewardFigures {
	var fig domain.RewardFigures
	active := 0
	for _, pos := range positions {
		if pos.IsActive() {
			active++
		}
	}
	if active == 0 {
		return fig
	}

	claimShare := claimed / float64(active)
	for _, pos := range positions {
		if !pos.IsActive() {
			continue
		}
		fig.Available += accrued(pos, lastClaim, now)
		if pending := termTotal(pos) - claimShare; pending > 0 {
			fig.Pending += pending
		}
	}
	return fig
}

// Rewards returns the owner's current reward state, recomputed against the
// ledger. On a ledger outage the cached snapshot is served; a cache miss on
// top of an outage is an error.
func (s *RewardsService) Rewards(ctx context.Context, owner string) (domain.RewardLedgerEntry, error) {
	positions, err := s.reconciler.ActivePositions(ctx, owner)
	if err != nil {
		cached, cacheErr := s.cache.Get(ctx, owner)
		if cacheErr == nil {
			return cached, nil
		}
		return domain.RewardLedgerEntry{}, fmt.Errorf("rewards: compute for %s: %w", owner, err)
	}
	return s.Refresh(ctx, owner, positions)
}

// Refresh recomputes the owner's figures over the given positions, persists
// them, and updates the cache. The recurring updater calls this on its
// interval.
func (s *RewardsService) Refresh(ctx context.Context, owner string, positions []domain.StakePosition) (domain.RewardLedgerEntry, error) {
	entry, err := s.rewards.Get(ctx, owner)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.RewardLedgerEntry{}, fmt.Errorf("rewards: load ledger for %s: %w", owner, err)
		}
		entry = domain.RewardLedgerEntry{Owner: owner}
	}

	lastClaim, err := s.rewards.LastClaimTime(ctx, owner)
	if err != nil {
		return domain.RewardLedgerEntry{}, fmt.Errorf("rewards: last claim for %s: %w", owner, err)
	}

	fig := ComputeRewards(positions, lastClaim, entry.Claimed, s.now())
	entry.Available = fig.Available
	entry.Pending = fig.Pending
	entry.UpdatedAt = s.now()

	if err := s.rewards.Put(ctx, entry); err != nil {
		return domain.RewardLedgerEntry{}, fmt.Errorf("rewards: persist ledger for %s: %w", owner, err)
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "reward cache update failed",
			slog.String("owner", owner),
			slog.String("error", err.Error()),
		)
	}
	return entry, nil
}

// ClaimRequest is the input to Claim.
type ClaimRequest struct {
	Owner         string
	PayoutAddress string
}

// Claim settles the owner's entire available balance: the balance is zeroed
// and the claim recorded before the payout is attempted, and a payout
// failure is recorded in the history without restoring the balance. The
// accrual clock restarts at the claim either way.
func (s *RewardsService) Claim(ctx context.Context, req ClaimRequest) (domain.ClaimRecord, error) {
	if req.Owner == "" || req.PayoutAddress == "" {
		return domain.ClaimRecord{}, fmt.Errorf("rewards: claim: owner and payout address are required: %w", domain.ErrInvalidRequest)
	}

	unlock := s.claimMu.lock(req.Owner)
	defer unlock()

	entry, err := s.Rewards(ctx, req.Owner)
	if err != nil {
		return domain.ClaimRecord{}, err
	}
	if entry.Available <= 0 {
		return domain.ClaimRecord{}, domain.ErrNoRewards
	}

	now := s.now()
	amount := entry.Available
	record := domain.ClaimRecord{
		ID:            fmt.Sprintf("claim-%d", now.UnixMilli()),
		Amount:        amount,
		Timestamp:     now,
		Status:        domain.ClaimStatusConfirmed,
		PayoutAddress: req.PayoutAddress,
	}

	// Settle the ledger before attempting payout so a crash mid-payout can
	// never double-pay.
	entry.Available = 0
	entry.Claimed += amount
	entry.History = append([]domain.ClaimRecord{record}, entry.History...)
	entry.UpdatedAt = now

	if err := s.rewards.Put(ctx, entry); err != nil {
		return domain.ClaimRecord{}, fmt.Errorf("rewards: settle claim for %s: %w", req.Owner, err)
	}
	if err := s.rewards.SetLastClaimTime(ctx, req.Owner, now); err != nil {
		return domain.ClaimRecord{}, fmt.Errorf("rewards: checkpoint claim for %s: %w", req.Owner, err)
	}
	if err := s.cache.Invalidate(ctx, req.Owner); err != nil {
		s.logger.WarnContext(ctx, "reward cache invalidate failed",
			slog.String("owner", req.Owner),
			slog.String("error", err.Error()),
		)
	}

	txHash, payErr := s.flare.SendReward(ctx, req.PayoutAddress, amount)
	record.TxHash = txHash
	if payErr != nil {
		record.Status = domain.ClaimStatusFailed
		record.Error = payErr.Error()
		s.logger.ErrorContext(ctx, "claim payout failed",
			slog.String("owner", req.Owner),
			slog.Float64("amount", amount),
			slog.String("error", payErr.Error()),
		)
		if nErr := s.notify.Notify(ctx, "claim_failed", "Claim payout failed",
			fmt.Sprintf("owner %s, %.6f FLR: %v", req.Owner, amount, payErr)); nErr != nil {
			s.logger.WarnContext(ctx, "claim failure notification failed",
				slog.String("error", nErr.Error()),
			)
		}
	}

	// Rewrite the head record with the payout outcome.
	entry.History[0] = record
	if err := s.rewards.Put(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "claim outcome persist failed",
			slog.String("owner", req.Owner),
			slog.String("error", err.Error()),
		)
	}

	if err := s.audit.Log(ctx, "reward_claimed", map[string]any{
		"owner":          req.Owner,
		"amount":         amount,
		"payout_address": req.PayoutAddress,
		"tx_hash":        txHash,
		"status":         string(record.Status),
	}); err != nil {
		s.logger.WarnContext(ctx, "claim audit log failed",
			slog.String("owner", req.Owner),
			slog.String("error", err.Error()),
		)
	}

	evt, _ := json.Marshal(map[string]any{
		"event":  "reward_claimed",
		"owner":  req.Owner,
		"amount": amount,
		"status": string(record.Status),
		"txHash": txHash,
	})
	if pubErr := s.bus.Publish(ctx, "rewards", evt); pubErr != nil {
		s.logger.WarnContext(ctx, "claim event publish failed",
			slog.String("owner", req.Owner),
			slog.String("error", pubErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "claim settled",
		slog.String("owner", req.Owner),
		slog.Float64("amount", amount),
		slog.String("status", string(record.Status)),
		slog.String("tx_hash", txHash),
	)
	return record, nil
}
