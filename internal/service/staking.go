package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flarexfi/flarestake/internal/domain"
	"github.com/flarexfi/flarestake/internal/memo"
	"github.com/flarexfi/flarestake/internal/platform/xrpl"
)

// minStakeXRP is the smallest accepted stake.
const minStakeXRP = 1.0

// StakingService prepares stake intents. The user funds the stake from
// their own wallet, so the service never signs here: it validates the
// request, records a pending intent, and hands back an unsigned payment to
// the pool address carrying the open memo for the user's wallet to sign.
type StakingService struct {
	positions   domain.PositionStore
	pools       *domain.PoolCatalog
	poolAddress string
	bus         domain.SignalBus
	audit       domain.AuditStore
	logger      *slog.Logger
	now         func() time.Time
}

// NewStakingService creates a StakingService.
func NewStakingService(
	positions domain.PositionStore,
	pools *domain.PoolCatalog,
	poolAddress string,
	bus domain.SignalBus,
	audit domain.AuditStore,
	logger *slog.Logger,
) *StakingService {
	return &StakingService{
		positions:   positions,
		pools:       pools,
		poolAddress: poolAddress,
		bus:         bus,
		audit:       audit,
		logger:      logger.With(slog.String("component", "staking")),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// StakeInput is a request to open a stake.
type StakeInput struct {
	Owner  string
	PoolID string
	Amount float64
}

// StakeIntent is the prepared, not-yet-signed stake.
type StakeIntent struct {
	IntentID  string               `json:"intentId"`
	Payment   xrpl.UnsignedPayment `json:"payment"`
	Pool      domain.Pool          `json:"pool"`
	Amount    float64              `json:"amount"`
	StartDate time.Time            `json:"startDate"`
	EndDate   time.Time            `json:"endDate"`
}

// Prepare validates the request against the pool catalog, records a
// pending_signature position, and returns the unsigned payment. The intent
// becomes an active position only when the signed payment is observed on
// the ledger.
func (s *StakingService) Prepare(ctx context.Context, in StakeInput) (StakeIntent, error) {
	if in.Owner == "" {
		return StakeIntent{}, fmt.Errorf("staking: owner is required: %w", domain.ErrInvalidRequest)
	}
	if in.Amount < minStakeXRP {
		return StakeIntent{}, fmt.Errorf("staking: amount %.6f below minimum %.0f XRP: %w", in.Amount, minStakeXRP, domain.ErrInvalidRequest)
	}
	pool, ok := s.pools.Get(in.PoolID)
	if !ok {
		return StakeIntent{}, fmt.Errorf("staking: pool %q: %w", in.PoolID, domain.ErrUnknownPool)
	}

	now := s.now()
	end := now.Add(time.Duration(pool.LockPeriodDays) * 24 * time.Hour)
	intentID := uuid.New().String()

	openMemo, err := memo.Encode(memo.TypeStaking, memo.OpenPayload{
		Action:     memo.ActionOpenPosition,
		PositionID: intentID,
		PoolID:     pool.ID,
		PoolName:   pool.Name,
		Amount:     in.Amount,
		LockPeriod: pool.LockPeriodDays,
		APY:        pool.APY,
		RewardRate: pool.APY,
		StartDate:  now.Format(time.RFC3339),
		EndDate:    end.Format(time.RFC3339),
		Version:    "1.0",
	})
	if err != nil {
		return StakeIntent{}, fmt.Errorf("staking: encode open memo: %w", err)
	}

	pos := domain.StakePosition{
		ID:             intentID,
		Owner:          in.Owner,
		PoolID:         pool.ID,
		PoolName:       pool.Name,
		Amount:         in.Amount,
		LockPeriodDays: pool.LockPeriodDays,
		APY:            pool.APY,
		StartDate:      now,
		EndDate:        end,
		Status:         domain.PositionStatusPendingSignature,
	}
	if err := s.positions.Upsert(ctx, pos); err != nil {
		return StakeIntent{}, fmt.Errorf("staking: record intent %s: %w", intentID, err)
	}

	if err := s.audit.Log(ctx, "stake_prepared", map[string]any{
		"intent_id": intentID,
		"owner":     in.Owner,
		"pool_id":   pool.ID,
		"amount":    in.Amount,
	}); err != nil {
		s.logger.WarnContext(ctx, "stake audit log failed",
			slog.String("intent_id", intentID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "stake intent prepared",
		slog.String("intent_id", intentID),
		slog.String("owner", in.Owner),
		slog.String("pool_id", pool.ID),
		slog.Float64("amount", in.Amount),
	)

	return StakeIntent{
		IntentID:  intentID,
		Payment:   xrpl.NewUnsignedPayment(s.poolAddress, in.Amount, openMemo),
		Pool:      pool,
		Amount:    in.Amount,
		StartDate: now,
		EndDate:   end,
	}, nil
}

// IntentStatus reports where an intent is in its lifecycle: pending until
// the signed payment appears on the ledger, active after, absent when
// abandoned.
func (s *StakingService) IntentStatus(ctx context.Context, intentID string) (domain.StakePosition, error) {
	pos, err := s.positions.GetByID(ctx, intentID)
	if err != nil {
		return domain.StakePosition{}, fmt.Errorf("staking: intent %s: %w", intentID, err)
	}
	return pos, nil
}

// ConfirmIntents promotes pending intents that have since appeared on the
// ledger. Called after a reconcile pass; activated counts the promotions.
func (s *StakingService) ConfirmIntents(ctx context.Context, owner string, active []domain.StakePosition) int {
	stored, err := s.positions.ListByOwner(ctx, owner)
	if err != nil {
		s.logger.WarnContext(ctx, "intent confirmation scan failed",
			slog.String("owner", owner),
			slog.String("error", err.Error()),
		)
		return 0
	}

	onLedger := make(map[string]domain.StakePosition, len(active))
	for _, pos := range active {
		onLedger[pos.ID] = pos
	}

	activated := 0
	for _, pos := range stored {
		if pos.Status != domain.PositionStatusPendingSignature {
			continue
		}
		ledgerPos, ok := onLedger[pos.ID]
		if !ok {
			continue
		}
		if err := s.positions.Upsert(ctx, ledgerPos); err != nil {
			s.logger.WarnContext(ctx, "intent promotion failed",
				slog.String("intent_id", pos.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		activated++

		evt, _ := json.Marshal(map[string]any{
			"event":    "position_opened",
			"stakeId":  ledgerPos.ID,
			"owner":    ledgerPos.Owner,
			"poolId":   ledgerPos.PoolID,
			"amount":   ledgerPos.Amount,
			"txHash":   ledgerPos.SourceTxHash,
		})
		if pubErr := s.bus.Publish(ctx, "positions", evt); pubErr != nil {
			s.logger.WarnContext(ctx, "position event publish failed",
				slog.String("stake_id", ledgerPos.ID),
				slog.String("error", pubErr.Error()),
			)
		}
	}
	return activated
}

// Abandon drops a pending intent that will never be signed. Active
// positions cannot be abandoned.
func (s *StakingService) Abandon(ctx context.Context, intentID string) error {
	pos, err := s.positions.GetByID(ctx, intentID)
	if err != nil {
		return fmt.Errorf("staking: abandon %s: %w", intentID, err)
	}
	if pos.Status != domain.PositionStatusPendingSignature {
		return fmt.Errorf("staking: abandon %s: %w", intentID, domain.ErrInvalidRequest)
	}
	if err := s.positions.Delete(ctx, intentID); err != nil {
		return fmt.Errorf("staking: abandon %s: %w", intentID, err)
	}
	return nil
}
