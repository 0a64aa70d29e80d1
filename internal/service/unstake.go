package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flarexfi/flarestake/internal/crypto"
	"github.com/flarexfi/flarestake/internal/domain"
	"github.com/flarexfi/flarestake/internal/memo"
	"github.com/flarexfi/flarestake/internal/platform/xrpl"
)

// earlyUnstakePenaltyPct is the percentage withheld when a position is
// withdrawn before its term ends.
const earlyUnstakePenaltyPct = 5.0

// unstakeLockTTL bounds how long a stuck unstake can block retries for the
// same position. Normal processing finishes well inside it.
const unstakeLockTTL = 5 * time.Minute

// ledgerBuffer is how many ledgers past the current one a payout stays
// valid for.
const ledgerBuffer = 20

// UnstakeLedger is the slice of the XRPL client the processor needs.
type UnstakeLedger interface {
	AccountInfo(ctx context.Context, account string) (xrpl.AccountInfo, error)
	FeeDrops(ctx context.Context) (int64, error)
	LedgerCurrent(ctx context.Context) (uint32, error)
	SubmitAndWait(ctx context.Context, blob []byte, hash string, lastLedgerSequence uint32) error
}

// UnstakeService processes withdrawal requests: it verifies the position on
// the ledger, computes the early-withdrawal penalty, signs a payout from
// the custodial pool wallet carrying a close memo, and submits it. A
// distributed lock per stake ID guarantees one in-flight request per
// position.
type UnstakeService struct {
	ledger     UnstakeLedger
	reconciler *Reconciler
	requests   domain.UnstakeRequestStore
	positions  domain.PositionStore
	locks      domain.LockManager
	wallet     *crypto.Wallet
	bus        domain.SignalBus
	audit      domain.AuditStore
	notify     Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewUnstakeService creates an UnstakeService signing with the given pool
// wallet.
func NewUnstakeService(
	ledger UnstakeLedger,
	reconciler *Reconciler,
	requests domain.UnstakeRequestStore,
	positions domain.PositionStore,
	locks domain.LockManager,
	wallet *crypto.Wallet,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notify Notifier,
	logger *slog.Logger,
) *UnstakeService {
	return &UnstakeService{
		ledger:     ledger,
		reconciler: reconciler,
		requests:   requests,
		positions:  positions,
		locks:      locks,
		wallet:     wallet,
		bus:        bus,
		audit:      audit,
		notify:     notify,
		logger:     logger.With(slog.String("component", "unstake")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// UnstakeInput identifies the position to withdraw.
type UnstakeInput struct {
	Owner   string
	StakeID string
	// Auto marks processor-initiated withdrawals at term end, which carry
	// the auto-unstake memo type and never apply a penalty.
	Auto bool
}

// newRequestID derives a request identifier from the owner, stake and
// request instant.
func newRequestID(owner, stakeID string, at time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", owner, stakeID, at.UnixMilli())))
	return hex.EncodeToString(sum[:])
}

// penalize splits an amount into the returned portion and the penalty for
// an early withdrawal. Late withdrawals return the full amount.
func penalize(amount float64, early bool) (returned, penalty float64) {
	if !early {
		return amount, 0
	}
	penalty = amount * earlyUnstakePenaltyPct / 100
	return amount - penalty, penalty
}

// Unstake runs a withdrawal end to end. Terminal outcomes are recorded in
// the request store either way; a ledger-rejected payout leaves the
// position active so the owner can retry.
func (s *UnstakeService) Unstake(ctx context.Context, in UnstakeInput) (domain.UnstakeRequest, error) {
	if in.Owner == "" || in.StakeID == "" {
		return domain.UnstakeRequest{}, fmt.Errorf("unstake: owner and stake ID are required: %w", domain.ErrInvalidRequest)
	}

	unlock, err := s.locks.Acquire(ctx, "unstake:"+in.StakeID, unstakeLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.UnstakeRequest{}, domain.ErrUnstakeInFlight
		}
		return domain.UnstakeRequest{}, fmt.Errorf("unstake: lock %s: %w", in.StakeID, err)
	}
	defer unlock()

	pos, err := s.reconciler.FindStake(ctx, in.Owner, in.StakeID)
	if err != nil {
		return domain.UnstakeRequest{}, fmt.Errorf("unstake: find stake %s: %w", in.StakeID, err)
	}
	if !pos.IsActive() {
		return domain.UnstakeRequest{}, domain.ErrStakeNotActive
	}

	now := s.now()
	req := domain.UnstakeRequest{
		RequestID: newRequestID(in.Owner, in.StakeID, now),
		StakeID:   in.StakeID,
		Owner:     in.Owner,
		Amount:    pos.Amount,
		Status:    domain.UnstakeStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.requests.Put(ctx, req); err != nil {
		return domain.UnstakeRequest{}, fmt.Errorf("unstake: record request %s: %w", req.RequestID, err)
	}

	result, err := s.process(ctx, pos, in.Auto)
	req.UpdatedAt = s.now()
	if err != nil {
		req.Status = domain.UnstakeStatusFailed
		req.Error = err.Error()
		if putErr := s.requests.Put(ctx, req); putErr != nil {
			s.logger.ErrorContext(ctx, "failure state persist failed",
				slog.String("request_id", req.RequestID),
				slog.String("error", putErr.Error()),
			)
		}
		s.afterUnstake(ctx, req, pos)
		return req, err
	}

	req.Status = domain.UnstakeStatusCompleted
	req.TxHash = result.TxHash
	req.Result = &result
	if putErr := s.requests.Put(ctx, req); putErr != nil {
		s.logger.ErrorContext(ctx, "completion state persist failed",
			slog.String("request_id", req.RequestID),
			slog.String("error", putErr.Error()),
		)
	}

	// The close event is on the ledger now; mirror it in the snapshot
	// without waiting for the next reconcile.
	pos.Status = domain.PositionStatusClosed
	if upErr := s.positions.Upsert(ctx, pos); upErr != nil {
		s.logger.WarnContext(ctx, "snapshot close failed",
			slog.String("stake_id", pos.ID),
			slog.String("error", upErr.Error()),
		)
	}

	s.afterUnstake(ctx, req, pos)
	return req, nil
}

// process builds, signs, and submits the payout. The submission phase runs
// on a detached context: once a signed blob may have reached the ledger,
// abandoning the confirmation wait would leave the outcome unknown.
func (s *UnstakeService) process(ctx context.Context, pos domain.StakePosition, auto bool) (domain.UnstakeResult, error) {
	now := s.now()
	early := now.Before(pos.EndDate) && !auto
	returned, penalty := penalize(pos.Amount, early)

	memoType := memo.TypeUnstaking
	if auto {
		memoType = memo.TypeAutoUnstake
	}
	pct := 0.0
	if early {
		pct = earlyUnstakePenaltyPct
	}
	closeMemo, err := memo.Encode(memoType, memo.ClosePayload{
		Action:            memo.ActionUnstakeProcessed,
		PositionID:        pos.ID,
		OriginalAmount:    pos.Amount,
		ReturnedAmount:    returned,
		PenaltyApplied:    early,
		PenaltyPercentage: pct,
		PenaltyAmount:     penalty,
		IsEarlyUnstake:    early,
		StakeEndDate:      pos.EndDate.Format(time.RFC3339),
		Timestamp:         now.UnixMilli(),
		Version:           "1.0",
	})
	if err != nil {
		return domain.UnstakeResult{}, fmt.Errorf("unstake: encode close memo: %w", err)
	}

	info, err := s.ledger.AccountInfo(ctx, s.wallet.Address())
	if err != nil {
		return domain.UnstakeResult{}, fmt.Errorf("unstake: pool account info: %w", err)
	}
	fee, err := s.ledger.FeeDrops(ctx)
	if err != nil {
		return domain.UnstakeResult{}, fmt.Errorf("unstake: fee: %w", err)
	}
	current, err := s.ledger.LedgerCurrent(ctx)
	if err != nil {
		return domain.UnstakeResult{}, fmt.Errorf("unstake: current ledger: %w", err)
	}

	payment := xrpl.Payment{
		Account:            s.wallet.Address(),
		Destination:        pos.Owner,
		AmountDrops:        int64(returned * xrpl.DropsPerXRP),
		FeeDrops:           fee,
		Sequence:           info.Sequence,
		LastLedgerSequence: current + ledgerBuffer,
		Memos:              []xrpl.Memo{closeMemo},
		SigningPubKey:      s.wallet.PublicKey(),
	}

	signingData, err := payment.SigningData()
	if err != nil {
		return domain.UnstakeResult{}, fmt.Errorf("unstake: %w: %w", domain.ErrSigningFailed, err)
	}
	payment.TxnSignature = s.wallet.Sign(signingData)

	blob, err := payment.Blob()
	if err != nil {
		return domain.UnstakeResult{}, fmt.Errorf("unstake: %w: %w", domain.ErrSigningFailed, err)
	}
	hash, err := payment.Hash()
	if err != nil {
		return domain.UnstakeResult{}, fmt.Errorf("unstake: %w: %w", domain.ErrSigningFailed, err)
	}

	// Detach from the caller's cancellation for the submit window.
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()
	if err := s.ledger.SubmitAndWait(submitCtx, blob, hash, payment.LastLedgerSequence); err != nil {
		return domain.UnstakeResult{}, fmt.Errorf("unstake: submit payout: %w", err)
	}

	message := "Unstake processed, full amount returned"
	if early {
		message = fmt.Sprintf("Early unstake processed, %.1f%% penalty applied", earlyUnstakePenaltyPct)
	}
	return domain.UnstakeResult{
		TxHash:            hash,
		OriginalAmount:    pos.Amount,
		AmountReturned:    returned,
		PenaltyApplied:    early,
		PenaltyPercentage: pct,
		PenaltyAmount:     penalty,
		IsEarlyUnstake:    early,
		Message:           message,
	}, nil
}

// afterUnstake fans out the terminal state: audit row, bus event, operator
// notification. All best-effort.
func (s *UnstakeService) afterUnstake(ctx context.Context, req domain.UnstakeRequest, pos domain.StakePosition) {
	detail := map[string]any{
		"request_id": req.RequestID,
		"stake_id":   req.StakeID,
		"owner":      req.Owner,
		"amount":     req.Amount,
		"status":     string(req.Status),
		"tx_hash":    req.TxHash,
	}
	if req.Error != "" {
		detail["error"] = req.Error
	}
	if err := s.audit.Log(ctx, "unstake_"+string(req.Status), detail); err != nil {
		s.logger.WarnContext(ctx, "unstake audit log failed",
			slog.String("request_id", req.RequestID),
			slog.String("error", err.Error()),
		)
	}

	evt, _ := json.Marshal(map[string]any{
		"event":     "unstake_" + string(req.Status),
		"requestId": req.RequestID,
		"stakeId":   req.StakeID,
		"owner":     req.Owner,
		"txHash":    req.TxHash,
	})
	if err := s.bus.Publish(ctx, "unstakes", evt); err != nil {
		s.logger.WarnContext(ctx, "unstake event publish failed",
			slog.String("request_id", req.RequestID),
			slog.String("error", err.Error()),
		)
	}

	title := "Unstake completed"
	body := fmt.Sprintf("stake %s, owner %s, %.6f XRP", req.StakeID, req.Owner, req.Amount)
	if req.Status == domain.UnstakeStatusFailed {
		title = "Unstake FAILED"
		body += ", error: " + req.Error
	}
	if err := s.notify.Notify(ctx, "unstake_"+string(req.Status), title, body); err != nil {
		s.logger.WarnContext(ctx, "unstake notification failed",
			slog.String("request_id", req.RequestID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "unstake finished",
		slog.String("request_id", req.RequestID),
		slog.String("stake_id", req.StakeID),
		slog.String("owner", req.Owner),
		slog.String("status", string(req.Status)),
		slog.String("tx_hash", req.TxHash),
	)
}

// Status returns the recorded state of the latest request for a stake.
func (s *UnstakeService) Status(ctx context.Context, stakeID string) (domain.UnstakeRequest, error) {
	req, err := s.requests.GetByStakeID(ctx, stakeID)
	if err != nil {
		return domain.UnstakeRequest{}, fmt.Errorf("unstake: status of %s: %w", stakeID, err)
	}
	return req, nil
}

// ProcessMatured withdraws every active position past its end date,
// processor-initiated. Called by the recurring updater; failures on one
// position never stop the sweep.
func (s *UnstakeService) ProcessMatured(ctx context.Context) int {
	positions, err := s.reconciler.AllActivePositions(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "matured sweep scan failed",
			slog.String("error", err.Error()),
		)
		return 0
	}

	now := s.now()
	processed := 0
	for _, pos := range positions {
		if now.Before(pos.EndDate) {
			continue
		}
		_, err := s.Unstake(ctx, UnstakeInput{Owner: pos.Owner, StakeID: pos.ID, Auto: true})
		if err != nil {
			if errors.Is(err, domain.ErrUnstakeInFlight) {
				continue
			}
			s.logger.WarnContext(ctx, "auto unstake failed",
				slog.String("stake_id", pos.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		processed++
	}
	return processed
}
