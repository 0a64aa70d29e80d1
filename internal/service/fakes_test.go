package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/flarexfi/flarestake/internal/domain"
	"github.com/flarexfi/flarestake/internal/memo"
	"github.com/flarexfi/flarestake/internal/platform/xrpl"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLedger serves canned account_tx histories.
type fakeLedger struct {
	mu      sync.Mutex
	entries map[string][]xrpl.TxEntry
	err     error
}

func (f *fakeLedger) AccountTx(_ context.Context, account string, _ int) ([]xrpl.TxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[account], nil
}

// memPositions is an in-memory domain.PositionStore.
type memPositions struct {
	mu   sync.Mutex
	byID map[string]domain.StakePosition

	replaceErr error
	listErr    error
}

func newMemPositions() *memPositions {
	return &memPositions{byID: make(map[string]domain.StakePosition)}
}

func (m *memPositions) ReplaceForOwner(_ context.Context, owner string, positions []domain.StakePosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	for id, pos := range m.byID {
		if pos.Owner == owner && pos.Status != domain.PositionStatusPendingSignature {
			delete(m.byID, id)
		}
	}
	for _, pos := range positions {
		if prev, ok := m.byID[pos.ID]; ok && prev.Status == domain.PositionStatusPendingSignature {
			continue
		}
		m.byID[pos.ID] = pos
	}
	return nil
}

func (m *memPositions) Upsert(_ context.Context, pos domain.StakePosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[pos.ID] = pos
	return nil
}

func (m *memPositions) GetByID(_ context.Context, id string) (domain.StakePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.byID[id]
	if !ok {
		return domain.StakePosition{}, domain.ErrNotFound
	}
	return pos, nil
}

func (m *memPositions) ListByOwner(_ context.Context, owner string) ([]domain.StakePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StakePosition
	for _, pos := range m.byID {
		if pos.Owner == owner {
			out = append(out, pos)
		}
	}
	return out, nil
}

func (m *memPositions) ListActive(_ context.Context, owner string) ([]domain.StakePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.StakePosition
	for _, pos := range m.byID {
		if pos.Owner == owner && pos.IsActive() {
			out = append(out, pos)
		}
	}
	return out, nil
}

func (m *memPositions) Owners(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	for _, pos := range m.byID {
		seen[pos.Owner] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for owner := range seen {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memPositions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// memRewards is an in-memory domain.RewardStore.
type memRewards struct {
	mu        sync.Mutex
	entries   map[string]domain.RewardLedgerEntry
	lastClaim map[string]time.Time
}

func newMemRewards() *memRewards {
	return &memRewards{
		entries:   make(map[string]domain.RewardLedgerEntry),
		lastClaim: make(map[string]time.Time),
	}
}

func (m *memRewards) Get(_ context.Context, owner string) (domain.RewardLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[owner]
	if !ok {
		return domain.RewardLedgerEntry{}, domain.ErrNotFound
	}
	return entry, nil
}

func (m *memRewards) Put(_ context.Context, entry domain.RewardLedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Owner] = entry
	return nil
}

func (m *memRewards) LastClaimTime(_ context.Context, owner string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.lastClaim[owner]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memRewards) SetLastClaimTime(_ context.Context, owner string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastClaim[owner] = t
	return nil
}

func (m *memRewards) List(_ context.Context) ([]domain.RewardLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RewardLedgerEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry)
	}
	return out, nil
}

// memCache is an in-memory domain.RewardCache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]domain.RewardLedgerEntry
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]domain.RewardLedgerEntry)}
}

func (m *memCache) Set(_ context.Context, entry domain.RewardLedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Owner] = entry
	return nil
}

func (m *memCache) Get(_ context.Context, owner string) (domain.RewardLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[owner]
	if !ok {
		return domain.RewardLedgerEntry{}, domain.ErrNotFound
	}
	return entry, nil
}

func (m *memCache) Invalidate(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, owner)
	return nil
}

// memLocks is an in-memory domain.LockManager.
type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[string]bool)}
}

func (m *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, domain.ErrLockHeld
	}
	m.held[key] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
	}, nil
}

// memBus records published events.
type memBus struct {
	mu        sync.Mutex
	published []busEvent
}

type busEvent struct {
	channel string
	payload []byte
}

func (m *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, busEvent{channel: channel, payload: payload})
	return nil
}

func (m *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (m *memBus) events(channel string) []busEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []busEvent
	for _, e := range m.published {
		if e.channel == channel {
			out = append(out, e)
		}
	}
	return out
}

// memAudit records audit events.
type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) List(context.Context, int) ([]domain.AuditEntry, error) {
	return nil, nil
}

// memUnstakes is an in-memory domain.UnstakeRequestStore.
type memUnstakes struct {
	mu      sync.Mutex
	byStake map[string]domain.UnstakeRequest
}

func newMemUnstakes() *memUnstakes {
	return &memUnstakes{byStake: make(map[string]domain.UnstakeRequest)}
}

func (m *memUnstakes) Put(_ context.Context, req domain.UnstakeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byStake[req.StakeID] = req
	return nil
}

func (m *memUnstakes) GetByStakeID(_ context.Context, stakeID string) (domain.UnstakeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.byStake[stakeID]
	if !ok {
		return domain.UnstakeRequest{}, domain.ErrNotFound
	}
	return req, nil
}

func (m *memUnstakes) ListTerminalBefore(_ context.Context, before time.Time) ([]domain.UnstakeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UnstakeRequest
	for _, req := range m.byStake {
		if req.Terminal() && req.UpdatedAt.Before(before) {
			out = append(out, req)
		}
	}
	return out, nil
}

// fakePayer stands in for the Flare client.
type fakePayer struct {
	mu      sync.Mutex
	hash    string
	err     error
	paid    []float64
	sentTo  []string
}

func (f *fakePayer) SendReward(_ context.Context, recipient string, amount float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.paid = append(f.paid, amount)
	f.sentTo = append(f.sentTo, recipient)
	return f.hash, nil
}

// recNotifier records delivered notifications.
type recNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recNotifier) Notify(_ context.Context, event, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// openEntry builds a ledger entry for an open payment to the pool.
func openEntry(owner, poolAddress, positionID string, amountXRP float64, ledgerIndex uint32, date int64) xrpl.TxEntry {
	m, err := memo.Encode(memo.TypeStaking, memo.OpenPayload{
		Action:     memo.ActionOpenPosition,
		PositionID: positionID,
		PoolID:     "pool1",
		LockPeriod: 60,
		APY:        10.4,
	})
	if err != nil {
		panic(err)
	}
	return xrpl.TxEntry{
		Tx: xrpl.Transaction{
			TransactionType: "Payment",
			Account:         owner,
			Destination:     poolAddress,
			Amount:          xrpl.XRPToDrops(amountXRP),
			Memos:           []xrpl.MemoWrapper{{Memo: m}},
			Date:            date,
			Hash:            "OPEN-" + positionID,
			LedgerIndex:     ledgerIndex,
		},
		Validated: true,
	}
}

// closeEntry builds a ledger entry for a close payout from the pool.
func closeEntry(owner, poolAddress, positionID string, ledgerIndex uint32) xrpl.TxEntry {
	m, err := memo.Encode(memo.TypeUnstaking, memo.ClosePayload{
		Action:     memo.ActionUnstakeProcessed,
		PositionID: positionID,
	})
	if err != nil {
		panic(err)
	}
	return xrpl.TxEntry{
		Tx: xrpl.Transaction{
			TransactionType: "Payment",
			Account:         poolAddress,
			Destination:     owner,
			Amount:          "1000000",
			Memos:           []xrpl.MemoWrapper{{Memo: m}},
			Hash:            "CLOSE-" + positionID,
			LedgerIndex:     ledgerIndex,
		},
		Validated: true,
	}
}
