package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flarexfi/flarestake/internal/domain"
	"github.com/flarexfi/flarestake/internal/platform/xrpl"
)

const (
	testPoolAddr = "rPoolPoolPoolPoolPoolPoolPoolPool"
	testOwner    = "rOwnerOwnerOwnerOwnerOwnerOwner"
)

func newTestReconciler(ledger *fakeLedger, positions *memPositions) *Reconciler {
	return NewReconciler(ledger, positions, domain.NewPoolCatalog(nil), testPoolAddr, 200, testLogger())
}

func TestReconcileOpenOnly(t *testing.T) {
	entries := []xrpl.TxEntry{
		openEntry(testOwner, testPoolAddr, "stake-1", 100, 10, 800000000),
	}

	active := Reconcile(entries, testOwner, testPoolAddr)
	require.Len(t, active, 1)
	assert.Equal(t, "stake-1", active[0].ID)
	assert.Equal(t, 100.0, active[0].Amount)
}

func TestReconcileSkipsZeroAmountOpens(t *testing.T) {
	// An issued-currency payment to the pool delivers no XRP; a valid open
	// memo on it must not create a position.
	zero := openEntry(testOwner, testPoolAddr, "stake-zero", 100, 10, 800000000)
	zero.Tx.Amount = ""

	active := Reconcile([]xrpl.TxEntry{zero}, testOwner, testPoolAddr)
	assert.Empty(t, active)
	assert.Equal(t, domain.PositionStatusActive, active[0].Status)
}

func TestReconcileCloseExcludes(t *testing.T) {
	entries := []xrpl.TxEntry{
		openEntry(testOwner, testPoolAddr, "stake-1", 100, 10, 800000000),
		openEntry(testOwner, testPoolAddr, "stake-2", 50, 11, 800000100),
		closeEntry(testOwner, testPoolAddr, "stake-1", 12),
	}

	active := Reconcile(entries, testOwner, testPoolAddr)
	require.Len(t, active, 1)
	assert.Equal(t, "stake-2", active[0].ID)
}

func TestReconcileIsIdempotent(t *testing.T) {
	entries := []xrpl.TxEntry{
		openEntry(testOwner, testPoolAddr, "stake-1", 100, 10, 800000000),
		closeEntry(testOwner, testPoolAddr, "stake-1", 12),
	}

	first := Reconcile(entries, testOwner, testPoolAddr)
	second := Reconcile(entries, testOwner, testPoolAddr)
	assert.Equal(t, first, second)
	assert.Empty(t, first)
}

func TestReconcileLastOpenWins(t *testing.T) {
	older := openEntry(testOwner, testPoolAddr, "stake-1", 100, 10, 800000000)
	newer := openEntry(testOwner, testPoolAddr, "stake-1", 200, 20, 800000500)

	// Order of arrival must not matter.
	for _, entries := range [][]xrpl.TxEntry{
		{older, newer},
		{newer, older},
	} {
		active := Reconcile(entries, testOwner, testPoolAddr)
		require.Len(t, active, 1)
		assert.Equal(t, 200.0, active[0].Amount)
		assert.Equal(t, uint32(20), active[0].LedgerIndex)
	}
}

func TestReconcileIgnoresForeignTraffic(t *testing.T) {
	elsewhere := openEntry(testOwner, "rSomewhereElse", "stake-x", 100, 10, 800000000)
	nonPayment := xrpl.TxEntry{Tx: xrpl.Transaction{TransactionType: "OfferCreate", Account: testOwner}}
	plain := xrpl.TxEntry{Tx: xrpl.Transaction{
		TransactionType: "Payment", Account: testOwner, Destination: testPoolAddr, Amount: "5000000",
	}}

	active := Reconcile([]xrpl.TxEntry{elsewhere, nonPayment, plain}, testOwner, testPoolAddr)
	assert.Empty(t, active)
}

func TestReconcileSortsNewestFirst(t *testing.T) {
	entries := []xrpl.TxEntry{
		openEntry(testOwner, testPoolAddr, "old", 10, 10, 800000000),
		openEntry(testOwner, testPoolAddr, "new", 20, 11, 800500000),
	}

	active := Reconcile(entries, testOwner, testPoolAddr)
	require.Len(t, active, 2)
	assert.Equal(t, "new", active[0].ID)
	assert.Equal(t, "old", active[1].ID)
}

func TestActivePositionsRefreshesSnapshot(t *testing.T) {
	ledger := &fakeLedger{entries: map[string][]xrpl.TxEntry{
		testOwner: {openEntry(testOwner, testPoolAddr, "stake-1", 100, 10, 800000000)},
	}}
	positions := newMemPositions()
	r := newTestReconciler(ledger, positions)

	active, err := r.ActivePositions(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "60-Day Lock", active[0].PoolName, "catalog name annotation")

	stored, err := positions.ListActive(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestActivePositionsStoreFallback(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("ws down")}
	positions := newMemPositions()
	require.NoError(t, positions.Upsert(context.Background(), domain.StakePosition{
		ID: "stake-1", Owner: testOwner, Status: domain.PositionStatusActive,
	}))
	r := newTestReconciler(ledger, positions)

	active, err := r.ActivePositions(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "stake-1", active[0].ID)
}

func TestActivePositionsDoubleFailure(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("ws down")}
	positions := newMemPositions()
	positions.listErr = errors.New("db down")
	r := newTestReconciler(ledger, positions)

	_, err := r.ActivePositions(context.Background(), testOwner)
	assert.Error(t, err)
}

func TestFindStake(t *testing.T) {
	ledger := &fakeLedger{entries: map[string][]xrpl.TxEntry{
		testOwner: {openEntry(testOwner, testPoolAddr, "stake-1", 100, 10, 800000000)},
	}}
	positions := newMemPositions()
	r := newTestReconciler(ledger, positions)

	pos, err := r.FindStake(context.Background(), testOwner, "stake-1")
	require.NoError(t, err)
	assert.Equal(t, "stake-1", pos.ID)

	_, err = r.FindStake(context.Background(), testOwner, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindStakeSnapshotFallback(t *testing.T) {
	// A position the bounded ledger scan no longer sees but the snapshot
	// still holds because the refresh could not land.
	ledger := &fakeLedger{entries: map[string][]xrpl.TxEntry{}}
	positions := newMemPositions()
	positions.replaceErr = errors.New("db busy")
	require.NoError(t, positions.Upsert(context.Background(), domain.StakePosition{
		ID: "aged-out", Owner: testOwner, Status: domain.PositionStatusActive,
	}))
	r := newTestReconciler(ledger, positions)

	pos, err := r.FindStake(context.Background(), testOwner, "aged-out")
	require.NoError(t, err)
	assert.Equal(t, "aged-out", pos.ID)
}

func TestAllActivePositionsUnion(t *testing.T) {
	otherOwner := "rOtherOtherOtherOtherOtherOther"
	ledger := &fakeLedger{entries: map[string][]xrpl.TxEntry{
		testOwner:  {openEntry(testOwner, testPoolAddr, "stake-1", 100, 10, 800000000)},
		otherOwner: {openEntry(otherOwner, testPoolAddr, "stake-2", 50, 11, 800000100)},
	}}
	positions := newMemPositions()
	require.NoError(t, positions.Upsert(context.Background(), domain.StakePosition{
		ID: "stake-1", Owner: testOwner, Status: domain.PositionStatusActive,
	}))
	require.NoError(t, positions.Upsert(context.Background(), domain.StakePosition{
		ID: "stake-2", Owner: otherOwner, Status: domain.PositionStatusActive,
	}))
	r := newTestReconciler(ledger, positions)

	all, err := r.AllActivePositions(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAllActivePositionsDiscoversFromPoolStream(t *testing.T) {
	// The owner has never been snapshotted; only the pool's own
	// transaction stream knows them.
	entry := openEntry(testOwner, testPoolAddr, "stake-1", 100, 10, 800000000)
	ledger := &fakeLedger{entries: map[string][]xrpl.TxEntry{
		testPoolAddr: {entry},
		testOwner:    {entry},
	}}
	r := newTestReconciler(ledger, newMemPositions())

	all, err := r.AllActivePositions(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "stake-1", all[0].ID)
}
