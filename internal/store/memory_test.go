package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recycle-rewards/internal/model"
	"recycle-rewards/internal/voucher"
)

func testVoucher(id string, pts int) voucher.Data {
	return voucher.Data{
		TransactionID: id,
		WasteType:     "metal",
		Weight:        2.5,
		Points:        pts,
		Timestamp:     model.NowISO(),
	}
}

func TestCreateAccountDuplicateEmail(t *testing.T) {
	s := NewLedgerMemory()
	ctx := context.Background()

	_, err := s.CreateAccount(ctx, "Ann", "ann@x.com", "hash")
	require.NoError(t, err)

	_, err = s.CreateAccount(ctx, "Other Ann", "ann@x.com", "hash2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestClaimCreditsWallet(t *testing.T) {
	s := NewLedgerMemory()
	ctx := context.Background()

	acc, err := s.CreateAccount(ctx, "Ann", "ann@x.com", "hash")
	require.NoError(t, err)

	rec, w, err := s.ClaimVoucher(ctx, acc.ID, testVoucher("TXN_1", 25))
	require.NoError(t, err)

	assert.Equal(t, model.RecordClaim, rec.Type)
	assert.Equal(t, "TXN_1", rec.TransactionID)
	assert.Equal(t, 25, w.Balance)
	assert.Equal(t, 25, w.TotalEarned)
	assert.Equal(t, 0, w.TotalRedeemed)
	require.Len(t, w.History, 1)
	assert.Equal(t, "earned", w.History[0].Type)
}

func TestDuplicateClaimRejected(t *testing.T) {
	s := NewLedgerMemory()
	ctx := context.Background()

	ann, err := s.CreateAccount(ctx, "Ann", "ann@x.com", "hash")
	require.NoError(t, err)
	bob, err := s.CreateAccount(ctx, "Bob", "bob@x.com", "hash")
	require.NoError(t, err)

	_, _, err = s.ClaimVoucher(ctx, ann.ID, testVoucher("TXN_1", 25))
	require.NoError(t, err)

	_, _, err = s.ClaimVoucher(ctx, bob.ID, testVoucher("TXN_1", 25))
	var claimed *AlreadyClaimedError
	require.ErrorAs(t, err, &claimed)
	assert.Equal(t, ann.ID, claimed.ClaimedBy)

	// Bob's wallet untouched.
	w, err := s.GetOrCreateWallet(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Balance)
}

func TestConcurrentClaimsYieldOneSuccess(t *testing.T) {
	s := NewLedgerMemory()
	ctx := context.Background()

	acc, err := s.CreateAccount(ctx, "Ann", "ann@x.com", "hash")
	require.NoError(t, err)

	const attempts = 50
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.ClaimVoucher(ctx, acc.ID, testVoucher("TXN_race", 10))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			var claimed *AlreadyClaimedError
			require.ErrorAs(t, err, &claimed)
		}
	}
	assert.Equal(t, 1, successes)

	w, err := s.GetOrCreateWallet(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, w.Balance, "only one claim may credit the wallet")
}

func TestRedeemMaintainsInvariant(t *testing.T) {
	s := NewLedgerMemory()
	ctx := context.Background()

	acc, err := s.CreateAccount(ctx, "Ann", "ann@x.com", "hash")
	require.NoError(t, err)

	_, _, err = s.ClaimVoucher(ctx, acc.ID, testVoucher("TXN_1", 25))
	require.NoError(t, err)

	rec, w, err := s.RedeemPoints(ctx, acc.ID, 2, 20)
	require.NoError(t, err)

	assert.Equal(t, model.RecordRedemption, rec.Type)
	assert.Equal(t, -20, rec.Points)
	assert.Equal(t, 2.0, rec.AmountRupees)
	assert.Equal(t, 5, w.Balance)
	assert.Equal(t, 25, w.TotalEarned)
	assert.Equal(t, 20, w.TotalRedeemed)
	assert.Equal(t, w.Balance, w.TotalEarned-w.TotalRedeemed)
	require.Len(t, w.History, 2)
	assert.Equal(t, "redeemed", w.History[0].Type, "history is most recent first")
}

func TestRedeemInsufficientLeavesWalletUnchanged(t *testing.T) {
	s := NewLedgerMemory()
	ctx := context.Background()

	acc, err := s.CreateAccount(ctx, "Ann", "ann@x.com", "hash")
	require.NoError(t, err)
	_, _, err = s.ClaimVoucher(ctx, acc.ID, testVoucher("TXN_1", 5))
	require.NoError(t, err)

	_, _, err = s.RedeemPoints(ctx, acc.ID, 1, 10)
	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 5, insufficient.Balance)
	assert.Equal(t, 10, insufficient.PointsNeeded)

	w, err := s.GetOrCreateWallet(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, w.Balance)
	assert.Equal(t, 0, w.TotalRedeemed)
}

func TestGetOrCreateWalletIdempotent(t *testing.T) {
	s := NewLedgerMemory()
	ctx := context.Background()

	w1, err := s.GetOrCreateWallet(ctx, "USER_x")
	require.NoError(t, err)
	assert.Equal(t, 0, w1.Balance)
	assert.NotNil(t, w1.History)

	w2, err := s.GetOrCreateWallet(ctx, "USER_x")
	require.NoError(t, err)
	assert.Equal(t, w1, w2)
}

func TestSeedDemoUserIdempotent(t *testing.T) {
	s := NewLedgerMemory()
	ctx := context.Background()

	acc, created, err := s.SeedDemoUser(ctx, "Demo User", "demo@example.com", "hash", 50)
	require.NoError(t, err)
	assert.True(t, created)

	w, err := s.GetOrCreateWallet(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, w.Balance)
	assert.Equal(t, 50, w.TotalEarned)
	require.Len(t, w.History, 1)
	assert.Equal(t, "DEMO_POINTS", w.History[0].ID)

	again, created, err := s.SeedDemoUser(ctx, "Demo User", "demo@example.com", "other", 50)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, acc.ID, again.ID)
}

func TestStats(t *testing.T) {
	s := NewLedgerMemory()
	ctx := context.Background()

	ann, err := s.CreateAccount(ctx, "Ann", "ann@x.com", "hash")
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, "Bob", "bob@x.com", "hash")
	require.NoError(t, err)

	_, _, err = s.ClaimVoucher(ctx, ann.ID, testVoucher("TXN_1", 30))
	require.NoError(t, err)
	_, _, err = s.RedeemPoints(ctx, ann.ID, 2, 20)
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 10, stats.TotalPoints)
	assert.Equal(t, 30, stats.TotalEarned)
	assert.Equal(t, 20, stats.TotalRedeemed)
	assert.Equal(t, 2, stats.TotalTransactions)
	assert.Equal(t, "2.00", stats.TotalMoneyRedeemed)
}

func TestBinWasteFlow(t *testing.T) {
	s := NewBinMemory()
	ctx := context.Background()

	txs := []model.DisposalTransaction{
		{ID: "TXN_1", WasteType: model.Metal, Weight: 2.5, Points: 25, Timestamp: model.NowISO(), Status: model.StatusPending},
		{ID: "TXN_2", WasteType: model.Metal, Weight: 1.5, Points: 15, Timestamp: model.NowISO(), Status: model.StatusPending},
		{ID: "TXN_3", WasteType: model.Paper, Weight: 1, Points: 3, Timestamp: model.NowISO(), Status: model.StatusPending},
	}
	for _, tx := range txs {
		require.NoError(t, s.SaveTransaction(ctx, tx))
	}

	flow, summary, err := s.WasteFlow(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, flow[model.Metal].Count)
	assert.Equal(t, 4.0, flow[model.Metal].TotalWeight)
	assert.Equal(t, 40, flow[model.Metal].TotalPoints)
	assert.Equal(t, 1, flow[model.Paper].Count)
	assert.Equal(t, 3, summary.TotalTransactions)
	assert.Equal(t, 5.0, summary.TotalWasteDisposed)
	assert.Equal(t, 43, summary.TotalPointsGenerated)
}

func TestGetOrCreateBinUserIdempotentByEmail(t *testing.T) {
	s := NewBinMemory()
	ctx := context.Background()

	u1, created, err := s.GetOrCreateBinUser(ctx, "Ann", "ann@x.com")
	require.NoError(t, err)
	assert.True(t, created)

	u2, created, err := s.GetOrCreateBinUser(ctx, "Ann Again", "ann@x.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u1.ID, u2.ID)
	assert.Equal(t, "Ann", u2.Name)

	_, err = s.BinUserByID(ctx, "USER_missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}
