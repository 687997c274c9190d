package store

import (
	"context"
	"fmt"
	"sync"

	"recycle-rewards/internal/model"
	"recycle-rewards/internal/points"
	"recycle-rewards/internal/voucher"
)

// BinMemory keeps the disposal recorder's state in process memory. One
// RWMutex guards everything; request handlers never touch the maps directly.
type BinMemory struct {
	mu    sync.RWMutex
	txs   []model.DisposalTransaction
	users map[string]model.BinUser
}

func NewBinMemory() *BinMemory {
	return &BinMemory{users: make(map[string]model.BinUser)}
}

func (s *BinMemory) SaveTransaction(_ context.Context, tx model.DisposalTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
	return nil
}

func (s *BinMemory) Transactions(_ context.Context) ([]model.DisposalTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DisposalTransaction, len(s.txs))
	copy(out, s.txs)
	return out, nil
}

func (s *BinMemory) TransactionsByUser(_ context.Context, userID string) ([]model.DisposalTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DisposalTransaction, 0)
	for _, tx := range s.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *BinMemory) WasteFlow(_ context.Context) (map[model.WasteType]model.FlowEntry, model.FlowSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flow := make(map[model.WasteType]model.FlowEntry)
	var summary model.FlowSummary
	for _, tx := range s.txs {
		entry := flow[tx.WasteType]
		entry.Count++
		entry.TotalWeight += tx.Weight
		entry.TotalPoints += tx.Points
		flow[tx.WasteType] = entry

		summary.TotalTransactions++
		summary.TotalWasteDisposed += tx.Weight
		summary.TotalPointsGenerated += tx.Points
	}
	return flow, summary, nil
}

func (s *BinMemory) GetOrCreateBinUser(_ context.Context, name, email string) (model.BinUser, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return u, false, nil
		}
	}

	u := model.BinUser{
		ID:        NewID("USER"),
		Name:      name,
		Email:     email,
		CreatedAt: model.NowISO(),
	}
	s.users[u.ID] = u
	return u, true, nil
}

func (s *BinMemory) BinUserByID(_ context.Context, id string) (model.BinUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.BinUser{}, ErrNotFound
	}
	return u, nil
}

// LedgerMemory is the wallet service's in-memory state. The single write lock
// makes the duplicate-claim guard and the redeem balance check atomic.
type LedgerMemory struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
	wallets  map[string]*model.Wallet
	claims   map[string]string // transaction id -> claiming user id
	records  []model.LedgerRecord
}

func NewLedgerMemory() *LedgerMemory {
	return &LedgerMemory{
		accounts: make(map[string]model.Account),
		wallets:  make(map[string]*model.Wallet),
		claims:   make(map[string]string),
	}
}

func (s *LedgerMemory) CreateAccount(_ context.Context, name, email, passwordHash string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.Email == email {
			return model.Account{}, ErrEmailTaken
		}
	}

	acc := model.Account{
		ID:        NewID("USER"),
		Name:      name,
		Email:     email,
		Password:  passwordHash,
		CreatedAt: model.NowISO(),
	}
	s.accounts[acc.ID] = acc
	s.walletLocked(acc.ID)
	return acc, nil
}

func (s *LedgerMemory) AccountByEmail(_ context.Context, email string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, acc := range s.accounts {
		if acc.Email == email {
			return acc, nil
		}
	}
	return model.Account{}, ErrNotFound
}

func (s *LedgerMemory) AccountByID(_ context.Context, id string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return model.Account{}, ErrNotFound
	}
	return acc, nil
}

func (s *LedgerMemory) Accounts(_ context.Context) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc)
	}
	return out, nil
}

func (s *LedgerMemory) GetOrCreateWallet(_ context.Context, userID string) (model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyWallet(s.walletLocked(userID)), nil
}

func (s *LedgerMemory) ClaimVoucher(_ context.Context, userID string, v voucher.Data) (model.LedgerRecord, model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Duplicate check comes before the account check: a replayed voucher
	// answers 409 even when the claiming user does not exist.
	if claimant, ok := s.claims[v.TransactionID]; ok {
		return model.LedgerRecord{}, model.Wallet{}, &AlreadyClaimedError{ClaimedBy: claimant}
	}

	if _, ok := s.accounts[userID]; !ok {
		return model.LedgerRecord{}, model.Wallet{}, ErrNotFound
	}

	w := s.walletLocked(userID)
	rec := model.LedgerRecord{
		ID:            NewID("CLAIM"),
		UserID:        userID,
		TransactionID: v.TransactionID,
		Points:        v.Points,
		WasteType:     model.WasteType(v.WasteType),
		Weight:        v.Weight,
		Timestamp:     model.NowISO(),
		Type:          model.RecordClaim,
	}

	s.claims[v.TransactionID] = userID
	s.records = append(s.records, rec)

	w.Balance += v.Points
	w.TotalEarned += v.Points
	w.History = append([]model.WalletEntry{{
		ID:          rec.ID,
		Type:        "earned",
		Points:      v.Points,
		WasteType:   rec.WasteType,
		Weight:      v.Weight,
		Timestamp:   rec.Timestamp,
		Description: fmt.Sprintf("Earned %d points from %s waste", v.Points, v.WasteType),
	}}, w.History...)

	return rec, copyWallet(w), nil
}

func (s *LedgerMemory) RedeemPoints(_ context.Context, userID string, amountRupees float64, pointsNeeded int) (model.LedgerRecord, model.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.walletLocked(userID)
	if w.Balance < pointsNeeded {
		return model.LedgerRecord{}, model.Wallet{}, &InsufficientFundsError{
			Balance:      w.Balance,
			PointsNeeded: pointsNeeded,
		}
	}

	rec := model.LedgerRecord{
		ID:           NewID("REDEEM"),
		UserID:       userID,
		Points:       -pointsNeeded,
		AmountRupees: amountRupees,
		Timestamp:    model.NowISO(),
		Type:         model.RecordRedemption,
	}

	w.Balance -= pointsNeeded
	w.TotalRedeemed += pointsNeeded
	s.records = append(s.records, rec)
	w.History = append([]model.WalletEntry{{
		ID:           rec.ID,
		Type:         "redeemed",
		Points:       -pointsNeeded,
		AmountRupees: amountRupees,
		Timestamp:    rec.Timestamp,
		Description:  fmt.Sprintf("Redeemed ₹%v for %d points", amountRupees, pointsNeeded),
	}}, w.History...)

	return rec, copyWallet(w), nil
}

func (s *LedgerMemory) TransactionsByUser(_ context.Context, userID string) ([]model.LedgerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.LedgerRecord, 0)
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *LedgerMemory) Stats(_ context.Context) (model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.Stats{
		TotalUsers:        len(s.accounts),
		TotalTransactions: len(s.records),
	}
	for _, w := range s.wallets {
		stats.TotalPoints += w.Balance
		stats.TotalEarned += w.TotalEarned
		stats.TotalRedeemed += w.TotalRedeemed
	}
	stats.TotalMoneyRedeemed = fmt.Sprintf("%.2f", float64(stats.TotalRedeemed)/points.PointsPerRupee)
	return stats, nil
}

func (s *LedgerMemory) SeedDemoUser(_ context.Context, name, email, passwordHash string, startPoints int) (model.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.Email == email {
			return acc, false, nil
		}
	}

	acc := model.Account{
		ID:        NewID("DEMO_USER"),
		Name:      name,
		Email:     email,
		Password:  passwordHash,
		CreatedAt: model.NowISO(),
	}
	s.accounts[acc.ID] = acc
	s.wallets[acc.ID] = &model.Wallet{
		UserID:        acc.ID,
		Balance:       startPoints,
		TotalEarned:   startPoints,
		TotalRedeemed: 0,
		History: []model.WalletEntry{{
			ID:          "DEMO_POINTS",
			Type:        "earned",
			Points:      startPoints,
			Timestamp:   model.NowISO(),
			Description: "Demo points for testing",
		}},
	}
	return acc, true, nil
}

// walletLocked returns the wallet for userID, creating a zero-balance one on
// first access. Callers must hold the write lock.
func (s *LedgerMemory) walletLocked(userID string) *model.Wallet {
	w, ok := s.wallets[userID]
	if !ok {
		w = &model.Wallet{
			UserID:  userID,
			History: make([]model.WalletEntry, 0),
		}
		s.wallets[userID] = w
	}
	return w
}

func copyWallet(w *model.Wallet) model.Wallet {
	out := *w
	out.History = make([]model.WalletEntry, len(w.History))
	copy(out.History, w.History)
	return out
}
