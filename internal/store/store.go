// Package store holds the state of both services behind small interfaces so
// handlers can be tested against isolated instances. Two backends exist: the
// in-memory default (volatile by contract, everything is lost on restart) and
// an opt-in Postgres backend selected by a non-empty DSN.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"recycle-rewards/internal/model"
	"recycle-rewards/internal/voucher"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already exists")
)

// AlreadyClaimedError rejects a second claim of the same disposal transaction
// and surfaces the original claimant.
type AlreadyClaimedError struct {
	ClaimedBy string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("transaction already claimed by %s", e.ClaimedBy)
}

// InsufficientFundsError carries the balance details the redeem endpoint
// reports back.
type InsufficientFundsError struct {
	Balance      int
	PointsNeeded int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient points: balance %d, need %d", e.Balance, e.PointsNeeded)
}

// NewID builds a prefixed unique identifier, e.g. TXN_<uuid>.
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// BinStore is the disposal recorder's state: the append-only transaction log
// and the lightweight passwordless users.
type BinStore interface {
	SaveTransaction(ctx context.Context, tx model.DisposalTransaction) error
	Transactions(ctx context.Context) ([]model.DisposalTransaction, error)
	TransactionsByUser(ctx context.Context, userID string) ([]model.DisposalTransaction, error)
	WasteFlow(ctx context.Context) (map[model.WasteType]model.FlowEntry, model.FlowSummary, error)
	GetOrCreateBinUser(ctx context.Context, name, email string) (model.BinUser, bool, error)
	BinUserByID(ctx context.Context, id string) (model.BinUser, error)
}

// LedgerStore is the wallet service's state: accounts, wallets and the claim
// and redemption records. ClaimVoucher and RedeemPoints are atomic; their
// check-then-act sequences run inside a single critical section (memory) or
// transaction (Postgres).
type LedgerStore interface {
	CreateAccount(ctx context.Context, name, email, passwordHash string) (model.Account, error)
	AccountByEmail(ctx context.Context, email string) (model.Account, error)
	AccountByID(ctx context.Context, id string) (model.Account, error)
	Accounts(ctx context.Context) ([]model.Account, error)

	GetOrCreateWallet(ctx context.Context, userID string) (model.Wallet, error)
	ClaimVoucher(ctx context.Context, userID string, v voucher.Data) (model.LedgerRecord, model.Wallet, error)
	RedeemPoints(ctx context.Context, userID string, amountRupees float64, pointsNeeded int) (model.LedgerRecord, model.Wallet, error)

	TransactionsByUser(ctx context.Context, userID string) ([]model.LedgerRecord, error)
	Stats(ctx context.Context) (model.Stats, error)
	SeedDemoUser(ctx context.Context, name, email, passwordHash string, startPoints int) (model.Account, bool, error)
}
