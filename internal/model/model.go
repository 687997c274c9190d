package model

import "time"

// ISOLayout matches the timestamp format the services emit on the wire
// (millisecond precision, always UTC, trailing Z).
const ISOLayout = "2006-01-02T15:04:05.000Z"

// NowISO returns the current time in wire format.
func NowISO() string {
	return time.Now().UTC().Format(ISOLayout)
}

type WasteType string

const (
	Plastic    WasteType = "plastic"
	Metal      WasteType = "metal"
	Organic    WasteType = "organic"
	Paper      WasteType = "paper"
	Glass      WasteType = "glass"
	Electronic WasteType = "electronic"
)

type TxStatus string

// A disposal transaction is created pending and never transitions;
// the claim guard lives in the ledger, not here.
const StatusPending TxStatus = "pending"

type DisposalTransaction struct {
	ID        string    `json:"id"`               // TXN_<uuid>
	UserID    string    `json:"userId,omitempty"` // unset for anonymous bin drops
	WasteType WasteType `json:"wasteType"`
	Weight    float64   `json:"weight"` // kilograms, strictly positive
	Points    int       `json:"points"`
	Timestamp string    `json:"timestamp"`
	Status    TxStatus  `json:"status"`
}

// BinUser is the lightweight, passwordless user the smart-bin side keeps.
// The aggregate fields are recomputed from the transaction log on every read.
type BinUser struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	CreatedAt          string  `json:"createdAt"`
	TotalPoints        int     `json:"totalPoints"`
	TotalWasteDisposed float64 `json:"totalWasteDisposed"`
	TransactionCount   int     `json:"transactionCount"`
}

// Account is the wallet-service identity. The credential hash never leaves
// the process.
type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"-"` // bcrypt hash
	CreatedAt string `json:"createdAt"`
}

type Wallet struct {
	UserID        string        `json:"userId"`
	Balance       int           `json:"balance"`
	TotalEarned   int           `json:"totalEarned"`
	TotalRedeemed int           `json:"totalRedeemed"`
	History       []WalletEntry `json:"history"` // most recent first
}

type WalletEntry struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"` // "earned" or "redeemed"
	Points       int       `json:"points"`
	WasteType    WasteType `json:"wasteType,omitempty"`
	Weight       float64   `json:"weight,omitempty"`
	AmountRupees float64   `json:"amountRupees,omitempty"`
	Timestamp    string    `json:"timestamp"`
	Description  string    `json:"description"`
}

type RecordType string

const (
	RecordClaim      RecordType = "claim"
	RecordRedemption RecordType = "redemption"
)

// LedgerRecord is the tagged union of a claim record and a redemption record;
// both land in the same per-user transaction feed. For claims TransactionID
// links back to the disposal transaction and Points is positive; for
// redemptions Points is negative and AmountRupees carries the payout.
type LedgerRecord struct {
	ID            string     `json:"id"` // CLAIM_<uuid> / REDEEM_<uuid>
	UserID        string     `json:"userId"`
	TransactionID string     `json:"transactionId,omitempty"`
	Points        int        `json:"points"`
	WasteType     WasteType  `json:"wasteType,omitempty"`
	Weight        float64    `json:"weight,omitempty"`
	AmountRupees  float64    `json:"amountRupees,omitempty"`
	Timestamp     string     `json:"timestamp"`
	Type          RecordType `json:"type"`
}

type FlowEntry struct {
	Count       int     `json:"count"`
	TotalWeight float64 `json:"totalWeight"`
	TotalPoints int     `json:"totalPoints"`
}

type FlowSummary struct {
	TotalTransactions    int     `json:"totalTransactions"`
	TotalWasteDisposed   float64 `json:"totalWasteDisposed"`
	TotalPointsGenerated int     `json:"totalPointsGenerated"`
}

type Stats struct {
	TotalUsers         int    `json:"totalUsers"`
	TotalPoints        int    `json:"totalPoints"`
	TotalEarned        int    `json:"totalEarned"`
	TotalRedeemed      int    `json:"totalRedeemed"`
	TotalTransactions  int    `json:"totalTransactions"`
	TotalMoneyRedeemed string `json:"totalMoneyRedeemed"` // rupees, two decimals
}
