package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"recycle-rewards/internal/logging"
	"recycle-rewards/internal/model"
	"recycle-rewards/internal/points"
	"recycle-rewards/internal/voucher"
)

const pgUniqueViolation = "23505"

// Open connects to Postgres through the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logging.Logg.Error("Couldn't connect to the database", "error", err)
		return nil, err
	}
	return db, nil
}

func initTables(db *sql.DB, stmts []string) error {
	var errs []error
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BinPostgres is the durable backend for the disposal recorder. Timestamps
// are stored in wire format so vouchers round-trip byte for byte.
type BinPostgres struct {
	db *sql.DB
}

func NewBinPostgres(db *sql.DB) (*BinPostgres, error) {
	err := initTables(db, []string{
		`CREATE TABLE IF NOT EXISTS disposal_transactions (
			seq BIGSERIAL,
			id VARCHAR(60) PRIMARY KEY,
			user_id VARCHAR(60) NOT NULL DEFAULT '',
			waste_type VARCHAR(30) NOT NULL,
			weight DOUBLE PRECISION NOT NULL,
			points INTEGER NOT NULL,
			created_at VARCHAR(30) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending'
		);`,

		`CREATE TABLE IF NOT EXISTS bin_users (
			id VARCHAR(70) PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(100) NOT NULL UNIQUE,
			created_at VARCHAR(30) NOT NULL
		);`,
	})
	if err != nil {
		return nil, err
	}
	return &BinPostgres{db: db}, nil
}

func (s *BinPostgres) SaveTransaction(ctx context.Context, tx model.DisposalTransaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO disposal_transactions (id, user_id, waste_type, weight, points, created_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tx.ID, tx.UserID, tx.WasteType, tx.Weight, tx.Points, tx.Timestamp, tx.Status)
	return err
}

func (s *BinPostgres) Transactions(ctx context.Context) ([]model.DisposalTransaction, error) {
	return s.queryTransactions(ctx,
		`SELECT id, user_id, waste_type, weight, points, created_at, status
		 FROM disposal_transactions ORDER BY seq`)
}

func (s *BinPostgres) TransactionsByUser(ctx context.Context, userID string) ([]model.DisposalTransaction, error) {
	return s.queryTransactions(ctx,
		`SELECT id, user_id, waste_type, weight, points, created_at, status
		 FROM disposal_transactions WHERE user_id = $1 ORDER BY seq`, userID)
}

func (s *BinPostgres) queryTransactions(ctx context.Context, query string, args ...any) ([]model.DisposalTransaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]model.DisposalTransaction, 0)
	for rows.Next() {
		var tx model.DisposalTransaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.WasteType, &tx.Weight, &tx.Points, &tx.Timestamp, &tx.Status); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (s *BinPostgres) WasteFlow(ctx context.Context) (map[model.WasteType]model.FlowEntry, model.FlowSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT waste_type, COUNT(*), COALESCE(SUM(weight), 0), COALESCE(SUM(points), 0)
		 FROM disposal_transactions GROUP BY waste_type`)
	if err != nil {
		return nil, model.FlowSummary{}, err
	}
	defer rows.Close()

	flow := make(map[model.WasteType]model.FlowEntry)
	var summary model.FlowSummary
	for rows.Next() {
		var wt model.WasteType
		var entry model.FlowEntry
		if err := rows.Scan(&wt, &entry.Count, &entry.TotalWeight, &entry.TotalPoints); err != nil {
			return nil, model.FlowSummary{}, err
		}
		flow[wt] = entry
		summary.TotalTransactions += entry.Count
		summary.TotalWasteDisposed += entry.TotalWeight
		summary.TotalPointsGenerated += entry.TotalPoints
	}
	return flow, summary, rows.Err()
}

func (s *BinPostgres) GetOrCreateBinUser(ctx context.Context, name, email string) (model.BinUser, bool, error) {
	u := model.BinUser{
		ID:        NewID("USER"),
		Name:      name,
		Email:     email,
		CreatedAt: model.NowISO(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bin_users (id, name, email, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Name, u.Email, u.CreatedAt)
	if err == nil {
		return u, true, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return model.BinUser{}, false, err
	}

	// Lost to an existing row; return it.
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM bin_users WHERE email = $1`, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err != nil {
		return model.BinUser{}, false, err
	}
	return u, false, nil
}

func (s *BinPostgres) BinUserByID(ctx context.Context, id string) (model.BinUser, error) {
	var u model.BinUser
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM bin_users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BinUser{}, ErrNotFound
	}
	if err != nil {
		return model.BinUser{}, err
	}
	return u, nil
}

// LedgerPostgres is the durable wallet backend. The claims table's primary
// key on transaction_id makes the duplicate-claim guard an atomic
// insert-if-absent; redeem is a conditional UPDATE.
type LedgerPostgres struct {
	db *sql.DB
}

func NewLedgerPostgres(db *sql.DB) (*LedgerPostgres, error) {
	err := initTables(db, []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id VARCHAR(70) PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(100) NOT NULL UNIQUE,
			password_hash VARCHAR(60) NOT NULL,
			created_at VARCHAR(30) NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS wallets (
			user_id VARCHAR(70) PRIMARY KEY,
			balance INTEGER NOT NULL DEFAULT 0,
			total_earned INTEGER NOT NULL DEFAULT 0,
			total_redeemed INTEGER NOT NULL DEFAULT 0
		);`,

		`CREATE TABLE IF NOT EXISTS wallet_history (
			seq BIGSERIAL PRIMARY KEY,
			entry_id VARCHAR(70) NOT NULL,
			user_id VARCHAR(70) NOT NULL,
			type VARCHAR(20) NOT NULL,
			points INTEGER NOT NULL,
			waste_type VARCHAR(30) NOT NULL DEFAULT '',
			weight DOUBLE PRECISION NOT NULL DEFAULT 0,
			amount_rupees DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at VARCHAR(30) NOT NULL,
			description VARCHAR(200) NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS ledger_records (
			seq BIGSERIAL PRIMARY KEY,
			id VARCHAR(70) NOT NULL,
			user_id VARCHAR(70) NOT NULL,
			transaction_id VARCHAR(60) NOT NULL DEFAULT '',
			points INTEGER NOT NULL,
			waste_type VARCHAR(30) NOT NULL DEFAULT '',
			weight DOUBLE PRECISION NOT NULL DEFAULT 0,
			amount_rupees DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at VARCHAR(30) NOT NULL,
			type VARCHAR(20) NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS claims (
			transaction_id VARCHAR(60) PRIMARY KEY,
			user_id VARCHAR(70) NOT NULL
		);`,
	})
	if err != nil {
		return nil, err
	}
	return &LedgerPostgres{db: db}, nil
}

func (s *LedgerPostgres) CreateAccount(ctx context.Context, name, email, passwordHash string) (model.Account, error) {
	acc := model.Account{
		ID:        NewID("USER"),
		Name:      name,
		Email:     email,
		Password:  passwordHash,
		CreatedAt: model.NowISO(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		acc.ID, acc.Name, acc.Email, acc.Password, acc.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return model.Account{}, ErrEmailTaken
		}
		return model.Account{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, acc.ID)
	if err != nil {
		return model.Account{}, err
	}
	return acc, nil
}

func (s *LedgerPostgres) AccountByEmail(ctx context.Context, email string) (model.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM accounts WHERE email = $1`, email))
}

func (s *LedgerPostgres) AccountByID(ctx context.Context, id string) (model.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM accounts WHERE id = $1`, id))
}

func (s *LedgerPostgres) scanAccount(row *sql.Row) (model.Account, error) {
	var acc model.Account
	err := row.Scan(&acc.ID, &acc.Name, &acc.Email, &acc.Password, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	return acc, nil
}

func (s *LedgerPostgres) Accounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accs := make([]model.Account, 0)
	for rows.Next() {
		var acc model.Account
		if err := rows.Scan(&acc.ID, &acc.Name, &acc.Email, &acc.Password, &acc.CreatedAt); err != nil {
			return nil, err
		}
		accs = append(accs, acc)
	}
	return accs, rows.Err()
}

func (s *LedgerPostgres) GetOrCreateWallet(ctx context.Context, userID string) (model.Wallet, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, userID)
	if err != nil {
		return model.Wallet{}, err
	}
	return s.loadWallet(ctx, userID)
}

func (s *LedgerPostgres) ClaimVoucher(ctx context.Context, userID string, v voucher.Data) (model.LedgerRecord, model.Wallet, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}
	defer tx.Rollback()

	// Atomic insert-if-absent on the claims primary key: whoever commits
	// first owns the claim, everyone else sees the claimant.
	res, err := tx.ExecContext(ctx,
		`INSERT INTO claims (transaction_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		v.TransactionID, userID)
	if err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	} else if n == 0 {
		var claimant string
		if err := tx.QueryRowContext(ctx,
			`SELECT user_id FROM claims WHERE transaction_id = $1`, v.TransactionID).Scan(&claimant); err != nil {
			return model.LedgerRecord{}, model.Wallet{}, err
		}
		return model.LedgerRecord{}, model.Wallet{}, &AlreadyClaimedError{ClaimedBy: claimant}
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = $1`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LedgerRecord{}, model.Wallet{}, ErrNotFound
	}
	if err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}

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

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_records (id, user_id, transaction_id, points, waste_type, weight, created_at, type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.UserID, rec.TransactionID, rec.Points, rec.WasteType, rec.Weight, rec.Timestamp, rec.Type)
	if err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, userID)
	if err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance + $1, total_earned = total_earned + $1 WHERE user_id = $2`,
		v.Points, userID)
	if err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_history (entry_id, user_id, type, points, waste_type, weight, created_at, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, userID, "earned", v.Points, rec.WasteType, v.Weight, rec.Timestamp,
		fmt.Sprintf("Earned %d points from %s waste", v.Points, v.WasteType))
	if err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}

	w, err := s.loadWallet(ctx, userID)
	return rec, w, err
}

func (s *LedgerPostgres) RedeemPoints(ctx context.Context, userID string, amountRupees float64, pointsNeeded int) (model.LedgerRecord, model.Wallet, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, userID)
	if err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}

	// Balance check and decrement in one statement closes the
	// check-then-act window.
	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance - $1, total_redeemed = total_redeemed + $1
		 WHERE user_id = $2 AND balance >= $1`,
		pointsNeeded, userID)
	if err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	} else if n == 0 {
		var balance int
		if err := tx.QueryRowContext(ctx,
			`SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance); err != nil {
			return model.LedgerRecord{}, model.Wallet{}, err
		}
		return model.LedgerRecord{}, model.Wallet{}, &InsufficientFundsError{
			Balance:      balance,
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

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_records (id, user_id, points, amount_rupees, created_at, type)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.UserID, rec.Points, rec.AmountRupees, rec.Timestamp, rec.Type)
	if err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_history (entry_id, user_id, type, points, amount_rupees, created_at, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, userID, "redeemed", rec.Points, amountRupees, rec.Timestamp,
		fmt.Sprintf("Redeemed ₹%v for %d points", amountRupees, pointsNeeded))
	if err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.LedgerRecord{}, model.Wallet{}, err
	}

	w, err := s.loadWallet(ctx, userID)
	return rec, w, err
}

func (s *LedgerPostgres) TransactionsByUser(ctx context.Context, userID string) ([]model.LedgerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, transaction_id, points, waste_type, weight, amount_rupees, created_at, type
		 FROM ledger_records WHERE user_id = $1 ORDER BY seq`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := make([]model.LedgerRecord, 0)
	for rows.Next() {
		var rec model.LedgerRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.TransactionID, &rec.Points,
			&rec.WasteType, &rec.Weight, &rec.AmountRupees, &rec.Timestamp, &rec.Type); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *LedgerPostgres) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&stats.TotalUsers)
	if err != nil {
		return model.Stats{}, err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(balance), 0), COALESCE(SUM(total_earned), 0), COALESCE(SUM(total_redeemed), 0)
		 FROM wallets`).
		Scan(&stats.TotalPoints, &stats.TotalEarned, &stats.TotalRedeemed)
	if err != nil {
		return model.Stats{}, err
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_records`).Scan(&stats.TotalTransactions)
	if err != nil {
		return model.Stats{}, err
	}
	stats.TotalMoneyRedeemed = fmt.Sprintf("%.2f", float64(stats.TotalRedeemed)/points.PointsPerRupee)
	return stats, nil
}

func (s *LedgerPostgres) SeedDemoUser(ctx context.Context, name, email, passwordHash string, startPoints int) (model.Account, bool, error) {
	existing, err := s.AccountByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.Account{}, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Account{}, false, err
	}
	defer tx.Rollback()

	acc := model.Account{
		ID:        NewID("DEMO_USER"),
		Name:      name,
		Email:     email,
		Password:  passwordHash,
		CreatedAt: model.NowISO(),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (id, name, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		acc.ID, acc.Name, acc.Email, acc.Password, acc.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			// Raced with another seed; hand back the winner's account.
			existing, lookupErr := s.AccountByEmail(ctx, email)
			return existing, false, lookupErr
		}
		return model.Account{}, false, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallets (user_id, balance, total_earned) VALUES ($1, $2, $2)`,
		acc.ID, startPoints)
	if err != nil {
		return model.Account{}, false, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_history (entry_id, user_id, type, points, created_at, description)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		"DEMO_POINTS", acc.ID, "earned", startPoints, acc.CreatedAt, "Demo points for testing")
	if err != nil {
		return model.Account{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return model.Account{}, false, err
	}
	return acc, true, nil
}

func (s *LedgerPostgres) loadWallet(ctx context.Context, userID string) (model.Wallet, error) {
	w := model.Wallet{UserID: userID, History: make([]model.WalletEntry, 0)}
	err := s.db.QueryRowContext(ctx,
		`SELECT balance, total_earned, total_redeemed FROM wallets WHERE user_id = $1`, userID).
		Scan(&w.Balance, &w.TotalEarned, &w.TotalRedeemed)
	if errors.Is(err, sql.ErrNoRows) {
		return w, nil
	}
	if err != nil {
		return model.Wallet{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, type, points, waste_type, weight, amount_rupees, created_at, description
		 FROM wallet_history WHERE user_id = $1 ORDER BY seq DESC`, userID)
	if err != nil {
		return model.Wallet{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var e model.WalletEntry
		if err := rows.Scan(&e.ID, &e.Type, &e.Points, &e.WasteType, &e.Weight,
			&e.AmountRupees, &e.Timestamp, &e.Description); err != nil {
			return model.Wallet{}, err
		}
		w.History = append(w.History, e)
	}
	return w, rows.Err()
}
