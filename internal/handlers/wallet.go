package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi"

	"recycle-rewards/internal/auth"
	"recycle-rewards/internal/logging"
	"recycle-rewards/internal/middleware"
	"recycle-rewards/internal/model"
	"recycle-rewards/internal/points"
	"recycle-rewards/internal/store"
	"recycle-rewards/internal/voucher"
)

const (
	demoName     = "Demo User"
	demoEmail    = "demo@example.com"
	demoPassword = "demo123"
	demoPoints   = 50
)

// WalletServer handles the wallet service's API: accounts, voucher claims,
// redemptions and system statistics.
type WalletServer struct {
	Store store.LedgerStore
}

func NewWalletServer(s store.LedgerStore) *WalletServer {
	return &WalletServer{Store: s}
}

func (s *WalletServer) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.LoggingMiddleware(logging.Logg))
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth)
		r.Post("/users/register", s.Register)
		r.Post("/users/login", s.Login)
		r.Get("/users", s.ListUsers)
		r.Get("/users/{userID}", s.GetUser)
		r.Post("/scan-qr", s.ScanQR)
		r.Get("/wallet/{userID}", s.GetWallet)
		r.Post("/wallet/{userID}/redeem", s.Redeem)
		r.Get("/transactions/{userID}", s.UserTransactions)
		r.Get("/stats", s.GetStats)
		r.Post("/demo-user", s.DemoUser)
	})
	return r
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *WalletServer) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Name, email, and password are required")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Name, email, and password are required")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		logging.Logg.Error("Failed to hash the password", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	acc, err := s.Store.CreateAccount(r.Context(), req.Name, req.Email, passwordHash)
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "User with this email already exists")
		return
	}
	if err != nil {
		logging.Logg.Error("Failed to create account", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := auth.GenerateToken(acc.ID, acc.Name)
	if err != nil {
		logging.Logg.Error("Failed to generate token", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("Authorization", fmt.Sprintf("Bearer %s", token))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    acc,
		"token":   token,
		"message": "User registered successfully",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *WalletServer) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	acc, err := s.Store.AccountByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		logging.Logg.Error("Failed to fetch account", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := auth.CheckPass(acc.Password, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	token, err := auth.GenerateToken(acc.ID, acc.Name)
	if err != nil {
		logging.Logg.Error("Failed to generate token", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("Authorization", fmt.Sprintf("Bearer %s", token))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    acc,
		"token":   token,
		"message": "Login successful",
	})
}

func (s *WalletServer) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	acc, err := s.Store.AccountByID(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		logging.Logg.Error("Failed to fetch account", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	wallet, err := s.Store.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		logging.Logg.Error("Failed to fetch wallet", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    acc,
		"wallet":  wallet,
	})
}

type scanRequest struct {
	QRData string `json:"qrData"`
	UserID string `json:"userId"`
}

func (s *WalletServer) ScanQR(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "QR data and user ID are required")
		return
	}
	if req.QRData == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "QR data and user ID are required")
		return
	}
	if !s.authorized(r, req.UserID) {
		writeError(w, http.StatusUnauthorized, "Token does not match user")
		return
	}

	v, err := voucher.Decode(req.QRData)
	if errors.Is(err, voucher.ErrMalformed) {
		writeError(w, http.StatusBadRequest, "Invalid QR code data format")
		return
	}
	if errors.Is(err, voucher.ErrIncomplete) {
		writeError(w, http.StatusBadRequest, "Invalid transaction data in QR code")
		return
	}

	rec, wallet, err := s.Store.ClaimVoucher(r.Context(), req.UserID, v)
	var claimed *store.AlreadyClaimedError
	if errors.As(err, &claimed) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "Transaction already claimed",
			"claimedBy": claimed.ClaimedBy,
		})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found. Please login first.")
		return
	}
	if err != nil {
		logging.Logg.Error("Failed to claim voucher", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	acc, err := s.Store.AccountByID(r.Context(), req.UserID)
	if err != nil {
		logging.Logg.Error("Failed to fetch account after claim", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     fmt.Sprintf("Successfully claimed %d points for %s!", v.Points, acc.Name),
		"transaction": rec,
		"wallet":      wallet,
		"user":        acc,
	})
}

func (s *WalletServer) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	wallet, err := s.Store.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		logging.Logg.Error("Failed to fetch wallet", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"wallet":  wallet,
	})
}

type redeemRequest struct {
	AmountRupees float64 `json:"amountRupees"`
}

func (s *WalletServer) Redeem(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}
	if req.AmountRupees <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}
	if !s.authorized(r, userID) {
		writeError(w, http.StatusUnauthorized, "Token does not match user")
		return
	}

	pointsNeeded := points.ForRupees(req.AmountRupees)

	rec, wallet, err := s.Store.RedeemPoints(r.Context(), userID, req.AmountRupees, pointsNeeded)
	var insufficient *store.InsufficientFundsError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":           "Insufficient points",
			"currentBalance":  insufficient.Balance,
			"pointsNeeded":    insufficient.PointsNeeded,
			"amountRequested": req.AmountRupees,
		})
		return
	}
	if err != nil {
		logging.Logg.Error("Failed to redeem points", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      fmt.Sprintf("Successfully redeemed ₹%v", req.AmountRupees),
		"transaction":  rec,
		"wallet":       wallet,
		"exchangeRate": fmt.Sprintf("₹1 = %d points", points.PointsPerRupee),
	})
}

func (s *WalletServer) UserTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	recs, err := s.Store.TransactionsByUser(r.Context(), userID)
	if err != nil {
		logging.Logg.Error("Failed to fetch transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"transactions": recs,
		"total":        len(recs),
	})
}

type accountWithWallet struct {
	model.Account
	Wallet model.Wallet `json:"wallet"`
}

func (s *WalletServer) ListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.Store.Accounts(r.Context())
	if err != nil {
		logging.Logg.Error("Failed to fetch accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	users := make([]accountWithWallet, 0, len(accounts))
	for _, acc := range accounts {
		wallet, err := s.Store.GetOrCreateWallet(r.Context(), acc.ID)
		if err != nil {
			logging.Logg.Error("Failed to fetch wallet", "user", acc.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		users = append(users, accountWithWallet{Account: acc, Wallet: wallet})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   users,
		"total":   len(users),
	})
}

func (s *WalletServer) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Store.Stats(r.Context())
	if err != nil {
		logging.Logg.Error("Failed to compute stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}

func (s *WalletServer) DemoUser(w http.ResponseWriter, r *http.Request) {
	passwordHash, err := auth.HashPassword(demoPassword)
	if err != nil {
		logging.Logg.Error("Failed to hash the password", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create demo user")
		return
	}

	acc, created, err := s.Store.SeedDemoUser(r.Context(), demoName, demoEmail, passwordHash, demoPoints)
	if err != nil {
		logging.Logg.Error("Failed to seed demo user", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create demo user")
		return
	}

	if !created {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user":    acc,
			"message": "Demo user already exists",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    acc,
		"message": fmt.Sprintf("Demo user created successfully with %d points", demoPoints),
		"credentials": map[string]string{
			"email":    demoEmail,
			"password": demoPassword,
		},
	})
}

// authorized reports whether the request may act on userID. Requests without
// a token pass (the API addresses users by explicit ids); a presented token
// must match.
func (s *WalletServer) authorized(r *http.Request, userID string) bool {
	sub, ok := middleware.AuthenticatedUser(r)
	return !ok || sub == userID
}
