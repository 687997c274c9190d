package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi"

	"recycle-rewards/internal/logging"
	"recycle-rewards/internal/middleware"
	"recycle-rewards/internal/model"
	"recycle-rewards/internal/points"
	"recycle-rewards/internal/store"
	"recycle-rewards/internal/voucher"
)

// BinServer handles the disposal recorder's API: it records waste drops,
// issues vouchers and serves read-only aggregations over the transaction log.
type BinServer struct {
	Store store.BinStore
}

func NewBinServer(s store.BinStore) *BinServer {
	return &BinServer{Store: s}
}

func (s *BinServer) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.LoggingMiddleware(logging.Logg))
	r.Route("/api", func(r chi.Router) {
		r.Post("/dispose-waste", s.DisposeWaste)
		r.Get("/transactions", s.ListTransactions)
		r.Get("/transactions/user/{userID}", s.UserTransactions)
		r.Get("/waste-flow", s.WasteFlow)
		r.Post("/users", s.CreateUser)
		r.Get("/users/{userID}", s.GetUser)
	})
	return r
}

type disposeRequest struct {
	WasteType string  `json:"wasteType"`
	Weight    float64 `json:"weight"`
}

func (s *BinServer) DisposeWaste(w http.ResponseWriter, r *http.Request) {
	var req disposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Waste type and weight are required")
		return
	}
	if req.WasteType == "" || req.Weight == 0 {
		writeError(w, http.StatusBadRequest, "Waste type and weight are required")
		return
	}

	pts, err := points.Calculate(model.WasteType(req.WasteType), req.Weight)
	switch {
	case err == points.ErrUnknownWasteType:
		writeError(w, http.StatusBadRequest, "Invalid waste type. Allowed types: "+points.AllowedTypes())
		return
	case err == points.ErrInvalidWeight:
		writeError(w, http.StatusBadRequest, "Weight must be greater than 0")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	tx := model.DisposalTransaction{
		ID:        store.NewID("TXN"),
		WasteType: model.WasteType(req.WasteType),
		Weight:    req.Weight,
		Points:    pts,
		Timestamp: model.NowISO(),
		Status:    model.StatusPending,
	}

	if err := s.Store.SaveTransaction(r.Context(), tx); err != nil {
		logging.Logg.Error("Failed to save transaction", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	qrData := voucher.Encode(tx)
	qrCode, err := voucher.DataURL(qrData)
	if err != nil {
		logging.Logg.Error("Failed to render QR code", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"transaction": tx,
		"qrCode":      qrCode,
		"qrData":      qrData,
		"message":     fmt.Sprintf("Waste disposed successfully! Earned %d points.", pts),
	})
}

func (s *BinServer) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.Store.Transactions(r.Context())
	if err != nil {
		logging.Logg.Error("Failed to fetch transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"transactions": txs,
		"total":        len(txs),
	})
}

func (s *BinServer) UserTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	txs, err := s.Store.TransactionsByUser(r.Context(), userID)
	if err != nil {
		logging.Logg.Error("Failed to fetch user transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"transactions": txs,
		"total":        len(txs),
	})
}

func (s *BinServer) WasteFlow(w http.ResponseWriter, r *http.Request) {
	flow, summary, err := s.Store.WasteFlow(r.Context())
	if err != nil {
		logging.Logg.Error("Failed to aggregate waste flow", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"flowData": flow,
		"summary":  summary,
	})
}

type binUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *BinServer) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req binUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Name and email are required")
		return
	}
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Name and email are required")
		return
	}

	user, created, err := s.Store.GetOrCreateBinUser(r.Context(), req.Name, req.Email)
	if err != nil {
		logging.Logg.Error("Failed to create user", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := map[string]any{
		"success": true,
		"user":    user,
	}
	if created {
		resp["message"] = "User created successfully"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *BinServer) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	user, err := s.Store.BinUserByID(r.Context(), userID)
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		logging.Logg.Error("Failed to fetch user", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Aggregates are recomputed from the transaction log on every read.
	txs, err := s.Store.TransactionsByUser(r.Context(), userID)
	if err != nil {
		logging.Logg.Error("Failed to fetch user transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	user.TotalPoints = 0
	user.TotalWasteDisposed = 0
	for _, tx := range txs {
		user.TotalPoints += tx.Points
		user.TotalWasteDisposed += tx.Weight
	}
	user.TransactionCount = len(txs)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}
