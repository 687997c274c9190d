package handlers

import (
	"encoding/json"
	"net/http"

	"recycle-rewards/internal/logging"
)

// writeJSON writes v with the given status. Success bodies carry
// {"success": true, ...}, error bodies {"error": "..."}.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logg.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
