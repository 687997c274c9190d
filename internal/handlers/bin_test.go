package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"recycle-rewards/internal/store"
)

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	jsonBody, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func getJSON(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse response body: %v", err)
	}
	return body
}

func TestDisposeWaste(t *testing.T) {
	server := NewBinServer(store.NewBinMemory())
	r := server.Router()

	t.Run("Successful disposal", func(t *testing.T) {
		rr := postJSON(t, r, "/api/dispose-waste", map[string]any{
			"wasteType": "metal",
			"weight":    2.5,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		body := decodeBody(t, rr)
		if body["success"] != true {
			t.Errorf("Expected success true, got %v", body["success"])
		}

		tx, ok := body["transaction"].(map[string]any)
		if !ok {
			t.Fatalf("Expected transaction object, got %v", body["transaction"])
		}
		if tx["points"] != float64(25) {
			t.Errorf("Expected 25 points for 2.5kg metal, got %v", tx["points"])
		}
		if tx["status"] != "pending" {
			t.Errorf("Expected status pending, got %v", tx["status"])
		}

		qrData, _ := body["qrData"].(string)
		if !strings.HasPrefix(qrData, "TRANSACTION:") {
			t.Errorf("Expected pipe-delimited qrData, got %q", qrData)
		}
		if !strings.Contains(qrData, "|TYPE:metal|WEIGHT:2.5|POINTS:25|TIME:") {
			t.Errorf("Unexpected qrData layout: %q", qrData)
		}

		qrCode, _ := body["qrCode"].(string)
		if !strings.HasPrefix(qrCode, "data:image/png;base64,") {
			t.Errorf("Expected PNG data URL, got %.40q", qrCode)
		}
	})

	t.Run("Missing fields", func(t *testing.T) {
		rr := postJSON(t, r, "/api/dispose-waste", map[string]any{"wasteType": "metal"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Unknown waste type", func(t *testing.T) {
		rr := postJSON(t, r, "/api/dispose-waste", map[string]any{
			"wasteType": "styrofoam",
			"weight":    1.0,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rr.Code)
		}
		body := decodeBody(t, rr)
		if msg, _ := body["error"].(string); !strings.Contains(msg, "Allowed types") {
			t.Errorf("Expected allowed-types hint, got %q", msg)
		}
	})

	t.Run("Negative weight", func(t *testing.T) {
		rr := postJSON(t, r, "/api/dispose-waste", map[string]any{
			"wasteType": "metal",
			"weight":    -1.0,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rr.Code)
		}
	})
}

func TestWasteFlow(t *testing.T) {
	server := NewBinServer(store.NewBinMemory())
	r := server.Router()

	for _, req := range []map[string]any{
		{"wasteType": "metal", "weight": 2.5},
		{"wasteType": "metal", "weight": 1.5},
		{"wasteType": "paper", "weight": 1.0},
	} {
		if rr := postJSON(t, r, "/api/dispose-waste", req); rr.Code != http.StatusOK {
			t.Fatalf("Disposal failed with status %d", rr.Code)
		}
	}

	rr := getJSON(t, r, "/api/waste-flow")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	body := decodeBody(t, rr)
	summary, _ := body["summary"].(map[string]any)
	if summary["totalTransactions"] != float64(3) {
		t.Errorf("Expected 3 transactions, got %v", summary["totalTransactions"])
	}
	if summary["totalPointsGenerated"] != float64(43) {
		t.Errorf("Expected 43 total points, got %v", summary["totalPointsGenerated"])
	}

	flow, _ := body["flowData"].(map[string]any)
	metal, _ := flow["metal"].(map[string]any)
	if metal["count"] != float64(2) {
		t.Errorf("Expected 2 metal disposals, got %v", metal["count"])
	}
}

func TestListTransactions(t *testing.T) {
	server := NewBinServer(store.NewBinMemory())
	r := server.Router()

	rr := getJSON(t, r, "/api/transactions")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["total"] != float64(0) {
		t.Errorf("Expected empty log, got total %v", body["total"])
	}

	postJSON(t, r, "/api/dispose-waste", map[string]any{"wasteType": "glass", "weight": 2.0})

	rr = getJSON(t, r, "/api/transactions")
	body = decodeBody(t, rr)
	if body["total"] != float64(1) {
		t.Errorf("Expected 1 transaction, got %v", body["total"])
	}
}

func TestBinUsers(t *testing.T) {
	server := NewBinServer(store.NewBinMemory())
	r := server.Router()

	t.Run("Create user", func(t *testing.T) {
		rr := postJSON(t, r, "/api/users", map[string]any{
			"name":  "Ann",
			"email": "ann@x.com",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rr.Code)
		}
		body := decodeBody(t, rr)
		if body["message"] != "User created successfully" {
			t.Errorf("Expected creation message, got %v", body["message"])
		}
	})

	t.Run("Get-or-create is idempotent by email", func(t *testing.T) {
		rr := postJSON(t, r, "/api/users", map[string]any{
			"name":  "Ann Again",
			"email": "ann@x.com",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rr.Code)
		}
		body := decodeBody(t, rr)
		if _, hasMessage := body["message"]; hasMessage {
			t.Errorf("Expected no creation message for existing user, got %v", body["message"])
		}
		user, _ := body["user"].(map[string]any)
		if user["name"] != "Ann" {
			t.Errorf("Expected original name kept, got %v", user["name"])
		}
	})

	t.Run("Missing fields", func(t *testing.T) {
		rr := postJSON(t, r, "/api/users", map[string]any{"name": "NoEmail"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rr.Code)
		}
	})

	t.Run("Unknown user", func(t *testing.T) {
		rr := getJSON(t, r, "/api/users/USER_missing")
		if rr.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", rr.Code)
		}
	})
}
