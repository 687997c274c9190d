// Package voucher implements the token that couples the smart-bin and wallet
// services. A disposal transaction is encoded as a pipe-delimited string,
// carried out of band (typically inside a QR code) and decoded by the wallet
// service. An older JSON object form is still accepted on decode.
package voucher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"recycle-rewards/internal/model"
)

var (
	// ErrMalformed means the payload could not be parsed at all.
	ErrMalformed = errors.New("invalid qr code data format")
	// ErrIncomplete means the payload parsed but lacks a required field
	// (transaction id, waste type or points). Decoding fails closed.
	ErrIncomplete = errors.New("invalid transaction data in qr code")
)

// Data is the canonical decoded form both token variants converge to.
type Data struct {
	TransactionID string  `json:"transactionId"`
	WasteType     string  `json:"wasteType"`
	Weight        float64 `json:"weight"`
	Points        int     `json:"points"`
	Timestamp     string  `json:"timestamp"`
}

// Encode renders the transaction as the scannable token string. Field order
// and labels are fixed. The format has no escaping: a field containing '|'
// or ':' would corrupt parsing. That fragility is part of the wire contract
// and is kept as is.
func Encode(tx model.DisposalTransaction) string {
	return fmt.Sprintf("TRANSACTION:%s|TYPE:%s|WEIGHT:%s|POINTS:%d|TIME:%s",
		tx.ID, tx.WasteType, formatWeight(tx.Weight), tx.Points, tx.Timestamp)
}

// Decode parses either token variant. A payload starting with '{' is treated
// as the legacy JSON object; anything else as the pipe-delimited form.
func Decode(raw string) (Data, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Data{}, ErrMalformed
	}

	var d Data
	if strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return Data{}, ErrMalformed
		}
	} else {
		var err error
		if d, err = decodePipe(raw); err != nil {
			return Data{}, err
		}
	}

	if d.TransactionID == "" || d.WasteType == "" || d.Points == 0 {
		return Data{}, ErrIncomplete
	}
	return d, nil
}

// decodePipe splits each field on the first colon only, so the timestamp,
// which itself contains colons, survives the round trip intact.
func decodePipe(raw string) (Data, error) {
	var d Data
	for _, part := range strings.Split(raw, "|") {
		key, value, ok := strings.Cut(part, ":")
		if !ok || value == "" {
			continue
		}
		switch key {
		case "TRANSACTION":
			d.TransactionID = value
		case "TYPE":
			d.WasteType = value
		case "WEIGHT":
			w, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Data{}, ErrMalformed
			}
			d.Weight = w
		case "POINTS":
			p, err := strconv.Atoi(value)
			if err != nil {
				return Data{}, ErrMalformed
			}
			d.Points = p
		case "TIME":
			d.Timestamp = value
		}
	}
	return d, nil
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'g', -1, 64)
}
