package voucher

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// DataURL renders the token as a QR code PNG wrapped in a data URL, ready to
// drop into an <img> tag. The textual token remains the authoritative form;
// the image is a presentation convenience.
func DataURL(token string) (string, error) {
	png, err := qrcode.Encode(token, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
