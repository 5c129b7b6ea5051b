package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// BarcodePrefix starts every generated barcode.
const BarcodePrefix = "INV"

// GenerateBarcode returns "INV" followed by the last ten digits of the current
// unix millisecond timestamp and four random digits. Uniqueness is enforced by
// the store; this only makes collisions unlikely.
func GenerateBarcode() string {
	return generateBarcodeAt(time.Now())
}

func generateBarcodeAt(now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ts) > 10 {
		ts = ts[len(ts)-10:]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 10000)
	}
	return fmt.Sprintf("%s%s%04d", BarcodePrefix, ts, n.Int64())
}
