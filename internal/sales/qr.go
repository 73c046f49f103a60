package sales

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// paymentPayload is the string encoded into the QR the customer scans.
func paymentPayload(merchant string, saleID int64, amount decimal.Decimal) string {
	return fmt.Sprintf("RDPAY|v1|merchant=%s|sale=%d|amount=%s|ref=%s",
		merchant, saleID, amount.StringFixed(2), uuid.NewString())
}

// payloadDigest is the transaction reference the client verifies with.
func payloadDigest(payload string) string {
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}
