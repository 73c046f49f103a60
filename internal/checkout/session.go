package checkout

import (
	"time"

	"github.com/angelmondragon/retaildesk/pkg/enums"
)

// PaymentSession tracks a deferred QR payment. The payload and reference are
// cleared once the session resolves.
type PaymentSession struct {
	State          enums.PaymentSessionState
	SaleID         int64
	QRPayload      string
	TransactionRef string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Expired reports whether an expiring session is past its deadline.
func (p PaymentSession) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// Pending reports whether the session still awaits verification.
func (p PaymentSession) Pending() bool {
	return p.State == enums.PaymentSessionAwaitingVerification
}
