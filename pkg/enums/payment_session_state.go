package enums

// PaymentSessionState tracks a deferred QR payment on the client.
type PaymentSessionState string

const (
	PaymentSessionIdle                 PaymentSessionState = "idle"
	PaymentSessionAwaitingQR           PaymentSessionState = "awaiting_qr"
	PaymentSessionAwaitingVerification PaymentSessionState = "awaiting_verification"
	PaymentSessionVerified             PaymentSessionState = "verified"
	PaymentSessionFailed               PaymentSessionState = "failed"
	PaymentSessionCancelled            PaymentSessionState = "cancelled"
)

// String implements fmt.Stringer.
func (s PaymentSessionState) String() string {
	return string(s)
}

// IsResolved reports whether the session reached an outcome.
func (s PaymentSessionState) IsResolved() bool {
	return s == PaymentSessionVerified || s == PaymentSessionFailed || s == PaymentSessionCancelled
}
