package enums

// CheckoutState tracks a checkout from cart building to resolution.
type CheckoutState string

const (
	CheckoutStateBuilding             CheckoutState = "building"
	CheckoutStateSubmitting           CheckoutState = "submitting"
	CheckoutStateCompleted            CheckoutState = "completed"
	CheckoutStateAwaitingVerification CheckoutState = "awaiting_verification"
	CheckoutStateVerified             CheckoutState = "verified"
	CheckoutStateVerifyFailed         CheckoutState = "verify_failed"
	CheckoutStateFailed               CheckoutState = "failed"
	CheckoutStateCancelled            CheckoutState = "cancelled"
)

// String implements fmt.Stringer.
func (s CheckoutState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition happens without a retry.
func (s CheckoutState) IsTerminal() bool {
	switch s {
	case CheckoutStateCompleted,
		CheckoutStateVerified,
		CheckoutStateVerifyFailed,
		CheckoutStateFailed,
		CheckoutStateCancelled:
		return true
	}
	return false
}

// IsSuccess reports whether the sale was settled.
func (s CheckoutState) IsSuccess() bool {
	return s == CheckoutStateCompleted || s == CheckoutStateVerified
}
