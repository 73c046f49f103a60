package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes how a customer settles a sale at checkout.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "Cash"
	PaymentMethodCard PaymentMethod = "Card"
	// PaymentMethodQR settles out-of-band: the backend returns a QR payload
	// and the sale stays pending until an explicit verification.
	PaymentMethodQR PaymentMethod = "QR"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodQR,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsDeferred reports whether the method settles through payment verification.
func (p PaymentMethod) IsDeferred() bool {
	return p == PaymentMethodQR
}

// ParsePaymentMethod converts raw input into a PaymentMethod. Matching is
// case-insensitive and "AsyncQR" is accepted for QR.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "AsyncQR") {
		return PaymentMethodQR, nil
	}
	for _, candidate := range validPaymentMethods {
		if strings.EqualFold(string(candidate), value) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
