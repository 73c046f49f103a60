package enums

import "testing"

func TestParsePaymentMethodIsCaseInsensitive(t *testing.T) {
	method, err := ParsePaymentMethod(" qr ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if method != PaymentMethodQR || !method.IsDeferred() {
		t.Fatalf("expected deferred QR method, got %q", method)
	}
	if PaymentMethodCash.IsDeferred() || PaymentMethodCard.IsDeferred() {
		t.Fatalf("cash and card settle synchronously")
	}
	if method, err := ParsePaymentMethod("asyncqr"); err != nil || method != PaymentMethodQR {
		t.Fatalf("expected AsyncQR alias to parse as QR, got %q err=%v", method, err)
	}
	if _, err := ParsePaymentMethod("cheque"); err == nil {
		t.Fatalf("expected unknown method to fail")
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("Manager")
	if err != nil || role != RoleManager {
		t.Fatalf("expected manager, got %q err=%v", role, err)
	}
	if Role("owner").IsValid() {
		t.Fatalf("owner is not a dashboard role")
	}
}

func TestCheckoutStateTerminality(t *testing.T) {
	terminal := []CheckoutState{
		CheckoutStateCompleted,
		CheckoutStateVerified,
		CheckoutStateVerifyFailed,
		CheckoutStateFailed,
		CheckoutStateCancelled,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []CheckoutState{CheckoutStateBuilding, CheckoutStateSubmitting, CheckoutStateAwaitingVerification} {
		if s.IsTerminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
	if !CheckoutStateVerified.IsSuccess() || CheckoutStateVerifyFailed.IsSuccess() {
		t.Fatalf("unexpected success classification")
	}
}

func TestPaymentSessionResolution(t *testing.T) {
	if PaymentSessionAwaitingVerification.IsResolved() {
		t.Fatalf("awaiting verification is not resolved")
	}
	if !PaymentSessionCancelled.IsResolved() {
		t.Fatalf("cancelled is resolved")
	}
}
