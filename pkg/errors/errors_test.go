package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeStockExceeded, status: http.StatusConflict, publicMsg: "cannot exceed available stock", detailsOK: true},
		{code: CodeEmptyCart, status: http.StatusBadRequest, publicMsg: "cart is empty"},
		{code: CodePaymentFailed, status: http.StatusPaymentRequired, publicMsg: "payment failed", detailsOK: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
	if IsKnown("SOMETHING_UNKNOWN") {
		t.Fatalf("unknown code reported as known")
	}
}

func TestCodeForStatus(t *testing.T) {
	cases := map[int]Code{
		http.StatusBadRequest:          CodeValidation,
		http.StatusUnauthorized:        CodeUnauthorized,
		http.StatusConflict:            CodeConflict,
		http.StatusPaymentRequired:     CodePaymentFailed,
		http.StatusBadGateway:          CodeDependency,
		http.StatusServiceUnavailable:  CodeDependency,
		http.StatusTeapot:              CodeInternal,
		http.StatusUnprocessableEntity: CodeStateConflict,
	}
	for status, want := range cases {
		if got := CodeForStatus(status); got != want {
			t.Fatalf("status %d expected %s got %s", status, want, got)
		}
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing customer")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing customer" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "customer_id"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("connection refused")
	wrapped := Wrap(CodeDependency, cause, "submit checkout")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if !HasCode(fmt.Errorf("outer: %w", wrapped), CodeDependency) {
		t.Fatalf("HasCode should see through wrapping")
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(CodeStockExceeded, "")); got != "cannot exceed available stock" {
		t.Fatalf("expected public message fallback, got %q", got)
	}
	if got := UserMessage(New(CodePaymentFailed, "payment not received")); got != "payment not received" {
		t.Fatalf("expected explicit message, got %q", got)
	}
	if got := UserMessage(stdErrors.New("raw")); got != "internal server error" {
		t.Fatalf("untyped errors must not leak, got %q", got)
	}
}

func TestDumpCapturesPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "sales_md5_key", TableName: "sales"}
	err := Wrap(CodeConflict, pgErr, "insert sale")

	d := Dump(err)
	if d.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", d.Code)
	}
	if d.PGCode != "23505" || d.PGConstraint != "sales_md5_key" {
		t.Fatalf("pg fields not captured: %+v", d)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(d.Chain))
	}
	if _, ok := d.Fields()["pg_code"]; !ok {
		t.Fatalf("fields should include pg_code")
	}
}

func TestDumpNamesGormSentinel(t *testing.T) {
	err := Wrap(CodeNotFound, fmt.Errorf("load sale 9: %w", gorm.ErrRecordNotFound), "sale not found")

	d := Dump(err)
	if d.DBSentinel != "record_not_found" {
		t.Fatalf("expected record_not_found, got %q", d.DBSentinel)
	}
	if d.Fields()["db_sentinel"] != "record_not_found" {
		t.Fatalf("fields should carry the sentinel: %v", d.Fields())
	}
}
