package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/retaildesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/retaildesk/pkg/errors"
	"github.com/angelmondragon/retaildesk/pkg/types"
)

type stubSalesService struct {
	checkoutReq types.CheckoutRequest
	checkout    *types.CheckoutResponse
	verify      *types.VerifyPaymentResponse
	updateID    int64
	listLimit   int
	err         error
}

func (s *stubSalesService) Checkout(ctx context.Context, req types.CheckoutRequest) (*types.CheckoutResponse, error) {
	s.checkoutReq = req
	return s.checkout, s.err
}

func (s *stubSalesService) VerifyPayment(ctx context.Context, req types.VerifyPaymentRequest) (*types.VerifyPaymentResponse, error) {
	return s.verify, s.err
}

func (s *stubSalesService) Settle(ctx context.Context, md5 string) (*types.Sale, error) {
	return &types.Sale{ID: 1, Status: enums.SaleStatusPending}, s.err
}

func (s *stubSalesService) Update(ctx context.Context, id int64, patch types.SalePatch) (*types.Sale, error) {
	s.updateID = id
	return &types.Sale{ID: id}, s.err
}

func (s *stubSalesService) Get(ctx context.Context, id int64) (*types.Sale, error) {
	return &types.Sale{ID: id}, s.err
}

func (s *stubSalesService) List(ctx context.Context, limit int) ([]types.Sale, error) {
	s.listLimit = limit
	return []types.Sale{}, s.err
}

func TestSalesCheckoutNormalizesPaymentMethod(t *testing.T) {
	svc := &stubSalesService{checkout: &types.CheckoutResponse{
		Sale:     types.Sale{ID: 9, Status: enums.SaleStatusPending, TotalAmount: decimal.NewFromInt(20)},
		QRString: "RDPAY|v1|sale=9",
		MD5:      "0123456789abcdef0123456789abcdef",
	}}
	handler := SalesCheckout(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/sales/checkout", strings.NewReader(
		`{"customer_id":1,"sold_by":2,"payment_method":"AsyncQR","items":[{"product_id":3,"quantity":2,"discount_percent":"5"}]}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.checkoutReq.PaymentMethod != enums.PaymentMethodQR {
		t.Fatalf("expected QR method, got %q", svc.checkoutReq.PaymentMethod)
	}
	if !svc.checkoutReq.Items[0].DiscountPercent.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("discount not decoded: %s", svc.checkoutReq.Items[0].DiscountPercent)
	}

	var envelope struct {
		Data types.CheckoutResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.MD5 != svc.checkout.MD5 || envelope.Data.Sale.ID != 9 {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestSalesCheckoutRejectsUnknownMethod(t *testing.T) {
	svc := &stubSalesService{}
	req := httptest.NewRequest(http.MethodPost, "/sales/checkout", strings.NewReader(
		`{"customer_id":1,"sold_by":2,"payment_method":"Barter","items":[{"product_id":3,"quantity":1}]}`))
	resp := httptest.NewRecorder()
	SalesCheckout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.checkoutReq.CustomerID != 0 {
		t.Fatalf("service must not be called")
	}
}

func TestSalesCheckoutSurfacesStockExceeded(t *testing.T) {
	svc := &stubSalesService{err: pkgerrors.New(pkgerrors.CodeStockExceeded, "only 1 of Rice in stock")}
	req := httptest.NewRequest(http.MethodPost, "/sales/checkout", strings.NewReader(
		`{"customer_id":1,"sold_by":2,"payment_method":"Cash","items":[{"product_id":3,"quantity":5}]}`))
	resp := httptest.NewRecorder()
	SalesCheckout(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeStockExceeded) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
}

func TestSalesVerifyPaymentValidatesDigest(t *testing.T) {
	svc := &stubSalesService{verify: &types.VerifyPaymentResponse{Status: true}}
	req := httptest.NewRequest(http.MethodPost, "/sales/verify-payment", strings.NewReader(`{"sale_id":4,"md5":"nothex"}`))
	resp := httptest.NewRecorder()
	SalesVerifyPayment(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/sales/verify-payment", strings.NewReader(`{"sale_id":4,"md5":"0123456789abcdef0123456789abcdef"}`))
	resp = httptest.NewRecorder()
	SalesVerifyPayment(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data types.VerifyPaymentResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !envelope.Data.Status {
		t.Fatalf("expected status true")
	}
}

func TestSalesUpdateReadsPathID(t *testing.T) {
	svc := &stubSalesService{}
	r := chi.NewRouter()
	r.Patch("/sales/{id}", SalesUpdate(svc, nil))

	req := httptest.NewRequest(http.MethodPatch, "/sales/12", strings.NewReader(`{"note":"refund"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.updateID != 12 {
		t.Fatalf("expected id 12, got %d", svc.updateID)
	}

	req = httptest.NewRequest(http.MethodPatch, "/sales/abc", strings.NewReader(`{"note":"refund"}`))
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestSalesListParsesLimit(t *testing.T) {
	svc := &stubSalesService{}
	resp := httptest.NewRecorder()
	SalesList(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/sales?limit=10", nil))
	if resp.Code != http.StatusOK || svc.listLimit != 10 {
		t.Fatalf("expected limit 10, got %d (status %d)", svc.listLimit, resp.Code)
	}
}
