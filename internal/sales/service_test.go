package sales

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/retaildesk/internal/customers"
	"github.com/angelmondragon/retaildesk/internal/products"
	"github.com/angelmondragon/retaildesk/internal/users"
	"github.com/angelmondragon/retaildesk/pkg/db/dbtest"
	"github.com/angelmondragon/retaildesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/retaildesk/pkg/errors"
	"github.com/angelmondragon/retaildesk/pkg/types"
	"github.com/shopspring/decimal"
)

type fixture struct {
	svc        Service
	products   *products.Repository
	customerID int64
	sellerID   int64
	oilID      int64
	riceID     int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	ctx := context.Background()

	seller, err := users.NewRepository(client.DB()).Create(ctx, users.CreateUserDTO{
		Username: "staff", FullName: "Staff", Role: enums.RoleStaff, PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	customer, err := customers.NewRepository(client.DB()).Create(ctx, customers.CreateCustomerDTO{Name: "Walk-in"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	productRepo := products.NewRepository(client.DB())
	oil, err := productRepo.Create(ctx, products.CreateProductDTO{SKU: "oil", Name: "Oil", Price: decimal.NewFromInt(10), StockQuantity: 5})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	rice, err := productRepo.Create(ctx, products.CreateProductDTO{SKU: "rice", Name: "Rice", Price: decimal.NewFromInt(50), StockQuantity: 2})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	svc, err := NewService(ServiceParams{
		Tx:       client,
		Sales:    NewRepository(client.DB()),
		Products: productRepo,
		Merchant: "test-shop",
		Now:      func() time.Time { return time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return fixture{
		svc:        svc,
		products:   productRepo,
		customerID: customer.ID,
		sellerID:   seller.ID,
		oilID:      oil.ID,
		riceID:     rice.ID,
	}
}

func (f fixture) request(method enums.PaymentMethod, items ...types.CheckoutItem) types.CheckoutRequest {
	return types.CheckoutRequest{CustomerID: f.customerID, SoldBy: f.sellerID, PaymentMethod: method, Items: items}
}

func (f fixture) stock(t *testing.T, id int64) int {
	t.Helper()
	p, err := f.products.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find product: %v", err)
	}
	return p.StockQuantity
}

func TestCheckoutCashDecrementsStock(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Checkout(context.Background(), f.request(enums.PaymentMethodCash,
		types.CheckoutItem{ProductID: f.oilID, Quantity: 2},
		types.CheckoutItem{ProductID: f.riceID, Quantity: 1, DiscountPercent: decimal.NewFromInt(10)},
	))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if resp.AwaitsPayment() {
		t.Fatalf("cash sale should not carry a qr")
	}
	if resp.Sale.Status != enums.SaleStatusPaid {
		t.Fatalf("expected paid, got %s", resp.Sale.Status)
	}
	if !resp.Sale.TotalAmount.Equal(decimal.RequireFromString("65")) {
		t.Fatalf("expected 65, got %s", resp.Sale.TotalAmount)
	}
	if len(resp.Sale.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Sale.Items))
	}
	if got := f.stock(t, f.oilID); got != 3 {
		t.Fatalf("expected oil stock 3, got %d", got)
	}
	if got := f.stock(t, f.riceID); got != 1 {
		t.Fatalf("expected rice stock 1, got %d", got)
	}
}

func TestCheckoutAggregatesDuplicateLinesForStock(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), f.request(enums.PaymentMethodCash,
		types.CheckoutItem{ProductID: f.riceID, Quantity: 1},
		types.CheckoutItem{ProductID: f.riceID, Quantity: 2},
	))
	if !pkgerrors.HasCode(err, pkgerrors.CodeStockExceeded) {
		t.Fatalf("expected stock exceeded, got %v", err)
	}
	if got := f.stock(t, f.riceID); got != 2 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
	list, err := f.svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("failed checkout must not persist a sale")
	}
}

func TestCheckoutRejectsUnknownReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.request(enums.PaymentMethodCash, types.CheckoutItem{ProductID: 999, Quantity: 1})
	if _, err := f.svc.Checkout(ctx, req); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}

	req = f.request(enums.PaymentMethodCash, types.CheckoutItem{ProductID: f.oilID, Quantity: 1})
	req.CustomerID = 999
	if _, err := f.svc.Checkout(ctx, req); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected customer not found, got %v", err)
	}

	req = f.request("Barter", types.CheckoutItem{ProductID: f.oilID, Quantity: 1})
	if _, err := f.svc.Checkout(ctx, req); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	req = f.request(enums.PaymentMethodCash, types.CheckoutItem{ProductID: f.oilID, Quantity: 1, DiscountPercent: decimal.NewFromInt(120)})
	if _, err := f.svc.Checkout(ctx, req); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected discount validation error, got %v", err)
	}

	if _, err := f.svc.Checkout(ctx, f.request(enums.PaymentMethodCash)); !pkgerrors.HasCode(err, pkgerrors.CodeEmptyCart) {
		t.Fatalf("expected empty cart, got %v", err)
	}
}

func TestQRCheckoutVerifyFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Checkout(ctx, f.request(enums.PaymentMethodQR, types.CheckoutItem{ProductID: f.oilID, Quantity: 2}))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !resp.AwaitsPayment() || len(resp.MD5) != 32 {
		t.Fatalf("expected qr payload and md5, got %+v", resp)
	}
	if resp.MD5 != payloadDigest(resp.QRString) {
		t.Fatalf("md5 must be the digest of the payload")
	}
	if resp.Sale.Status != enums.SaleStatusPending {
		t.Fatalf("expected pending, got %s", resp.Sale.Status)
	}
	if got := f.stock(t, f.oilID); got != 5 {
		t.Fatalf("pending sale must not touch stock, got %d", got)
	}

	verify := types.VerifyPaymentRequest{SaleID: resp.Sale.ID, MD5: resp.MD5}
	out, err := f.svc.VerifyPayment(ctx, verify)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Status {
		t.Fatalf("unsettled payment must not verify")
	}

	if _, err := f.svc.Settle(ctx, resp.MD5); err != nil {
		t.Fatalf("settle: %v", err)
	}
	out, err = f.svc.VerifyPayment(ctx, verify)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !out.Status || out.Sale == nil || out.Sale.Status != enums.SaleStatusPaid {
		t.Fatalf("expected confirmed payment, got %+v", out)
	}
	if got := f.stock(t, f.oilID); got != 3 {
		t.Fatalf("expected stock 3 after verification, got %d", got)
	}

	out, err = f.svc.VerifyPayment(ctx, verify)
	if err != nil || !out.Status {
		t.Fatalf("second verify should confirm again, got %+v %v", out, err)
	}
	if got := f.stock(t, f.oilID); got != 3 {
		t.Fatalf("second verify must not decrement again, got %d", got)
	}
}

func TestVerifyVoidsSettledSaleWithoutStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending, err := f.svc.Checkout(ctx, f.request(enums.PaymentMethodQR, types.CheckoutItem{ProductID: f.oilID, Quantity: 2}))
	if err != nil {
		t.Fatalf("qr checkout: %v", err)
	}
	if _, err := f.svc.Checkout(ctx, f.request(enums.PaymentMethodCash, types.CheckoutItem{ProductID: f.oilID, Quantity: 4})); err != nil {
		t.Fatalf("cash checkout: %v", err)
	}
	if _, err := f.svc.Settle(ctx, pending.MD5); err != nil {
		t.Fatalf("settle: %v", err)
	}

	verify := types.VerifyPaymentRequest{SaleID: pending.Sale.ID, MD5: pending.MD5}
	out, err := f.svc.VerifyPayment(ctx, verify)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Status || out.Message != "insufficient stock to fulfil payment; sale cancelled" {
		t.Fatalf("expected a refused payment, got %+v", out)
	}
	sale, err := f.svc.Get(ctx, pending.Sale.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sale.Status != enums.SaleStatusCancelled {
		t.Fatalf("expected cancelled sale, got %s", sale.Status)
	}
	if got := f.stock(t, f.oilID); got != 1 {
		t.Fatalf("voided sale must not touch stock, got %d", got)
	}

	out, err = f.svc.VerifyPayment(ctx, verify)
	if err != nil || out.Status || out.Message != "sale was cancelled" {
		t.Fatalf("expected the voided sale to stay cancelled, got %+v %v", out, err)
	}
}

func TestVerifyPaymentRejectsWrongDigest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp, err := f.svc.Checkout(ctx, f.request(enums.PaymentMethodQR, types.CheckoutItem{ProductID: f.oilID, Quantity: 1}))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	_, err = f.svc.VerifyPayment(ctx, types.VerifyPaymentRequest{SaleID: resp.Sale.ID, MD5: "00000000000000000000000000000000"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = f.svc.VerifyPayment(ctx, types.VerifyPaymentRequest{SaleID: 999, MD5: resp.MD5})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.Settle(ctx, "ffffffffffffffffffffffffffffffff"); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected settle not found, got %v", err)
	}
}

func TestUpdateSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp, err := f.svc.Checkout(ctx, f.request(enums.PaymentMethodCard, types.CheckoutItem{ProductID: f.oilID, Quantity: 1}))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	total := decimal.RequireFromString("8.505")
	note := " loyalty adjustment "
	sale, err := f.svc.Update(ctx, resp.Sale.ID, types.SalePatch{TotalAmount: &total, Note: &note})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !sale.TotalAmount.Equal(decimal.RequireFromString("8.51")) || sale.Note != "loyalty adjustment" {
		t.Fatalf("unexpected sale after update %+v", sale)
	}

	if _, err := f.svc.Update(ctx, resp.Sale.ID, types.SalePatch{}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation for empty patch, got %v", err)
	}
	negative := decimal.NewFromInt(-1)
	if _, err := f.svc.Update(ctx, resp.Sale.ID, types.SalePatch{TotalAmount: &negative}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation for negative total, got %v", err)
	}
	if _, err := f.svc.Update(ctx, 999, types.SalePatch{Note: &note}); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}
}
