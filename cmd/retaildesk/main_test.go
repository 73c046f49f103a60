package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/retaildesk/api/routes"
	"github.com/angelmondragon/retaildesk/internal/auth"
	"github.com/angelmondragon/retaildesk/internal/cart"
	"github.com/angelmondragon/retaildesk/internal/customers"
	"github.com/angelmondragon/retaildesk/internal/products"
	"github.com/angelmondragon/retaildesk/internal/sales"
	"github.com/angelmondragon/retaildesk/internal/seed"
	"github.com/angelmondragon/retaildesk/internal/users"
	"github.com/angelmondragon/retaildesk/pkg/config"
	"github.com/angelmondragon/retaildesk/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/retaildesk/pkg/errors"
	"github.com/angelmondragon/retaildesk/pkg/logger"
	"github.com/angelmondragon/retaildesk/pkg/security"
	"github.com/angelmondragon/retaildesk/pkg/types"
)

const testPassword = "changeme"

func TestParseLineArg(t *testing.T) {
	arg, err := parseLineArg("4:2:12.5%")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if arg.ProductID != 4 || arg.Quantity != 2 || !arg.Discount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected arg %+v", arg)
	}

	arg, err = parseLineArg("7:1")
	if err != nil || !arg.Discount.IsZero() {
		t.Fatalf("expected zero discount, got %+v err=%v", arg, err)
	}

	for _, raw := range []string{"", "7", "x:1", "0:1", "7:one", "7:1:ten", "1:2:3:4"} {
		if _, err := parseLineArg(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

type fixedLookup map[int64]types.Product

func (f fixedLookup) Product(id int64) (types.Product, bool) {
	p, ok := f[id]
	return p, ok
}

func TestFillCartStopsAtFirstRejectedLine(t *testing.T) {
	c, err := cart.New(fixedLookup{
		1: {ID: 1, Name: "Rice", Price: decimal.NewFromInt(10), StockQuantity: 5},
	})
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	err = fillCart(c, []string{"1:2", "1:9", "1:1"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStockExceeded) {
		t.Fatalf("expected stock exceeded, got %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected only the first line, got %d", c.Len())
	}
}

func newSandbox(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	client := dbtest.Open(t)
	hasher := security.NewHasher(config.PasswordConfig{})
	if _, err := seed.Run(ctx, client, hasher, testPassword, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := &config.Config{JWT: config.JWTConfig{Secret: "cli-secret", Issuer: "retaildesk", ExpirationMinutes: 30}}
	userRepo := users.NewRepository(client.DB())
	authSvc, err := auth.NewService(auth.ServiceParams{UserRepo: userRepo, Passwords: hasher, JWTConfig: cfg.JWT})
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	productRepo := products.NewRepository(client.DB())
	salesSvc, err := sales.NewService(sales.ServiceParams{
		Tx:       client,
		Sales:    sales.NewRepository(client.DB()),
		Products: productRepo,
	})
	if err != nil {
		t.Fatalf("sales service: %v", err)
	}

	srv := httptest.NewServer(routes.NewRouter(routes.Deps{
		Config:    cfg,
		Auth:      authSvc,
		Sales:     salesSvc,
		Products:  productRepo,
		Customers: customers.NewRepository(client.DB()),
		Users:     userRepo,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, srv *httptest.Server, input string) (*app, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{
		Backend:  config.BackendConfig{BaseURL: srv.URL + "/api", Timeout: 5 * time.Second},
		Session:  config.SessionConfig{Store: config.SessionStoreMemory},
		Checkout: config.CheckoutConfig{DefaultMethod: "Cash"},
	}
	out := &bytes.Buffer{}
	a, err := newApp(context.Background(), cfg, logger.Nop(), strings.NewReader(input), out)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, out
}

func productID(t *testing.T, a *app, sku string) types.Product {
	t.Helper()
	list, err := a.client.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	for _, p := range list {
		if p.SKU == sku {
			return p
		}
	}
	t.Fatalf("product %s not found", sku)
	return types.Product{}
}

func TestCommandsRequireLogin(t *testing.T) {
	srv := newSandbox(t)
	a, _ := newTestApp(t, srv, "")
	t.Setenv(envUsername, "")
	t.Setenv(envPassword, "")

	err := runWhoami(context.Background(), a, nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginAndWhoami(t *testing.T) {
	srv := newSandbox(t)
	a, out := newTestApp(t, srv, "")
	ctx := context.Background()

	if err := runLogin(ctx, a, []string{"-u", "staff", "-p", testPassword}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := runWhoami(ctx, a, nil); err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out.String(), "role staff") || !strings.Contains(out.String(), "can open: dashboard, products, sales, customers") {
		t.Fatalf("unexpected whoami output:\n%s", out.String())
	}

	if err := runLogout(ctx, a, nil); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := a.holder.Current(); ok {
		t.Fatal("expected logout to clear the session")
	}
}

func TestCashCheckoutCommand(t *testing.T) {
	srv := newSandbox(t)
	a, out := newTestApp(t, srv, "")
	ctx := context.Background()
	if err := runLogin(ctx, a, []string{"-u", "staff", "-p", testPassword}); err != nil {
		t.Fatalf("login: %v", err)
	}
	rice := productID(t, a, "RICE-5KG")

	err := runCheckout(ctx, a, []string{"-customer", "1", fmt.Sprintf("%d:2:10", rice.ID)})
	if err != nil {
		t.Fatalf("checkout: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "checkout completed") || !strings.Contains(out.String(), "15.30") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
	if got := productID(t, a, "RICE-5KG").StockQuantity; got != rice.StockQuantity-2 {
		t.Fatalf("expected stock %d, got %d", rice.StockQuantity-2, got)
	}
}

func TestQRCheckoutCommandSettlesInSandbox(t *testing.T) {
	srv := newSandbox(t)
	a, out := newTestApp(t, srv, "v\ns\n")
	ctx := context.Background()
	if err := runLogin(ctx, a, []string{"-u", "staff", "-p", testPassword}); err != nil {
		t.Fatalf("login: %v", err)
	}
	oil := productID(t, a, "OIL-1L")

	err := runCheckout(ctx, a, []string{"-customer", "1", "-method", "qr", fmt.Sprintf("%d:1", oil.ID)})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentFailed) {
		t.Fatalf("expected the unsettled verify to fail the payment, got %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "checkout awaiting_verification") || !strings.Contains(out.String(), "reference ") {
		t.Fatalf("expected a pending QR payment:\n%s", out.String())
	}
	wait := strings.Index(out.String(), "generating payment QR...")
	if wait < 0 || wait > strings.Index(out.String(), "checkout awaiting_verification") {
		t.Fatalf("expected the QR wait line before the pending payment:\n%s", out.String())
	}
	if got := productID(t, a, "OIL-1L").StockQuantity; got != oil.StockQuantity {
		t.Fatalf("stock must not move before settlement, got %d", got)
	}
}

func TestQRCheckoutCommandVerifiesAfterSettle(t *testing.T) {
	srv := newSandbox(t)
	a, out := newTestApp(t, srv, "s\n")
	ctx := context.Background()
	if err := runLogin(ctx, a, []string{"-u", "staff", "-p", testPassword}); err != nil {
		t.Fatalf("login: %v", err)
	}
	oil := productID(t, a, "OIL-1L")

	if err := runCheckout(ctx, a, []string{"-customer", "1", "-method", "QR", fmt.Sprintf("%d:3", oil.ID)}); err != nil {
		t.Fatalf("checkout: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "checkout verified") {
		t.Fatalf("expected a verified checkout:\n%s", out.String())
	}
	if got := productID(t, a, "OIL-1L").StockQuantity; got != oil.StockQuantity-3 {
		t.Fatalf("expected stock %d, got %d", oil.StockQuantity-3, got)
	}
}

func TestSaleEditIsGatedToManagers(t *testing.T) {
	srv := newSandbox(t)
	ctx := context.Background()

	staff, _ := newTestApp(t, srv, "")
	if err := runLogin(ctx, staff, []string{"-u", "staff", "-p", testPassword}); err != nil {
		t.Fatalf("login: %v", err)
	}
	rice := productID(t, staff, "RICE-5KG")
	if err := runCheckout(ctx, staff, []string{"-customer", "1", fmt.Sprintf("%d:1", rice.ID)}); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	list, err := staff.client.ListSales(ctx)
	if err != nil || len(list) == 0 {
		t.Fatalf("list sales: %v", err)
	}
	saleArg := fmt.Sprintf("%d", list[0].ID)

	err = runSaleEdit(ctx, staff, []string{"-id", saleArg, "-note", "fixed"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected staff to be forbidden, got %v", err)
	}

	manager, out := newTestApp(t, srv, "")
	if err := runLogin(ctx, manager, []string{"-u", "manager", "-p", testPassword}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := runSaleEdit(ctx, manager, []string{"-id", saleArg, "-total", "7.999", "-note", "price match"}); err != nil {
		t.Fatalf("sale edit: %v", err)
	}
	if !strings.Contains(out.String(), "8.00") || !strings.Contains(out.String(), "price match") {
		t.Fatalf("unexpected sale output:\n%s", out.String())
	}
}
