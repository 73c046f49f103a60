package cron

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/retaildesk/internal/sales"
	"github.com/angelmondragon/retaildesk/internal/seed"
	"github.com/angelmondragon/retaildesk/pkg/db/dbtest"
	"github.com/angelmondragon/retaildesk/pkg/db/models"
	"github.com/angelmondragon/retaildesk/pkg/enums"
	"github.com/angelmondragon/retaildesk/pkg/logger"
)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func ptr(s string) *string { return &s }

func TestPendingSaleJobCancelsOnlyStalePendingSales(t *testing.T) {
	ctx := context.Background()
	client := dbtest.Open(t)
	if _, err := seed.Run(ctx, client, plainHasher{}, "pw", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo := sales.NewRepository(client.DB())
	now := time.Now().UTC()

	newSale := func(status enums.SaleStatus, age time.Duration) *models.Sale {
		s := &models.Sale{
			CustomerID:    1,
			SoldBy:        1,
			PaymentMethod: enums.PaymentMethodQR,
			Status:        status,
			TotalAmount:   decimal.RequireFromString("4.20"),
			QRString:      ptr("payload"),
			MD5:           ptr("0123456789abcdef0123456789abcdef"),
			CreatedAt:     now.Add(-age),
		}
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create sale: %v", err)
		}
		return s
	}
	stale := newSale(enums.SaleStatusPending, 2*time.Hour)
	fresh := newSale(enums.SaleStatusPending, time.Minute)
	paid := newSale(enums.SaleStatusPaid, 3*time.Hour)
	settled := newSale(enums.SaleStatusPending, 2*time.Hour)
	if err := repo.MarkSettled(ctx, settled.ID, now.Add(-time.Hour)); err != nil {
		t.Fatalf("settle: %v", err)
	}

	job, err := NewPendingSaleJob(PendingSaleJobParams{
		Logger: logger.Nop(),
		Sales:  repo,
		TTL:    30 * time.Minute,
		Now:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	affected, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected one cancelled sale, got %d", affected)
	}

	want := map[int64]enums.SaleStatus{
		stale.ID:   enums.SaleStatusCancelled,
		fresh.ID:   enums.SaleStatusPending,
		paid.ID:    enums.SaleStatusPaid,
		settled.ID: enums.SaleStatusPending,
	}
	for id, status := range want {
		got, err := repo.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("find %d: %v", id, err)
		}
		if got.Status != status {
			t.Fatalf("sale %d: expected %s, got %s", id, status, got.Status)
		}
	}
	cancelled, _ := repo.FindByID(ctx, stale.ID)
	if cancelled.QRString != nil || cancelled.MD5 == nil {
		t.Fatalf("expected payload dropped and digest kept, got qr=%v md5=%v", cancelled.QRString, cancelled.MD5)
	}

	affected, err = job.Run(ctx)
	if err != nil || affected != 0 {
		t.Fatalf("second run should be a no-op, got %d %v", affected, err)
	}
}

func TestNewPendingSaleJobValidatesParams(t *testing.T) {
	if _, err := NewPendingSaleJob(PendingSaleJobParams{Logger: logger.Nop(), TTL: time.Minute}); err == nil {
		t.Fatal("expected error without repository")
	}
	if _, err := NewPendingSaleJob(PendingSaleJobParams{Logger: logger.Nop(), Sales: sales.NewRepository(nil)}); err == nil {
		t.Fatal("expected error without ttl")
	}
}
