package sales

import (
	"context"
	"time"

	"github.com/angelmondragon/retaildesk/pkg/db/models"
	"github.com/angelmondragon/retaildesk/pkg/enums"
	"gorm.io/gorm"
)

// Repository persists sales and their line items.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts the sale together with its items.
func (r *Repository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&sale, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *Repository) FindByMD5(ctx context.Context, md5 string) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).Where("md5 = ?", md5).First(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// List returns the most recent sales first.
func (r *Repository) List(ctx context.Context, limit int) ([]models.Sale, error) {
	var out []models.Sale
	q := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// AttachPayment stores the QR payload and its digest on a pending sale.
func (r *Repository) AttachPayment(ctx context.Context, id int64, qr, md5 string) error {
	return r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ?", id).
		Updates(map[string]any{"qr_string": qr, "md5": md5}).Error
}

// MarkPaid flips a pending sale to paid. It reports false when the sale was
// not pending, which makes concurrent verifications settle exactly once.
func (r *Repository) MarkPaid(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND status = ?", id, enums.SaleStatusPending).
		Updates(map[string]any{"status": enums.SaleStatusPaid, "paid_at": at})
	return res.RowsAffected == 1, res.Error
}

// MarkSettled records that the payment rail reported the QR as paid.
func (r *Repository) MarkSettled(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND settled_at IS NULL", id).
		UpdateColumn("settled_at", at).Error
}

// Update applies column changes to a sale.
func (r *Repository) Update(ctx context.Context, id int64, changes map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ?", id).
		Updates(changes).Error
}

// FindPendingBefore returns unpaid, unsettled sales created before cutoff,
// oldest first. A settled sale is waiting on verification, not abandoned.
func (r *Repository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Sale, error) {
	var out []models.Sale
	q := r.db.WithContext(ctx).
		Where("status = ? AND settled_at IS NULL AND created_at < ?", enums.SaleStatusPending, cutoff).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// Cancel flips a pending sale to cancelled and drops its QR payload. The md5
// stays so later verifications resolve to "cancelled". It reports false when
// the sale was no longer pending or its payment has already settled.
func (r *Repository) Cancel(ctx context.Context, id int64) (bool, error) {
	return r.cancelWhere(ctx, "id = ? AND status = ? AND settled_at IS NULL", id, enums.SaleStatusPending)
}

// Void cancels a pending sale even when its payment settled. Verification
// uses it when the settled sale can no longer be fulfilled.
func (r *Repository) Void(ctx context.Context, id int64) (bool, error) {
	return r.cancelWhere(ctx, "id = ? AND status = ?", id, enums.SaleStatusPending)
}

func (r *Repository) cancelWhere(ctx context.Context, query string, args ...any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where(query, args...).
		Updates(map[string]any{"status": enums.SaleStatusCancelled, "qr_string": nil})
	return res.RowsAffected == 1, res.Error
}
