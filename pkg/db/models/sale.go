package models

import (
	"time"

	"github.com/angelmondragon/retaildesk/pkg/enums"
	"github.com/shopspring/decimal"
)

// Sale is a checkout. QR sales carry the payment payload and its md5 until
// they are paid.
type Sale struct {
	ID            int64               `gorm:"column:id;primaryKey;autoIncrement"`
	CustomerID    int64               `gorm:"column:customer_id;not null"`
	SoldBy        int64               `gorm:"column:sold_by;not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`
	Status        enums.SaleStatus    `gorm:"column:status;not null"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;not null"`
	Note          string              `gorm:"column:note;not null;default:''"`
	QRString      *string             `gorm:"column:qr_string"`
	MD5           *string             `gorm:"column:md5;index"`
	SettledAt     *time.Time          `gorm:"column:settled_at"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	Items         []SaleItem          `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

type SaleItem struct {
	ID              int64           `gorm:"column:id;primaryKey;autoIncrement"`
	SaleID          int64           `gorm:"column:sale_id;not null;index"`
	ProductID       int64           `gorm:"column:product_id;not null"`
	ProductName     string          `gorm:"column:product_name;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;not null"`
	DiscountPercent decimal.Decimal `gorm:"column:discount_percent;not null"`
	LineTotal       decimal.Decimal `gorm:"column:line_total;not null"`
}
