package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item and its on-hand stock.
type Product struct {
	ID            int64           `gorm:"column:id;primaryKey;autoIncrement"`
	SKU           string          `gorm:"column:sku;not null;uniqueIndex"`
	Name          string          `gorm:"column:name;not null"`
	Category      string          `gorm:"column:category;not null;default:''"`
	Price         decimal.Decimal `gorm:"column:price;not null"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
