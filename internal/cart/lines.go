package cart

import (
	"github.com/angelmondragon/retaildesk/pkg/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ProductLookup resolves products from the current catalog snapshot.
type ProductLookup interface {
	Product(id int64) (types.Product, bool)
}

// Line is one selected product. UnitPrice and StockCap are captured when the
// line is added and never follow later catalog changes.
type Line struct {
	ProductID       int64
	Name            string
	SKU             string
	Quantity        int
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	StockCap        int
}

// Total is unitPrice × quantity × (1 − discount/100), unrounded.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.
		Mul(decimal.NewFromInt(int64(l.Quantity))).
		Mul(hundred.Sub(l.DiscountPercent)).
		Div(hundred)
}

// Display rounds an amount to cents for presentation.
func Display(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
