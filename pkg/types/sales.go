package types

import (
	"time"

	"github.com/angelmondragon/retaildesk/pkg/enums"
	"github.com/shopspring/decimal"
)

// CheckoutItem is one requested line. DiscountPercent is 0–100.
type CheckoutItem struct {
	ProductID       int64           `json:"product_id" validate:"required,gt=0"`
	Quantity        int             `json:"quantity" validate:"required,gt=0"`
	DiscountPercent decimal.Decimal `json:"discount_percent" validate:"gte=0,lte=100"`
}

// CheckoutRequest is the body of POST /sales/checkout.
type CheckoutRequest struct {
	CustomerID    int64               `json:"customer_id" validate:"required,gt=0"`
	Items         []CheckoutItem      `json:"items" validate:"required,min=1,dive"`
	SoldBy        int64               `json:"sold_by" validate:"required,gt=0"`
	PaymentMethod enums.PaymentMethod `json:"payment_method" validate:"required"`
}

type SaleItem struct {
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name,omitempty"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

type Sale struct {
	ID            int64               `json:"id"`
	CustomerID    int64               `json:"customer_id"`
	SoldBy        int64               `json:"sold_by"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Status        enums.SaleStatus    `json:"status"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	Note          string              `json:"note,omitempty"`
	Items         []SaleItem          `json:"items,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// CheckoutResponse carries the created sale. QRString and MD5 are present
// only when the payment method settles through verification.
type CheckoutResponse struct {
	Sale     Sale   `json:"sale"`
	QRString string `json:"qr_string,omitempty"`
	MD5      string `json:"md5,omitempty"`
}

// AwaitsPayment reports whether the backend handed back a complete pending
// payment: both the QR payload and its transaction reference.
func (r CheckoutResponse) AwaitsPayment() bool {
	return r.QRString != "" && r.MD5 != ""
}

type VerifyPaymentRequest struct {
	SaleID int64  `json:"sale_id" validate:"required,gt=0"`
	MD5    string `json:"md5" validate:"required,len=32,hexadecimal"`
}

type VerifyPaymentResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Sale    *Sale  `json:"sale,omitempty"`
}

// SalePatch is a partial update; nil fields are left untouched.
type SalePatch struct {
	TotalAmount *decimal.Decimal `json:"total_amount,omitempty" validate:"omitempty,gte=0"`
	Note        *string          `json:"note,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p SalePatch) IsEmpty() bool {
	return p.TotalAmount == nil && p.Note == nil
}
