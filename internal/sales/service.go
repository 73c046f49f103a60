package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/retaildesk/internal/products"
	"github.com/angelmondragon/retaildesk/pkg/db/models"
	"github.com/angelmondragon/retaildesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/retaildesk/pkg/errors"
	"github.com/angelmondragon/retaildesk/pkg/logger"
	"github.com/angelmondragon/retaildesk/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const maxListLimit = 200

var hundred = decimal.NewFromInt(100)

// Service implements the sales endpoints of the backend.
type Service interface {
	Checkout(ctx context.Context, req types.CheckoutRequest) (*types.CheckoutResponse, error)
	VerifyPayment(ctx context.Context, req types.VerifyPaymentRequest) (*types.VerifyPaymentResponse, error)
	Settle(ctx context.Context, md5 string) (*types.Sale, error)
	Update(ctx context.Context, id int64, patch types.SalePatch) (*types.Sale, error)
	Get(ctx context.Context, id int64) (*types.Sale, error)
	List(ctx context.Context, limit int) ([]types.Sale, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type existence interface {
	customerExists(ctx context.Context, tx *gorm.DB, id int64) (bool, error)
	userExists(ctx context.Context, tx *gorm.DB, id int64) (bool, error)
}

type gormExistence struct{}

func (gormExistence) customerExists(ctx context.Context, tx *gorm.DB, id int64) (bool, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (gormExistence) userExists(ctx context.Context, tx *gorm.DB, id int64) (bool, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&models.User{}).Where("id = ? AND is_active = ?", id, true).Count(&n).Error
	return n > 0, err
}

type service struct {
	tx       txRunner
	sales    *Repository
	products *products.Repository
	exists   existence
	merchant string
	logg     *logger.Logger
	now      func() time.Time
}

// ServiceParams bundles the dependencies required to build a sales service.
type ServiceParams struct {
	Tx       txRunner
	Sales    *Repository
	Products *products.Repository
	Merchant string
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Sales == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("products repository required")
	}
	s := &service{
		tx:       params.Tx,
		sales:    params.Sales,
		products: params.Products,
		exists:   gormExistence{},
		merchant: strings.TrimSpace(params.Merchant),
		logg:     params.Logger,
		now:      params.Now,
	}
	if s.merchant == "" {
		s.merchant = "retaildesk"
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *service) Checkout(ctx context.Context, req types.CheckoutRequest) (*types.CheckoutResponse, error) {
	if !req.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", req.PaymentMethod))
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "sale has no items")
	}
	for i, item := range req.Items {
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"item": i})
		}
		if item.DiscountPercent.IsNegative() || item.DiscountPercent.GreaterThan(hundred) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100").
				WithDetails(map[string]any{"item": i})
		}
	}

	deferred := req.PaymentMethod.IsDeferred()
	var resp *types.CheckoutResponse
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.checkParties(ctx, tx, req.CustomerID, req.SoldBy); err != nil {
			return err
		}

		productRepo := s.products.WithTx(tx)
		catalog, err := productRepo.FindByIDs(ctx, productIDs(req.Items))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
		}

		requested := map[int64]int{}
		sale := &models.Sale{
			CustomerID:    req.CustomerID,
			SoldBy:        req.SoldBy,
			PaymentMethod: req.PaymentMethod,
			Status:        enums.SaleStatusPending,
		}
		total := decimal.Zero
		for _, item := range req.Items {
			product, ok := catalog[item.ProductID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %d not found", item.ProductID))
			}
			requested[item.ProductID] += item.Quantity
			line := lineTotal(product.Price, item.Quantity, item.DiscountPercent)
			total = total.Add(line)
			sale.Items = append(sale.Items, models.SaleItem{
				ProductID:       product.ID,
				ProductName:     product.Name,
				Quantity:        item.Quantity,
				UnitPrice:       product.Price,
				DiscountPercent: item.DiscountPercent,
				LineTotal:       line,
			})
		}
		if err := checkStock(catalog, requested); err != nil {
			return err
		}
		sale.TotalAmount = total.Round(2)

		if !deferred {
			for _, id := range sortedIDs(requested) {
				if err := productRepo.DecrementStock(ctx, id, requested[id]); err != nil {
					return err
				}
			}
			now := s.now().UTC()
			sale.Status = enums.SaleStatusPaid
			sale.PaidAt = &now
		}

		salesRepo := s.sales.WithTx(tx)
		if err := salesRepo.Create(ctx, sale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create sale")
		}

		resp = &types.CheckoutResponse{}
		if deferred {
			resp.QRString = paymentPayload(s.merchant, sale.ID, sale.TotalAmount)
			resp.MD5 = payloadDigest(resp.QRString)
			if err := salesRepo.AttachPayment(ctx, sale.ID, resp.QRString, resp.MD5); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach payment")
			}
		}
		resp.Sale = FromModel(*sale)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithSaleID(ctx, resp.Sale.ID)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payment_method": req.PaymentMethod.String(),
		"status":         resp.Sale.Status,
		"total":          resp.Sale.TotalAmount.StringFixed(2),
	}), "sale created")
	return resp, nil
}

// VerifyPayment confirms a settled QR sale and takes its stock. A settled sale
// whose stock ran out in the meantime is voided so the client stops waiting.
func (s *service) VerifyPayment(ctx context.Context, req types.VerifyPaymentRequest) (*types.VerifyPaymentResponse, error) {
	var (
		resp      *types.VerifyPaymentResponse
		shortfall error
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		salesRepo := s.sales.WithTx(tx)
		sale, err := salesRepo.FindByID(ctx, req.SaleID)
		if err != nil {
			return notFoundOr(err, "sale not found", "load sale")
		}
		if sale.MD5 == nil || !strings.EqualFold(*sale.MD5, strings.TrimSpace(req.MD5)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "md5 does not match sale")
		}

		switch {
		case sale.Status == enums.SaleStatusPaid:
			out := FromModel(*sale)
			resp = &types.VerifyPaymentResponse{Status: true, Message: "payment already confirmed", Sale: &out}
			return nil
		case sale.Status == enums.SaleStatusCancelled:
			resp = &types.VerifyPaymentResponse{Status: false, Message: "sale was cancelled"}
			return nil
		case sale.SettledAt == nil:
			resp = &types.VerifyPaymentResponse{Status: false, Message: "payment not received yet"}
			return nil
		}

		now := s.now().UTC()
		flipped, err := salesRepo.MarkPaid(ctx, sale.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark sale paid")
		}
		if flipped {
			productRepo := s.products.WithTx(tx)
			quantities := itemQuantities(sale.Items)
			for _, id := range sortedIDs(quantities) {
				if err := productRepo.DecrementStock(ctx, id, quantities[id]); err != nil {
					if pkgerrors.HasCode(err, pkgerrors.CodeStockExceeded) {
						shortfall = err
					}
					return err
				}
			}
		}

		reloaded, err := salesRepo.FindByID(ctx, sale.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload sale")
		}
		out := FromModel(*reloaded)
		resp = &types.VerifyPaymentResponse{Status: true, Message: "payment confirmed", Sale: &out}
		return nil
	})
	ctx = s.logg.WithSaleID(ctx, req.SaleID)
	if shortfall != nil {
		return s.voidUnfulfillable(ctx, req.SaleID, shortfall)
	}
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "confirmed", resp.Status), "payment verification")
	return resp, nil
}

func (s *service) voidUnfulfillable(ctx context.Context, saleID int64, shortfall error) (*types.VerifyPaymentResponse, error) {
	if _, err := s.sales.Void(ctx, saleID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "void sale")
	}
	s.logg.Error(ctx, "settled sale voided for insufficient stock", shortfall)
	return &types.VerifyPaymentResponse{
		Status:  false,
		Message: "insufficient stock to fulfil payment; sale cancelled",
	}, nil
}

// Settle simulates the payment rail confirming a QR payment. Settling twice
// is harmless.
func (s *service) Settle(ctx context.Context, md5 string) (*types.Sale, error) {
	md5 = strings.ToLower(strings.TrimSpace(md5))
	if md5 == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "md5 is required")
	}
	sale, err := s.sales.FindByMD5(ctx, md5)
	if err != nil {
		return nil, notFoundOr(err, "payment not found", "load sale")
	}
	if sale.Status == enums.SaleStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sale was cancelled")
	}
	if err := s.sales.MarkSettled(ctx, sale.ID, s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle payment")
	}
	return s.Get(ctx, sale.ID)
}

func (s *service) Update(ctx context.Context, id int64, patch types.SalePatch) (*types.Sale, error) {
	if patch.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	changes := map[string]any{}
	if patch.TotalAmount != nil {
		if patch.TotalAmount.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "total amount cannot be negative")
		}
		changes["total_amount"] = patch.TotalAmount.Round(2)
	}
	if patch.Note != nil {
		changes["note"] = strings.TrimSpace(*patch.Note)
	}

	if _, err := s.sales.FindByID(ctx, id); err != nil {
		return nil, notFoundOr(err, "sale not found", "load sale")
	}
	if err := s.sales.Update(ctx, id, changes); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update sale")
	}
	return s.Get(ctx, id)
}

func (s *service) Get(ctx context.Context, id int64) (*types.Sale, error) {
	sale, err := s.sales.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "sale not found", "load sale")
	}
	out := FromModel(*sale)
	return &out, nil
}

func (s *service) List(ctx context.Context, limit int) ([]types.Sale, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.sales.List(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list sales")
	}
	out := make([]types.Sale, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

func (s *service) checkParties(ctx context.Context, tx *gorm.DB, customerID, soldBy int64) error {
	ok, err := s.exists.customerExists(ctx, tx, customerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("customer %d not found", customerID))
	}
	ok, err = s.exists.userExists(ctx, tx, soldBy)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("user %d not found", soldBy))
	}
	return nil
}

// checkStock compares the summed quantity per product against stock on hand.
func checkStock(catalog map[int64]models.Product, requested map[int64]int) error {
	for _, id := range sortedIDs(requested) {
		product := catalog[id]
		if requested[id] > product.StockQuantity {
			return pkgerrors.New(pkgerrors.CodeStockExceeded, fmt.Sprintf("only %d of %s in stock", product.StockQuantity, product.Name)).
				WithDetails(map[string]any{
					"product_id": id,
					"requested":  requested[id],
					"available":  product.StockQuantity,
				})
		}
	}
	return nil
}

func lineTotal(price decimal.Decimal, qty int, discount decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty))).Mul(hundred.Sub(discount)).Div(hundred)
}

func productIDs(items []types.CheckoutItem) []int64 {
	seen := map[int64]struct{}{}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		out = append(out, item.ProductID)
	}
	return out
}

func itemQuantities(items []models.SaleItem) map[int64]int {
	out := map[int64]int{}
	for _, item := range items {
		out[item.ProductID] += item.Quantity
	}
	return out
}

// sortedIDs gives a stable update order so concurrent sales lock rows alike.
func sortedIDs(m map[int64]int) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, internal)
}
