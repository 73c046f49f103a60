package cart

import (
	"fmt"
	"sync"

	pkgerrors "github.com/angelmondragon/retaildesk/pkg/errors"
	"github.com/angelmondragon/retaildesk/pkg/types"
	"github.com/shopspring/decimal"
)

// Cart accumulates lines ahead of checkout. Failed operations leave it unchanged.
type Cart struct {
	lookup ProductLookup

	mu     sync.Mutex
	lines  []Line
	frozen bool
}

func New(lookup ProductLookup) (*Cart, error) {
	if lookup == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	return &Cart{lookup: lookup}, nil
}

// AddLine appends a line for the product. Adding a product already in the cart
// creates a second, independent line.
func (c *Cart) AddLine(productID int64, quantity int, discountPercent decimal.Decimal) (Line, error) {
	if quantity < 1 {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"quantity": quantity})
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "discount must be between 0 and 100").
			WithDetails(map[string]any{"discount_percent": discountPercent.String()})
	}

	product, ok := c.lookup.Product(productID)
	if !ok {
		return Line{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %d not found", productID))
	}
	if quantity > product.StockQuantity {
		return Line{}, stockExceeded(product.ID, quantity, product.StockQuantity)
	}

	line := Line{
		ProductID:       product.ID,
		Name:            product.Name,
		SKU:             product.SKU,
		Quantity:        quantity,
		UnitPrice:       product.Price,
		DiscountPercent: discountPercent,
		StockCap:        product.StockQuantity,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return Line{}, errFrozen()
	}
	c.lines = append(c.lines, line)
	return line, nil
}

func (c *Cart) RemoveLine(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return errFrozen()
	}
	if err := c.checkIndex(index); err != nil {
		return err
	}
	c.lines = append(c.lines[:index:index], c.lines[index+1:]...)
	return nil
}

// SetQuantity changes a line's quantity within its captured stock cap.
func (c *Cart) SetQuantity(index, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return errFrozen()
	}
	if err := c.checkIndex(index); err != nil {
		return err
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"quantity": quantity})
	}
	line := c.lines[index]
	if quantity > line.StockCap {
		return stockExceeded(line.ProductID, quantity, line.StockCap)
	}
	c.lines[index].Quantity = quantity
	return nil
}

// Total sums the unrounded line totals.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.Total())
	}
	return total
}

func (c *Cart) DisplayTotal() string {
	return Display(c.Total())
}

func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Line(nil), c.lines...)
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func (c *Cart) IsEmpty() bool {
	return c.Len() == 0
}

// Clear empties the cart. It works on a frozen cart too.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

// Freeze rejects line edits until Thaw. A checkout holds the cart frozen
// from submission until it returns to building.
func (c *Cart) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

func (c *Cart) Thaw() {
	c.mu.Lock()
	c.frozen = false
	c.mu.Unlock()
}

func (c *Cart) Frozen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frozen
}

// OrderLines converts the cart into checkout request items.
func (c *Cart) OrderLines() []types.CheckoutItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]types.CheckoutItem, 0, len(c.lines))
	for _, line := range c.lines {
		items = append(items, types.CheckoutItem{
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			DiscountPercent: line.DiscountPercent,
		})
	}
	return items
}

func (c *Cart) checkIndex(index int) error {
	if index < 0 || index >= len(c.lines) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no cart line at index %d", index))
	}
	return nil
}

func errFrozen() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is locked while checkout is in progress")
}

func stockExceeded(productID int64, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeStockExceeded, "cannot exceed available stock").
		WithDetails(map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		})
}
