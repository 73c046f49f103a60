package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/retaildesk/internal/cart"
)

// lineArg is one "product:qty[:discount]" argument.
type lineArg struct {
	ProductID int64
	Quantity  int
	Discount  decimal.Decimal
}

func parseLineArg(raw string) (lineArg, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return lineArg{}, fmt.Errorf("line %q: want product:qty[:discount]", raw)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return lineArg{}, fmt.Errorf("line %q: product id must be a positive integer", raw)
	}
	qty, err := strconv.Atoi(parts[1])
	if err != nil {
		return lineArg{}, fmt.Errorf("line %q: quantity must be an integer", raw)
	}
	discount := decimal.Zero
	if len(parts) == 3 {
		discount, err = decimal.NewFromString(strings.TrimSuffix(parts[2], "%"))
		if err != nil {
			return lineArg{}, fmt.Errorf("line %q: discount must be a number", raw)
		}
	}
	return lineArg{ProductID: id, Quantity: qty, Discount: discount}, nil
}

// fillCart adds every argument to c. The first rejected line stops the fill;
// lines added before it stay in the cart.
func fillCart(c *cart.Cart, args []string) error {
	for _, raw := range args {
		arg, err := parseLineArg(raw)
		if err != nil {
			return err
		}
		if _, err := c.AddLine(arg.ProductID, arg.Quantity, arg.Discount); err != nil {
			return fmt.Errorf("line %q: %w", raw, err)
		}
	}
	return nil
}
