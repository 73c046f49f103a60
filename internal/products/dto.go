package products

import (
	"strings"

	"github.com/angelmondragon/retaildesk/pkg/db/models"
	"github.com/angelmondragon/retaildesk/pkg/types"
	"github.com/shopspring/decimal"
)

// CreateProductDTO is the input used to add a product to the catalog.
type CreateProductDTO struct {
	SKU           string
	Name          string
	Category      string
	Price         decimal.Decimal
	StockQuantity int
}

func (c CreateProductDTO) ToModel() *models.Product {
	return &models.Product{
		SKU:           strings.ToUpper(strings.TrimSpace(c.SKU)),
		Name:          strings.TrimSpace(c.Name),
		Category:      strings.TrimSpace(c.Category),
		Price:         c.Price.Round(2),
		StockQuantity: c.StockQuantity,
	}
}

func FromModel(p models.Product) types.Product {
	return types.Product{
		ID:            p.ID,
		Name:          p.Name,
		SKU:           p.SKU,
		Category:      p.Category,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
	}
}
