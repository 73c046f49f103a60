package sales

import (
	"github.com/angelmondragon/retaildesk/pkg/db/models"
	"github.com/angelmondragon/retaildesk/pkg/types"
)

func FromModel(s models.Sale) types.Sale {
	out := types.Sale{
		ID:            s.ID,
		CustomerID:    s.CustomerID,
		SoldBy:        s.SoldBy,
		PaymentMethod: s.PaymentMethod,
		Status:        s.Status,
		TotalAmount:   s.TotalAmount,
		Note:          s.Note,
		CreatedAt:     s.CreatedAt,
	}
	if len(s.Items) > 0 {
		out.Items = make([]types.SaleItem, 0, len(s.Items))
		for _, item := range s.Items {
			out.Items = append(out.Items, types.SaleItem{
				ProductID:       item.ProductID,
				ProductName:     item.ProductName,
				Quantity:        item.Quantity,
				UnitPrice:       item.UnitPrice,
				DiscountPercent: item.DiscountPercent,
				LineTotal:       item.LineTotal,
			})
		}
	}
	return out
}
