// Package seed fills an empty sandbox database with demo users, customers and
// products.
package seed

import (
	"context"
	"fmt"

	"github.com/angelmondragon/retaildesk/internal/customers"
	"github.com/angelmondragon/retaildesk/internal/products"
	"github.com/angelmondragon/retaildesk/internal/users"
	"github.com/angelmondragon/retaildesk/pkg/db"
	"github.com/angelmondragon/retaildesk/pkg/enums"
	"github.com/angelmondragon/retaildesk/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type passwordHasher interface {
	Hash(password string) (string, error)
}

var demoUsers = []struct {
	username string
	fullName string
	role     enums.Role
}{
	{"admin", "Sandbox Admin", enums.RoleAdmin},
	{"manager", "Store Manager", enums.RoleManager},
	{"staff", "Counter Staff", enums.RoleStaff},
}

var demoCustomers = []customers.CreateCustomerDTO{
	{Name: "Walk-in Customer"},
	{Name: "Sokha Chan", Phone: "+85512345678", Email: "sokha@example.com"},
	{Name: "Dara Lim", Phone: "+85598765432"},
}

var demoProducts = []products.CreateProductDTO{
	{SKU: "RICE-5KG", Name: "Jasmine Rice 5kg", Category: "Grocery", Price: decimal.RequireFromString("8.50"), StockQuantity: 40},
	{SKU: "OIL-1L", Name: "Cooking Oil 1L", Category: "Grocery", Price: decimal.RequireFromString("2.75"), StockQuantity: 60},
	{SKU: "SOAP-3PK", Name: "Bar Soap 3-pack", Category: "Household", Price: decimal.RequireFromString("1.99"), StockQuantity: 25},
	{SKU: "WATER-24", Name: "Bottled Water 24x500ml", Category: "Beverage", Price: decimal.RequireFromString("4.20"), StockQuantity: 12},
	{SKU: "COFFEE-200", Name: "Ground Coffee 200g", Category: "Beverage", Price: decimal.RequireFromString("6.35"), StockQuantity: 3},
}

// Run inserts the demo data in one transaction. It does nothing when users
// already exist, so restarts keep whatever the operator changed.
func Run(ctx context.Context, client *db.Client, hasher passwordHasher, password string, logg *logger.Logger) (bool, error) {
	if client == nil {
		return false, fmt.Errorf("db client required")
	}
	if hasher == nil {
		return false, fmt.Errorf("password hasher required")
	}
	if password == "" {
		return false, fmt.Errorf("seed password required")
	}
	if logg == nil {
		logg = logger.Nop()
	}

	count, err := users.NewRepository(client.DB()).Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		logg.Info(logg.WithField(ctx, "users", count), "seed skipped, database not empty")
		return false, nil
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash seed password: %w", err)
	}

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		for _, u := range demoUsers {
			if _, err := userRepo.Create(ctx, users.CreateUserDTO{
				Username:     u.username,
				FullName:     u.fullName,
				Role:         u.role,
				PasswordHash: hash,
			}); err != nil {
				return fmt.Errorf("seed user %s: %w", u.username, err)
			}
		}
		customerRepo := customers.NewRepository(tx)
		for _, c := range demoCustomers {
			if _, err := customerRepo.Create(ctx, c); err != nil {
				return fmt.Errorf("seed customer %s: %w", c.Name, err)
			}
		}
		productRepo := products.NewRepository(tx)
		for _, p := range demoProducts {
			if _, err := productRepo.Create(ctx, p); err != nil {
				return fmt.Errorf("seed product %s: %w", p.SKU, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"users":     len(demoUsers),
		"customers": len(demoCustomers),
		"products":  len(demoProducts),
	}), "sandbox seeded")
	return true, nil
}
