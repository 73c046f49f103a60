package customers

import (
	"context"
	"strings"

	"github.com/angelmondragon/retaildesk/pkg/db/models"
	"github.com/angelmondragon/retaildesk/pkg/types"
	"gorm.io/gorm"
)

type CreateCustomerDTO struct {
	Name  string
	Phone string
	Email string
}

func (c CreateCustomerDTO) ToModel() *models.Customer {
	return &models.Customer{
		Name:  strings.TrimSpace(c.Name),
		Phone: optional(c.Phone),
		Email: optional(strings.ToLower(c.Email)),
	}
}

func FromModel(c models.Customer) types.Customer {
	out := types.Customer{ID: c.ID, Name: c.Name}
	if c.Phone != nil {
		out.Phone = *c.Phone
	}
	if c.Email != nil {
		out.Email = *c.Email
	}
	return out
}

// Repository exposes customer persistence operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, dto CreateCustomerDTO) (*models.Customer, error) {
	customer := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *Repository) List(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&out).Error
	return out, err
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
