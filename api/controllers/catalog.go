package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/retaildesk/api/responses"
	"github.com/angelmondragon/retaildesk/internal/customers"
	"github.com/angelmondragon/retaildesk/internal/products"
	"github.com/angelmondragon/retaildesk/internal/users"
	"github.com/angelmondragon/retaildesk/pkg/db/models"
	pkgerrors "github.com/angelmondragon/retaildesk/pkg/errors"
	"github.com/angelmondragon/retaildesk/pkg/logger"
	"github.com/angelmondragon/retaildesk/pkg/types"
)

type productLister interface {
	List(ctx context.Context) ([]models.Product, error)
}

type customerLister interface {
	List(ctx context.Context) ([]models.Customer, error)
}

type userLister interface {
	List(ctx context.Context) ([]models.User, error)
}

// ListProducts returns the catalog with current stock.
func ListProducts(repo productLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := repo.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products"))
			return
		}
		out := make([]types.Product, 0, len(rows))
		for _, row := range rows {
			out = append(out, products.FromModel(row))
		}
		responses.WriteSuccess(w, out)
	}
}

func ListCustomers(repo customerLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := repo.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list customers"))
			return
		}
		out := make([]types.Customer, 0, len(rows))
		for _, row := range rows {
			out = append(out, customers.FromModel(row))
		}
		responses.WriteSuccess(w, out)
	}
}

// ListUsers returns active users. Staff need it to pick a seller, so it is
// not gated behind the users route.
func ListUsers(repo userLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := repo.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list users"))
			return
		}
		out := make([]types.User, 0, len(rows))
		for i := range rows {
			out = append(out, users.FromModel(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
