// Package access holds the dashboard's role-to-route permission table.
package access

import (
	"fmt"

	"github.com/angelmondragon/retaildesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/retaildesk/pkg/errors"
)

// Route names a dashboard area.
type Route string

const (
	RouteDashboard    Route = "dashboard"
	RouteProducts     Route = "products"
	RouteStock        Route = "stock"
	RouteSales        Route = "sales"
	RouteCustomers    Route = "customers"
	RouteSuppliers    Route = "suppliers"
	RoutePayments     Route = "payments"
	RouteReports      Route = "reports"
	RouteActivityLogs Route = "activity_logs"
	RouteUsers        Route = "users"
)

var allRoutes = []Route{
	RouteDashboard,
	RouteProducts,
	RouteStock,
	RouteSales,
	RouteCustomers,
	RouteSuppliers,
	RoutePayments,
	RouteReports,
	RouteActivityLogs,
	RouteUsers,
}

var table = map[enums.Role]map[Route]struct{}{
	enums.RoleAdmin:   set(allRoutes...),
	enums.RoleManager: set(without(allRoutes, RouteUsers)...),
	enums.RoleStaff:   set(RouteDashboard, RouteProducts, RouteSales, RouteCustomers),
}

// Allowed reports whether role may open route. Unknown roles get nothing.
func Allowed(role enums.Role, route Route) bool {
	routes, ok := table[role]
	if !ok {
		return false
	}
	_, ok = routes[route]
	return ok
}

// Require returns a forbidden error when role may not open route.
func Require(role enums.Role, route Route) error {
	if Allowed(role, route) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("role %q cannot access %s", role, route)).
		WithDetails(map[string]any{"role": role, "route": route})
}

// Routes lists what role may open, in navigation order.
func Routes(role enums.Role) []Route {
	var out []Route
	for _, r := range allRoutes {
		if Allowed(role, r) {
			out = append(out, r)
		}
	}
	return out
}

func set(routes ...Route) map[Route]struct{} {
	out := make(map[Route]struct{}, len(routes))
	for _, r := range routes {
		out[r] = struct{}{}
	}
	return out
}

func without(routes []Route, drop Route) []Route {
	out := make([]Route, 0, len(routes))
	for _, r := range routes {
		if r != drop {
			out = append(out, r)
		}
	}
	return out
}
