package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/retaildesk/internal/access"
	"github.com/angelmondragon/retaildesk/internal/cart"
	"github.com/angelmondragon/retaildesk/internal/catalog"
	"github.com/angelmondragon/retaildesk/internal/checkout"
	"github.com/angelmondragon/retaildesk/internal/display"
	"github.com/angelmondragon/retaildesk/pkg/enums"
	"github.com/angelmondragon/retaildesk/pkg/env"
	pkgerrors "github.com/angelmondragon/retaildesk/pkg/errors"
	"github.com/angelmondragon/retaildesk/pkg/types"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"login", "authenticate against the backend", runLogin},
	{"logout", "forget the stored session", runLogout},
	{"whoami", "show the logged-in user and the areas they can open", runWhoami},
	{"catalog", "list products, customers and users", runCatalog},
	{"checkout", "sell the given product:qty[:discount] lines", runCheckout},
	{"sales", "list recent sales", runSales},
	{"sale-edit", "correct the total or note of a sale", runSaleEdit},
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "login")
	username := fs.String("u", env.Get(envUsername, ""), "username")
	password := fs.String("p", env.Get(envPassword, ""), "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *username == "" {
		if *username, err = a.prompt("username: "); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = a.prompt("password: "); err != nil {
			return err
		}
	}

	s, err := a.login(ctx, *username, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s (%s)\n", s.User.Username, s.User.Role)
	if !a.cfg.Session.UsesRedis() {
		fmt.Fprintln(a.out, "session kept in memory only; set RETAILDESK_SESSION_STORE=redis to reuse it")
	}
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.holder.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func runWhoami(ctx context.Context, a *app, _ []string) error {
	s, err := a.requireSession(ctx, access.RouteDashboard)
	if err != nil {
		return err
	}
	routes := make([]string, 0)
	for _, r := range access.Routes(s.User.Role) {
		routes = append(routes, string(r))
	}
	fmt.Fprintf(a.out, "%s (%s) #%d, role %s\n", s.User.FullName, s.User.Username, s.User.ID, s.User.Role)
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(a.out, "session expires %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(a.out, "can open: %s\n", strings.Join(routes, ", "))
	return nil
}

func runCatalog(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "catalog")
	list := fs.String("list", "products,customers,users", "comma separated lists to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := a.requireSession(ctx, access.RouteDashboard)
	if err != nil {
		return err
	}

	for _, name := range strings.Split(*list, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		var route access.Route
		switch name {
		case "products":
			route = access.RouteProducts
		case "customers":
			route = access.RouteCustomers
		case "users":
			route = access.RouteSales
		default:
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown list %q", name))
		}
		if err := access.Require(s.User.Role, route); err != nil {
			return err
		}

		fmt.Fprintf(a.out, "== %s\n", name)
		if err := a.showList(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) showList(ctx context.Context, name string) error {
	switch name {
	case "products":
		products, err := a.client.ListProducts(ctx)
		if err != nil {
			return err
		}
		return display.Products(a.out, products)
	case "customers":
		customers, err := a.client.ListCustomers(ctx)
		if err != nil {
			return err
		}
		return display.Customers(a.out, customers)
	default:
		users, err := a.client.ListUsers(ctx)
		if err != nil {
			return err
		}
		return display.Users(a.out, users)
	}
}

func runCheckout(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "checkout")
	customerID := fs.Int64("customer", 0, "customer id")
	sellerID := fs.Int64("seller", 0, "selling user id, defaults to the logged-in user")
	method := fs.String("method", a.cfg.Checkout.DefaultMethod, "payment method: Cash, Card or QR")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := a.requireSession(ctx, access.RouteSales)
	if err != nil {
		return err
	}
	pm, err := enums.ParsePaymentMethod(*method)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("unknown payment method %q", *method))
	}
	if *sellerID == 0 {
		*sellerID = s.User.ID
	}

	cat, err := catalog.New(a.client, a.logg)
	if err != nil {
		return err
	}
	if err := cat.Refresh(ctx); err != nil {
		return err
	}
	c, err := cart.New(cat)
	if err != nil {
		return err
	}
	if err := fillCart(c, fs.Args()); err != nil {
		return err
	}
	if err := display.Cart(a.out, c); err != nil {
		return err
	}

	m, err := checkout.NewMachine(checkout.Options{
		Cart:      c,
		Backend:   a.client,
		Refresher: cat,
		Metrics:   a.checkoutMetrics,
		Logger:    a.logg,
		QRTTL:     a.cfg.Checkout.QRTTL,
	})
	if err != nil {
		return err
	}
	a.serveMetrics(ctx)

	return a.drive(ctx, m, checkout.SubmitInput{
		CustomerID:    *customerID,
		SoldByID:      *sellerID,
		PaymentMethod: pm,
	})
}

// drive submits the cart and then asks the operator what to do until the
// checkout reaches an outcome they accept.
func (a *app) drive(ctx context.Context, m *checkout.Machine, in checkout.SubmitInput) error {
	out, err := a.submit(ctx, m, in)
	if err != nil && out.State == enums.CheckoutStateBuilding {
		return err
	}

	var shownRef string
	for {
		if err != nil {
			fmt.Fprintf(a.out, "error: %s\n", describe(err))
		}
		if derr := display.Outcome(a.out, out); derr != nil {
			return derr
		}

		switch out.State {
		case enums.CheckoutStateCompleted, enums.CheckoutStateVerified:
			return nil

		case enums.CheckoutStateAwaitingVerification:
			ref := out.Session.TransactionRef
			if out.Session.Pending() && ref != shownRef {
				if derr := display.QR(a.out, out.Session.QRPayload); derr != nil {
					return derr
				}
				shownRef = ref
			}
			answer, perr := a.prompt("[v]erify, [s]ettle in sandbox, [c]ancel: ")
			if perr != nil {
				return pkgerrors.New(pkgerrors.CodePaymentFailed, fmt.Sprintf("payment %s left unverified", ref))
			}
			switch strings.ToLower(answer) {
			case "v", "verify":
				out, err = m.Verify(ctx)
			case "s", "settle":
				if _, serr := a.client.SettlePayment(ctx, ref); serr != nil {
					out, err = m.Outcome(), serr
					continue
				}
				out, err = m.Verify(ctx)
			case "c", "cancel":
				out, err = m.Cancel(ctx)
			default:
				out, err = m.Outcome(), nil
			}

		case enums.CheckoutStateFailed, enums.CheckoutStateVerifyFailed, enums.CheckoutStateCancelled:
			answer, perr := a.prompt("[r]etry or [q]uit: ")
			if perr != nil || !strings.EqualFold(answer, "r") {
				return quitError(out)
			}
			if out, err = m.Retry(ctx); err != nil {
				return err
			}
			out, err = a.submit(ctx, m, in)

		default:
			return err
		}
	}
}

func (a *app) submit(ctx context.Context, m *checkout.Machine, in checkout.SubmitInput) (checkout.Outcome, error) {
	if err := display.Pending(a.out, in.PaymentMethod); err != nil {
		return m.Outcome(), err
	}
	return m.Submit(ctx, in)
}

func quitError(out checkout.Outcome) error {
	switch {
	case out.State == enums.CheckoutStateCancelled:
		return nil
	case out.Err != nil:
		return out.Err
	default:
		return pkgerrors.New(pkgerrors.CodePaymentFailed, fmt.Sprintf("checkout %s", out.State))
	}
}

func runSales(ctx context.Context, a *app, _ []string) error {
	if _, err := a.requireSession(ctx, access.RouteSales); err != nil {
		return err
	}
	sales, err := a.client.ListSales(ctx)
	if err != nil {
		return err
	}
	return display.Sales(a.out, sales)
}

func runSaleEdit(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "sale-edit")
	id := fs.Int64("id", 0, "sale id")
	total := fs.String("total", "", "new total amount")
	note := fs.String("note", "", "new note")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.requireSession(ctx, access.RoutePayments); err != nil {
		return err
	}

	var patch types.SalePatch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "note":
			patch.Note = note
		case "total":
			patch.TotalAmount = new(decimal.Decimal)
		}
	})
	if patch.TotalAmount != nil {
		amount, err := decimal.NewFromString(strings.TrimSpace(*total))
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("total %q is not a number", *total))
		}
		patch.TotalAmount = &amount
	}

	sale, err := a.client.UpdateSale(ctx, *id, patch)
	if err != nil {
		return err
	}
	return display.Sale(a.out, *sale)
}
