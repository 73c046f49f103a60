// Package display renders catalog, cart and checkout state for the terminal.
package display

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/skip2/go-qrcode"

	"github.com/angelmondragon/retaildesk/internal/cart"
	"github.com/angelmondragon/retaildesk/internal/catalog"
	"github.com/angelmondragon/retaildesk/internal/checkout"
	"github.com/angelmondragon/retaildesk/pkg/enums"
	"github.com/angelmondragon/retaildesk/pkg/types"
)

// lowStock flags products the operator should restock soon.
const lowStock = 5

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// QR draws payload as a scannable block-character code.
func QR(w io.Writer, payload string) error {
	if strings.TrimSpace(payload) == "" {
		return fmt.Errorf("empty qr payload")
	}
	code, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}
	_, err = io.WriteString(w, code.ToSmallString(false))
	return err
}

// Pending tells the operator a checkout is in flight. Deferred methods wait
// for the backend to generate their QR.
func Pending(w io.Writer, method enums.PaymentMethod) error {
	msg := "submitting sale...\n"
	if method.IsDeferred() {
		msg = "generating payment QR...\n"
	}
	_, err := io.WriteString(w, msg)
	return err
}

func Products(w io.Writer, products []catalog.Product) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSKU\tNAME\tPRICE\tSTOCK\t")
	for _, p := range products {
		stock := fmt.Sprintf("%d", p.StockQuantity)
		if p.StockQuantity <= lowStock {
			stock += " (low)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n", p.ID, p.SKU, p.Name, cart.Display(p.Price), stock)
	}
	return tw.Flush()
}

func Customers(w io.Writer, customers []catalog.Customer) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tPHONE\tEMAIL\t")
	for _, c := range customers {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", c.ID, c.Name, dash(c.Phone), dash(c.Email))
	}
	return tw.Flush()
}

func Users(w io.Writer, users []catalog.User) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tROLE\t")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", u.ID, u.Username, u.FullName, u.Role)
	}
	return tw.Flush()
}

// Cart lists the lines with their index, so the operator can remove one.
func Cart(w io.Writer, c *cart.Cart) error {
	if c.IsEmpty() {
		_, err := fmt.Fprintln(w, "cart is empty")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "#\tPRODUCT\tQTY\tUNIT\tDISC %\tLINE\t")
	for i, line := range c.Lines() {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t\n",
			i+1, line.Name, line.Quantity, cart.Display(line.UnitPrice), line.DiscountPercent.String(), cart.Display(line.Total()))
	}
	fmt.Fprintf(tw, "\t\t\t\tTOTAL\t%s\t\n", c.DisplayTotal())
	return tw.Flush()
}

func Sale(w io.Writer, s types.Sale) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "sale\t#%d\t\n", s.ID)
	fmt.Fprintf(tw, "status\t%s\t\n", s.Status)
	fmt.Fprintf(tw, "method\t%s\t\n", s.PaymentMethod)
	fmt.Fprintf(tw, "total\t%s\t\n", cart.Display(s.TotalAmount))
	if s.Note != "" {
		fmt.Fprintf(tw, "note\t%s\t\n", s.Note)
	}
	return tw.Flush()
}

// Sales lists sales newest first, as the backend returns them.
func Sales(w io.Writer, sales []types.Sale) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCREATED\tCUSTOMER\tMETHOD\tSTATUS\tTOTAL\t")
	for _, s := range sales {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t\n",
			s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.CustomerID, s.PaymentMethod, s.Status, cart.Display(s.TotalAmount))
	}
	return tw.Flush()
}

// Outcome summarises where a checkout ended up.
func Outcome(w io.Writer, o checkout.Outcome) error {
	var b strings.Builder
	fmt.Fprintf(&b, "checkout %s", o.State)
	if o.Sale != nil {
		fmt.Fprintf(&b, " (sale #%d, %s)", o.Sale.ID, cart.Display(o.Sale.TotalAmount))
	}
	if o.Message != "" {
		fmt.Fprintf(&b, ": %s", o.Message)
	}
	b.WriteString("\n")
	if o.State == enums.CheckoutStateAwaitingVerification && o.Session.TransactionRef != "" {
		fmt.Fprintf(&b, "reference %s\n", o.Session.TransactionRef)
		if !o.Session.ExpiresAt.IsZero() {
			fmt.Fprintf(&b, "expires %s\n", o.Session.ExpiresAt.Local().Format("15:04:05"))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
