package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/retaildesk/pkg/logger"
	"github.com/angelmondragon/retaildesk/pkg/types"
	"golang.org/x/sync/errgroup"
)

type (
	Product  = types.Product
	Customer = types.Customer
	User     = types.User
)

// Source lists reference data from the backend.
type Source interface {
	ListProducts(ctx context.Context) ([]Product, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// Snapshot is an immutable view of products, customers and users taken at LoadedAt.
type Snapshot struct {
	products  []Product
	customers []Customer
	users     []User

	productByID  map[int64]int
	customerByID map[int64]int
	userByID     map[int64]int

	LoadedAt time.Time
}

// Load fetches the three lists concurrently and builds a snapshot.
func Load(ctx context.Context, src Source) (*Snapshot, error) {
	if src == nil {
		return nil, fmt.Errorf("catalog source required")
	}

	var (
		products  []Product
		customers []Customer
		users     []User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = src.ListProducts(gctx)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		customers, err = src.ListCustomers(gctx)
		if err != nil {
			return fmt.Errorf("list customers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		users, err = src.ListUsers(gctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewSnapshot(products, customers, users, time.Now().UTC()), nil
}

// NewSnapshot indexes the given lists. Later duplicates of an ID win.
func NewSnapshot(products []Product, customers []Customer, users []User, loadedAt time.Time) *Snapshot {
	s := &Snapshot{
		products:     append([]Product(nil), products...),
		customers:    append([]Customer(nil), customers...),
		users:        append([]User(nil), users...),
		productByID:  make(map[int64]int, len(products)),
		customerByID: make(map[int64]int, len(customers)),
		userByID:     make(map[int64]int, len(users)),
		LoadedAt:     loadedAt,
	}
	for i, p := range s.products {
		s.productByID[p.ID] = i
	}
	for i, c := range s.customers {
		s.customerByID[c.ID] = i
	}
	for i, u := range s.users {
		s.userByID[u.ID] = i
	}
	return s
}

// Product implements cart.ProductLookup.
func (s *Snapshot) Product(id int64) (Product, bool) {
	if s == nil {
		return Product{}, false
	}
	i, ok := s.productByID[id]
	if !ok {
		return Product{}, false
	}
	return s.products[i], true
}

func (s *Snapshot) Customer(id int64) (Customer, bool) {
	if s == nil {
		return Customer{}, false
	}
	i, ok := s.customerByID[id]
	if !ok {
		return Customer{}, false
	}
	return s.customers[i], true
}

func (s *Snapshot) User(id int64) (User, bool) {
	if s == nil {
		return User{}, false
	}
	i, ok := s.userByID[id]
	if !ok {
		return User{}, false
	}
	return s.users[i], true
}

func (s *Snapshot) Products() []Product {
	if s == nil {
		return nil
	}
	return append([]Product(nil), s.products...)
}

func (s *Snapshot) Customers() []Customer {
	if s == nil {
		return nil
	}
	return append([]Customer(nil), s.customers...)
}

func (s *Snapshot) Users() []User {
	if s == nil {
		return nil
	}
	return append([]User(nil), s.users...)
}

// Catalog holds the current snapshot and swaps it on Refresh. It is safe for
// concurrent use and can be handed to a cart as its product lookup.
type Catalog struct {
	src  Source
	logg *logger.Logger

	mu      sync.RWMutex
	current *Snapshot
}

func New(src Source, logg *logger.Logger) (*Catalog, error) {
	if src == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Catalog{src: src, logg: logg}, nil
}

// Refresh reloads the snapshot. On failure the previous snapshot is kept.
func (c *Catalog) Refresh(ctx context.Context) error {
	snap, err := Load(ctx, c.src)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.current = snap
	c.mu.Unlock()

	ctx = c.logg.WithFields(ctx, map[string]any{
		"products":  len(snap.products),
		"customers": len(snap.customers),
		"users":     len(snap.users),
	})
	c.logg.Debug(ctx, "catalog refreshed")
	return nil
}

// Snapshot returns the current snapshot, or nil before the first Refresh.
func (c *Catalog) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Catalog) Product(id int64) (Product, bool) {
	return c.Snapshot().Product(id)
}
