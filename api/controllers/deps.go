package controllers

import (
	"context"

	"github.com/angelmondragon/shopfront/internal/browse"
	"github.com/angelmondragon/shopfront/internal/cart"
	"github.com/angelmondragon/shopfront/internal/catalog"
	"github.com/angelmondragon/shopfront/internal/checkout"
)

// CatalogMachine is the intent surface of the catalog query machine.
type CatalogMachine interface {
	View() browse.View
	SelectCategory(slug string) error
	SetSearchText(text string) error
	SubmitSearch() error
	SubmitSearchText(text string) error
	Refresh() error
	Product(ctx context.Context, id int64) (catalog.Product, error)
}

// CartStore is the intent surface of the cart aggregate.
type CartStore interface {
	Snapshot() cart.Snapshot
	Add(product catalog.Product)
	Remove(productID int64)
	SetQuantity(productID int64, quantity int)
	Clear()
	Quantity(productID int64) int
}

// OrderPlacer completes checkout.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, form checkout.Form) (*checkout.Confirmation, error)
}

// Pinger exposes a dependency health check.
type Pinger interface {
	Ping(ctx context.Context) error
}
