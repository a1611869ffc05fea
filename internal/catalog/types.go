package catalog

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AllCategorySlug identifies the synthetic display-only category.
const AllCategorySlug = "all"

// Product is an immutable catalog entry decoded from the product service.
type Product struct {
	ID                 int64           `json:"id"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage float64         `json:"discountPercentage"`
	Rating             float64         `json:"rating"`
	Stock              int             `json:"stock"`
	Brand              string          `json:"brand"`
	Category           string          `json:"category"`
	Thumbnail          string          `json:"thumbnail"`
	Images             []string        `json:"images"`
}

// Category is a browsable product category.
type Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Gateway is the read-only surface over the remote product service.
type Gateway interface {
	FetchAll(ctx context.Context, limit int) ([]Product, error)
	FetchByCategory(ctx context.Context, slug string) ([]Product, error)
	Search(ctx context.Context, term string) ([]Product, error)
	FetchCategories(ctx context.Context) ([]Category, error)
	FetchProduct(ctx context.Context, id int64) (Product, error)
}

// WithAllCategory prepends the synthetic "All" entry for display.
func WithAllCategory(categories []Category) []Category {
	out := make([]Category, 0, len(categories)+1)
	out = append(out, Category{Slug: AllCategorySlug, Name: "All"})
	for _, c := range categories {
		if c.Slug == AllCategorySlug {
			continue
		}
		out = append(out, c)
	}
	return out
}

// displayName derives a human label from a slug such as "home-decoration".
// A Caser is stateful, so each call builds its own.
func displayName(slug string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(slug, "-", " "))
}
