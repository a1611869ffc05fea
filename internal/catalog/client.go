package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/shopfront/pkg/errors"
)

const (
	DefaultBaseURL = "https://dummyjson.com"
	DefaultTimeout = 10 * time.Second
	DefaultLimit   = 100

	responseBodyReadLimit int64 = 1024
	opFetchProduct              = "fetch product"
)

var errBaseURLRequired = errors.New("catalog base url is required")

// Client talks to a dummyjson-compatible product service.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	defaultLimit int
}

var _ Gateway = (*Client)(nil)

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds every request issued by the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithDefaultLimit sets the page size used when FetchAll receives a non-positive limit.
func WithDefaultLimit(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.defaultLimit = limit
		}
	}
}

// NewClient builds the catalog client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:      trimmed,
		defaultLimit: DefaultLimit,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type productsEnvelope struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Skip     int       `json:"skip"`
	Limit    int       `json:"limit"`
}

// FetchAll lists up to limit products.
func (c *Client) FetchAll(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = c.defaultLimit
	}
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}
	return c.listProducts(ctx, "fetch products", "products", query)
}

// FetchByCategory lists the products of one category.
func (c *Client) FetchByCategory(ctx context.Context, slug string) ([]Product, error) {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" || trimmed == AllCategorySlug {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category slug is required")
	}
	return c.listProducts(ctx, "fetch category products", "products/category/"+url.PathEscape(trimmed), nil)
}

// Search runs a free-text product search.
func (c *Client) Search(ctx context.Context, term string) ([]Product, error) {
	trimmed := strings.TrimSpace(term)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search term is required")
	}
	query := url.Values{"q": []string{trimmed}}
	return c.listProducts(ctx, "search products", "products/search", query)
}

// FetchCategories lists every category. Older deployments answer with a plain
// array of slugs, which is accepted as well.
func (c *Client) FetchCategories(ctx context.Context) ([]Category, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "fetch categories", "products/categories", nil, &raw); err != nil {
		return nil, err
	}

	var categories []Category
	if err := json.Unmarshal(raw, &categories); err == nil {
		for i := range categories {
			if categories[i].Name == "" {
				categories[i].Name = displayName(categories[i].Slug)
			}
		}
		return categories, nil
	}

	var slugs []string
	if err := json.Unmarshal(raw, &slugs); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDecode, err, "decode categories")
	}
	categories = make([]Category, 0, len(slugs))
	for _, slug := range slugs {
		categories = append(categories, Category{Slug: slug, Name: displayName(slug)})
	}
	return categories, nil
}

// FetchProduct loads a single product by identifier.
func (c *Client) FetchProduct(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	var product Product
	if err := c.getJSON(ctx, opFetchProduct, "products/"+strconv.FormatInt(id, 10), nil, &product); err != nil {
		return Product{}, err
	}
	return product, nil
}

func (c *Client) listProducts(ctx context.Context, op, path string, query url.Values) ([]Product, error) {
	var envelope productsEnvelope
	if err := c.getJSON(ctx, op, path, query, &envelope); err != nil {
		return nil, err
	}
	if envelope.Products == nil {
		return []Product{}, nil
	}
	return envelope.Products, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, dest any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "catalog client not configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(path, query), nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "build "+op+" request")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, op)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound && op == opFetchProduct {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), op)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDecode, err, "decode "+op+" response")
	}
	return nil
}

func (c *Client) buildURL(path string, query url.Values) string {
	u := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
