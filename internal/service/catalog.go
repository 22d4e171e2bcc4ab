package service

import (
	"context"
	"strings"

	"shoepalace/internal/auth"
	"shoepalace/internal/models"
	"shoepalace/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogStore is the product slice of the document store. *store.Store
// satisfies it.
type CatalogStore interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListProductsByCategory(ctx context.Context, category string) ([]models.Product, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
}

// ProductInput is the admin form for creating or editing a product.
// Sizes and colors arrive as comma-separated text, the way the back
// office collects them.
type ProductInput struct {
	Name        string   `json:"name" binding:"required"`
	Price       string   `json:"price" binding:"required"`
	PriceLabel  string   `json:"price_label"`
	Category    string   `json:"category" binding:"required"`
	Description string   `json:"description"`
	Tag         string   `json:"tag"`
	Stock       int      `json:"stock"`
	Sizes       string   `json:"sizes"`
	Colors      string   `json:"colors"`
	Images      []string `json:"images" binding:"required"`
}

// Catalog is the read layer over the product collection plus the admin
// write operations. Outside these, stock only moves inside the checkout
// transaction.
type Catalog struct {
	store  CatalogStore
	logger *zap.Logger
}

// NewCatalog creates a new catalog service
func NewCatalog(store CatalogStore) *Catalog {
	return &Catalog{
		store:  store,
		logger: util.NamedLogger("catalog"),
	}
}

// ListProducts returns the catalog, optionally filtered by category.
func (c *Catalog) ListProducts(ctx context.Context, category string) ([]models.Product, error) {
	if category == "" {
		return c.store.ListProducts(ctx)
	}
	if !models.ValidCategory(category) {
		return nil, &ValidationError{Reason: "unknown product category"}
	}
	return c.store.ListProductsByCategory(ctx, category)
}

// GetProduct returns a single product by ID.
func (c *Catalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return c.store.GetProductByID(ctx, id)
}

// CreateProduct publishes a new product to the storefront. Admin only.
func (c *Catalog) CreateProduct(ctx context.Context, actor auth.Identity, input ProductInput) (*models.Product, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}

	product, err := productFromInput(uuid.New().String(), input)
	if err != nil {
		return nil, err
	}

	if err := c.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	c.logger.Info("Product published",
		zap.String("product_id", product.ID),
		zap.String("name", product.Name),
		zap.Int("stock", product.Stock))
	return product, nil
}

// UpdateProduct overwrites a product's fields, including an admin-set
// stock level. Admin only.
func (c *Catalog) UpdateProduct(ctx context.Context, actor auth.Identity, id string, input ProductInput) (*models.Product, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if _, err := c.store.GetProductByID(ctx, id); err != nil {
		return nil, err
	}

	product, err := productFromInput(id, input)
	if err != nil {
		return nil, err
	}

	if err := c.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func productFromInput(id string, input ProductInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, &ValidationError{Reason: "product name is required"}
	}
	price, err := decimal.NewFromString(strings.TrimSpace(input.Price))
	if err != nil || price.IsNegative() {
		return nil, &ValidationError{Reason: "price must be a non-negative decimal amount"}
	}
	if !models.ValidCategory(input.Category) {
		return nil, &ValidationError{Reason: "unknown product category"}
	}
	if input.Stock < 0 {
		return nil, &ValidationError{Reason: "stock cannot be negative"}
	}

	images := make([]string, 0, len(input.Images))
	for _, url := range input.Images {
		if url = strings.TrimSpace(url); url != "" {
			images = append(images, url)
		}
	}
	if len(images) == 0 {
		return nil, &ValidationError{Reason: "at least one image is required"}
	}

	priceLabel := strings.TrimSpace(input.PriceLabel)
	if priceLabel == "" {
		priceLabel = "Rs."
	}

	return &models.Product{
		ID:          id,
		Name:        name,
		Price:       price,
		PriceLabel:  priceLabel,
		Category:    input.Category,
		Description: strings.TrimSpace(input.Description),
		Tag:         strings.TrimSpace(input.Tag),
		Stock:       input.Stock,
		Sizes:       splitAttributes(input.Sizes),
		Colors:      splitAttributes(input.Colors),
		Images:      images,
	}, nil
}

// splitAttributes turns comma-separated admin input like "40, 41, 42"
// into trimmed labels, dropping empties.
func splitAttributes(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
