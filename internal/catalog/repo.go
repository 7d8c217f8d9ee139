package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/furniq/furniq-backend/internal/company"
	pkgerrors "github.com/furniq/furniq-backend/pkg/errors"
	"github.com/google/uuid"
)

// Repository manages the in-memory product registry, scoped per company.
type Repository struct {
	mu       sync.RWMutex
	products map[uuid.UUID]Product

	resolver company.Resolver
}

// NewRepository builds a product registry bound to the company resolver.
func NewRepository(resolver company.Resolver) (*Repository, error) {
	if resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "company resolver required")
	}
	return &Repository{
		products: make(map[uuid.UUID]Product),
		resolver: resolver,
	}, nil
}

// Create registers a product under the active company.
func (r *Repository) Create(ctx context.Context, product Product) (Product, error) {
	scope, err := company.Require(ctx, r.resolver)
	if err != nil {
		return Product{}, err
	}
	if strings.TrimSpace(product.SKU) == "" {
		return Product{}, pkgerrors.New(pkgerrors.CodeValidation, "sku required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.products {
		if existing.CompanyID == scope.ID && existing.SKU == product.SKU {
			return Product{}, pkgerrors.New(pkgerrors.CodeConflict, "sku already registered")
		}
	}
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.CompanyID = scope.ID
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	r.products[product.ID] = product
	return product, nil
}

// FindByID returns the product when it belongs to the active company.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (Product, error) {
	scope, err := company.Require(ctx, r.resolver)
	if err != nil {
		return Product{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	product, ok := r.products[id]
	if !ok || product.CompanyID != scope.ID {
		return Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

// FindBySKU looks a live product up by SKU within the active company.
func (r *Repository) FindBySKU(ctx context.Context, sku string) (Product, error) {
	scope, err := company.Require(ctx, r.resolver)
	if err != nil {
		return Product{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, product := range r.products {
		if product.CompanyID == scope.ID && product.SKU == sku && !product.Historical {
			return product, nil
		}
	}
	return Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

// ListActive returns the live catalog for the active company. Historical
// shadow records are excluded.
func (r *Repository) ListActive(ctx context.Context) ([]Product, error) {
	scope, err := company.Require(ctx, r.resolver)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0)
	for _, product := range r.products {
		if product.CompanyID == scope.ID && !product.Historical {
			out = append(out, product)
		}
	}
	return out, nil
}

// Products returns every product of the company, historical shadows included.
// Used on snapshot save.
func (r *Repository) Products(companyID uuid.UUID) []Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0)
	for _, product := range r.products {
		if product.CompanyID == companyID {
			out = append(out, product)
		}
	}
	return out
}

// Restore replaces the registry contents for one company. Used on snapshot load.
func (r *Repository) Restore(companyID uuid.UUID, products []Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.products {
		if existing.CompanyID == companyID {
			delete(r.products, id)
		}
	}
	for _, product := range products {
		product.CompanyID = companyID
		r.products[product.ID] = product
	}
}
