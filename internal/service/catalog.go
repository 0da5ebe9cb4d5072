package service

import (
	"context"
	"fmt"

	"storefront-checkout/internal/model"
	"storefront-checkout/internal/repository"
)

// CatalogService is a read-only view over the seeded product table.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]*model.Product, error)
}

type catalogServiceImpl struct {
	productRepo repository.ProductRepository
}

func NewCatalogService(productRepo repository.ProductRepository) CatalogService {
	return &catalogServiceImpl{productRepo: productRepo}
}

func (s *catalogServiceImpl) ListProducts(ctx context.Context) ([]*model.Product, error) {
	products, err := s.productRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}
