package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-checkout/internal/model"
)

type ProductRepository interface {
	Seed(ctx context.Context) error
	FindByID(ctx context.Context, productID string) (*model.Product, error)
	FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error)
	ListActive(ctx context.Context) ([]*model.Product, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

// Seed inserts the demo catalog; existing rows are left alone.
func (r *productRepoImpl) Seed(ctx context.Context) error {
	products := []model.Product{
		{ID: "nike-pegasus-41", Name: "Pegasus 41", Brand: "Nike", Price: 1199500, Currency: "INR", Active: true},
		{ID: "nike-air-force-1", Name: "Air Force 1 '07", Brand: "Nike", Price: 749500, Currency: "INR", Active: true},
		{ID: "adidas-samba-og", Name: "Samba OG", Brand: "Adidas", Price: 1099900, Currency: "INR", Active: true},
		{ID: "adidas-ultraboost-5", Name: "Ultraboost 5", Brand: "Adidas", Price: 1899900, Currency: "INR", Active: true},
		{ID: "puma-suede-classic", Name: "Suede Classic", Brand: "Puma", Price: 599900, Currency: "INR", Active: true},
		{ID: "asics-gel-kayano-31", Name: "Gel-Kayano 31", Brand: "Asics", Price: 1599900, Currency: "INR", Active: true},
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}

func (r *productRepoImpl) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error

	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error) {
	var products []*model.Product
	if len(productIDs) == 0 {
		return products, nil
	}

	err := r.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepoImpl) ListActive(ctx context.Context) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("brand ASC").
		Order("name ASC").
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}
