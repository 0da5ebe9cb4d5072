package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-checkout/internal/model"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	CreateOrderLines(ctx context.Context, tx *gorm.DB, lines []*model.OrderLine) error
	FindByID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error)
	FindByIDForUser(ctx context.Context, userID, orderID string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)
	SetGatewayOrderID(ctx context.Context, tx *gorm.DB, orderID, gatewayOrderID string) error
	Transition(ctx context.Context, tx *gorm.DB, orderID string, to model.OrderStatus, fields map[string]interface{}) (bool, error)
	MarkConfirmed(ctx context.Context, tx *gorm.DB, orderID, gatewayOrderID, gatewayPaymentID string) (bool, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

// Create stores the order header only; lines go through CreateOrderLines in the same tx.
func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *orderRepoImpl) CreateOrderLines(ctx context.Context, tx *gorm.DB, lines []*model.OrderLine) error {
	return tx.WithContext(ctx).Create(&lines).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error) {
	var order model.Order
	err := pick(r.db, tx).WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByIDForUser(ctx context.Context, userID, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

// SetGatewayOrderID records the latest payment intent for an order that can still be paid.
func (r *orderRepoImpl) SetGatewayOrderID(ctx context.Context, tx *gorm.DB, orderID, gatewayOrderID string) error {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status IN ?", orderID, model.SourcesFor(model.OrderConfirmed)).
		Updates(map[string]interface{}{
			"gateway_order_id": gatewayOrderID,
			"updated_at":       time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// Transition moves the order to `to` only from a status allowed to reach it.
// It reports whether the row changed; false means the order was missing or in
// a status that cannot make the move.
func (r *orderRepoImpl) Transition(ctx context.Context, tx *gorm.DB, orderID string, to model.OrderStatus, fields map[string]interface{}) (bool, error) {
	from := model.SourcesFor(to)
	if len(from) == 0 {
		return false, nil
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	result := pick(r.db, tx).WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

// MarkConfirmed is the single write path to confirmed.
func (r *orderRepoImpl) MarkConfirmed(ctx context.Context, tx *gorm.DB, orderID, gatewayOrderID, gatewayPaymentID string) (bool, error) {
	return r.Transition(ctx, tx, orderID, model.OrderConfirmed, map[string]interface{}{
		"gateway_order_id":   gatewayOrderID,
		"gateway_payment_id": gatewayPaymentID,
		"confirmed_at":       time.Now(),
		"failure_reason":     "",
	})
}
