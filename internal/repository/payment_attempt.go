package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"storefront-checkout/internal/model"
)

type PaymentAttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *model.PaymentAttempt) error
	FindLatestByOrder(ctx context.Context, orderID string) (*model.PaymentAttempt, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.PaymentAttempt, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, gatewayOrderID, gatewayPaymentID string) error
	MarkFailed(ctx context.Context, tx *gorm.DB, gatewayOrderID, reason string) (bool, error)
}

type paymentAttemptRepoImpl struct {
	db *gorm.DB
}

func NewPaymentAttemptRepository(db *gorm.DB) PaymentAttemptRepository {
	return &paymentAttemptRepoImpl{
		db: db,
	}
}

func (r *paymentAttemptRepoImpl) Create(ctx context.Context, tx *gorm.DB, attempt *model.PaymentAttempt) error {
	return tx.WithContext(ctx).Create(attempt).Error
}

func (r *paymentAttemptRepoImpl) FindLatestByOrder(ctx context.Context, orderID string) (*model.PaymentAttempt, error) {
	var attempt model.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id DESC").
		First(&attempt).Error

	if err != nil {
		return nil, err
	}

	return &attempt, nil
}

func (r *paymentAttemptRepoImpl) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.PaymentAttempt, error) {
	var attempt model.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&attempt).Error

	if err != nil {
		return nil, err
	}

	return &attempt, nil
}

func (r *paymentAttemptRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, gatewayOrderID, gatewayPaymentID string) error {
	result := tx.WithContext(ctx).Model(&model.PaymentAttempt{}).
		Where("gateway_order_id = ?", gatewayOrderID).
		Updates(map[string]interface{}{
			"status":             model.AttemptPaid,
			"gateway_payment_id": gatewayPaymentID,
			"failure_reason":     "",
			"updated_at":         time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// MarkFailed only fails an attempt that is still open.
func (r *paymentAttemptRepoImpl) MarkFailed(ctx context.Context, tx *gorm.DB, gatewayOrderID, reason string) (bool, error) {
	result := pick(r.db, tx).WithContext(ctx).Model(&model.PaymentAttempt{}).
		Where("gateway_order_id = ? AND status = ?", gatewayOrderID, model.AttemptCreated).
		Updates(map[string]interface{}{
			"status":         model.AttemptFailed,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
