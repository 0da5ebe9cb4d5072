package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-checkout/internal/model"
)

type CartRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, line *model.CartLine) (*model.CartLine, error)
	FindByID(ctx context.Context, userID, lineID string) (*model.CartLine, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*model.CartLine, error)
	UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) error
	Delete(ctx context.Context, userID, lineID string) (bool, error)
	DeleteAllByUser(ctx context.Context, tx *gorm.DB, userID string) error
	Consume(ctx context.Context, tx *gorm.DB, userID, lineID string, quantity int) (bool, error)
}

type cartRepoImpl struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepoImpl{
		db: db,
	}
}

// Upsert adds line.Quantity to the existing (user, product, size) line or
// inserts a new one, then returns the stored line.
func (r *cartRepoImpl) Upsert(ctx context.Context, tx *gorm.DB, line *model.CartLine) (*model.CartLine, error) {
	conn := pick(r.db, tx).WithContext(ctx)

	err := conn.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}, {Name: "size"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_lines.quantity + ?", line.Quantity),
			"updated_at": time.Now(),
		}),
	}).Create(line).Error
	if err != nil {
		return nil, err
	}

	// on conflict the struct still carries the rejected id, so read back by key
	var stored model.CartLine
	err = conn.
		Where("user_id = ? AND product_id = ? AND size = ?", line.UserID, line.ProductID, line.Size).
		First(&stored).Error
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

func (r *cartRepoImpl) FindByID(ctx context.Context, userID, lineID string) (*model.CartLine, error) {
	var line model.CartLine
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		First(&line).Error
	if err != nil {
		return nil, err
	}

	return &line, nil
}

func (r *cartRepoImpl) ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*model.CartLine, error) {
	var lines []*model.CartLine
	err := pick(r.db, tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}

	return lines, nil
}

func (r *cartRepoImpl) UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) error {
	if quantity < 1 {
		return errors.New("cart line quantity must be positive")
	}

	result := r.db.WithContext(ctx).
		Model(&model.CartLine{}).
		Where("id = ? AND user_id = ?", lineID, userID).
		Updates(map[string]interface{}{
			"quantity":   quantity,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// Delete reports whether a line was actually removed.
func (r *cartRepoImpl) Delete(ctx context.Context, userID, lineID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		Delete(&model.CartLine{})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *cartRepoImpl) DeleteAllByUser(ctx context.Context, tx *gorm.DB, userID string) error {
	return pick(r.db, tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.CartLine{}).Error
}

// Consume takes quantity off a line that went into an order. The line is
// deleted when nothing beyond the ordered quantity is left; units added after
// the snapshot stay in the cart. It reports whether the line was deleted.
func (r *cartRepoImpl) Consume(ctx context.Context, tx *gorm.DB, userID, lineID string, quantity int) (bool, error) {
	conn := pick(r.db, tx).WithContext(ctx)

	result := conn.
		Where("id = ? AND user_id = ? AND quantity <= ?", lineID, userID, quantity).
		Delete(&model.CartLine{})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	err := conn.Model(&model.CartLine{}).
		Where("id = ? AND user_id = ? AND quantity > ?", lineID, userID, quantity).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity - ?", quantity),
			"updated_at": time.Now(),
		}).Error

	return false, err
}
