package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront-checkout/internal/model"
	"storefront-checkout/internal/notify"
	"storefront-checkout/internal/repository"
)

type CartLineView struct {
	ID          string
	ProductID   string
	ProductName string
	Brand       string
	Size        int
	Quantity    int
	UnitPrice   int64
	LineTotal   int64
}

// CartView is priced at the products' current prices. TaxEstimate is an
// unrounded display value; the payable total is fixed only when an order is created.
type CartView struct {
	Lines       []CartLineView
	TotalItems  int
	TotalPrice  int64
	Currency    string
	TaxEstimate decimal.Decimal
}

// SnapshotLine is a frozen copy of one cart line handed to checkout.
type SnapshotLine struct {
	LineID      string
	ProductID   string
	ProductName string
	Size        int
	Quantity    int
	UnitPrice   int64
	Currency    string
}

type CartService interface {
	AddLine(ctx context.Context, userID, productID string, size, quantity int) (*CartView, error)
	SetQuantity(ctx context.Context, userID, lineID string, quantity int) (*CartView, error)
	RemoveLine(ctx context.Context, userID, lineID string) (*CartView, error)
	Clear(ctx context.Context, userID string) (*CartView, error)
	GetCart(ctx context.Context, userID string) (*CartView, error)
	Snapshot(ctx context.Context, userID string) ([]SnapshotLine, error)
	// RemoveOrdered takes the snapshotted quantities out of the cart and
	// leaves everything else, including lines added after the snapshot.
	RemoveOrdered(ctx context.Context, userID string, lines []SnapshotLine) (*CartView, error)
}

type cartServiceImpl struct {
	productRepo repository.ProductRepository
	cartRepo    repository.CartRepository
	publisher   notify.Publisher
	taxRate     decimal.Decimal
	currency    string
}

func NewCartService(
	productRepo repository.ProductRepository,
	cartRepo repository.CartRepository,
	publisher notify.Publisher,
	taxRate decimal.Decimal,
	currency string,
) CartService {
	return &cartServiceImpl{
		productRepo: productRepo,
		cartRepo:    cartRepo,
		publisher:   publisher,
		taxRate:     taxRate,
		currency:    currency,
	}
}

func (s *cartServiceImpl) AddLine(ctx context.Context, userID, productID string, size, quantity int) (*CartView, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if quantity < 1 {
		return nil, validationError("quantity", "must be at least 1")
	}
	if size < 1 {
		return nil, validationError("size", "must be a positive size")
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !product.Active) {
		return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}

	line, err := s.cartRepo.Upsert(ctx, nil, &model.CartLine{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: product.ID,
		Size:      size,
		Quantity:  quantity,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert cart line: %w", err)
	}

	s.publish(notify.EventCartItemAdded, line, line.Quantity)

	return s.GetCart(ctx, userID)
}

// SetQuantity deletes the line when quantity is zero or less.
func (s *cartServiceImpl) SetQuantity(ctx context.Context, userID, lineID string, quantity int) (*CartView, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	line, err := s.cartRepo.FindByID(ctx, userID, lineID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("cart line %s: %w", lineID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find cart line: %w", err)
	}

	if quantity <= 0 {
		if _, err := s.cartRepo.Delete(ctx, userID, lineID); err != nil {
			return nil, fmt.Errorf("delete cart line: %w", err)
		}
		s.publish(notify.EventCartItemRemoved, line, 0)
		return s.GetCart(ctx, userID)
	}

	err = s.cartRepo.UpdateQuantity(ctx, userID, lineID, quantity)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("cart line %s: %w", lineID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update cart line: %w", err)
	}
	s.publish(notify.EventCartQuantityChanged, line, quantity)

	return s.GetCart(ctx, userID)
}

// RemoveLine succeeds when the line is already gone.
func (s *cartServiceImpl) RemoveLine(ctx context.Context, userID, lineID string) (*CartView, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	line, err := s.cartRepo.FindByID(ctx, userID, lineID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find cart line: %w", err)
	}

	removed, err := s.cartRepo.Delete(ctx, userID, lineID)
	if err != nil {
		return nil, fmt.Errorf("delete cart line: %w", err)
	}
	if removed && line != nil {
		s.publish(notify.EventCartItemRemoved, line, 0)
	}

	return s.GetCart(ctx, userID)
}

func (s *cartServiceImpl) Clear(ctx context.Context, userID string) (*CartView, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	if err := s.cartRepo.DeleteAllByUser(ctx, nil, userID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	s.publisher.Publish(notify.Event{Name: notify.EventCartCleared, UserID: userID})

	return s.emptyView(), nil
}

func (s *cartServiceImpl) GetCart(ctx context.Context, userID string) (*CartView, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	lines, products, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := s.emptyView()
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			continue
		}
		lineTotal := product.Price * int64(line.Quantity)
		view.Lines = append(view.Lines, CartLineView{
			ID:          line.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Brand:       product.Brand,
			Size:        line.Size,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
			LineTotal:   lineTotal,
		})
		view.TotalItems += line.Quantity
		view.TotalPrice += lineTotal
	}
	view.TaxEstimate = EstimateTax(view.TotalPrice, s.taxRate)

	return view, nil
}

// Snapshot freezes the cart at the current product prices.
func (s *cartServiceImpl) Snapshot(ctx context.Context, userID string) ([]SnapshotLine, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	lines, products, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot := make([]SnapshotLine, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			continue
		}
		snapshot = append(snapshot, SnapshotLine{
			LineID:      line.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Size:        line.Size,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
			Currency:    product.Currency,
		})
	}

	return snapshot, nil
}

func (s *cartServiceImpl) RemoveOrdered(ctx context.Context, userID string, lines []SnapshotLine) (*CartView, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	for _, l := range lines {
		if l.LineID == "" {
			continue
		}
		deleted, err := s.cartRepo.Consume(ctx, nil, userID, l.LineID, l.Quantity)
		if err != nil {
			return nil, fmt.Errorf("remove ordered cart line: %w", err)
		}
		if deleted {
			s.publisher.Publish(notify.Event{
				Name:      notify.EventCartItemRemoved,
				UserID:    userID,
				ProductID: l.ProductID,
				Size:      l.Size,
			})
		}
	}

	return s.GetCart(ctx, userID)
}

// load returns the user's lines and the active products they reference.
// Lines whose product is gone or no longer sold are left out of views.
func (s *cartServiceImpl) load(ctx context.Context, userID string) ([]*model.CartLine, map[string]*model.Product, error) {
	lines, err := s.cartRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list cart lines: %w", err)
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	found, err := s.productRepo.FindMany(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("find cart products: %w", err)
	}

	products := make(map[string]*model.Product, len(found))
	for _, p := range found {
		if p.Active {
			products[p.ID] = p
		}
	}
	if len(products) < len(found) || len(found) < len(uniqueIDs(ids)) {
		log.Warn().Str("user_id", userID).Msg("cart references unavailable products")
	}

	return lines, products, nil
}

func (s *cartServiceImpl) emptyView() *CartView {
	return &CartView{
		Lines:       []CartLineView{},
		Currency:    s.currency,
		TaxEstimate: decimal.Zero,
	}
}

func (s *cartServiceImpl) publish(name string, line *model.CartLine, quantity int) {
	s.publisher.Publish(notify.Event{
		Name:      name,
		UserID:    line.UserID,
		ProductID: line.ProductID,
		Size:      line.Size,
		Quantity:  quantity,
	})
}

func uniqueIDs(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
