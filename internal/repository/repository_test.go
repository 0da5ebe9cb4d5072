package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"storefront-checkout/internal/client"
	"storefront-checkout/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := client.InitDBClient("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status model.OrderStatus) *model.Order {
	t.Helper()
	order := &model.Order{
		ID:                    uuid.NewString(),
		UserID:                "user-1",
		Subtotal:              2000,
		Tax:                   360,
		Total:                 2360,
		Currency:              "INR",
		Status:                status,
		BillingSameAsShipping: true,
	}
	repo := NewOrderRepository(db)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := repo.Create(context.Background(), tx, order); err != nil {
			return err
		}
		return repo.CreateOrderLines(context.Background(), tx, []*model.OrderLine{{
			ID: uuid.NewString(), OrderID: order.ID, ProductID: "p1", ProductName: "Runner", Size: 9, Quantity: 2, UnitPrice: 1000,
		}})
	}))
	return order
}

func TestCartRepository_UpsertAccumulates(t *testing.T) {
	db := newTestDB(t)
	repo := NewCartRepository(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, nil, &model.CartLine{ID: uuid.NewString(), UserID: "u1", ProductID: "p1", Size: 9, Quantity: 2})
	require.NoError(t, err)
	second, err := repo.Upsert(ctx, nil, &model.CartLine{ID: uuid.NewString(), UserID: "u1", ProductID: "p1", Size: 9, Quantity: 3})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Quantity)

	lines, err := repo.ListByUser(ctx, nil, "u1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestCartRepository_DifferentSizeIsSeparateLine(t *testing.T) {
	db := newTestDB(t)
	repo := NewCartRepository(db)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, nil, &model.CartLine{ID: uuid.NewString(), UserID: "u1", ProductID: "p1", Size: 9, Quantity: 1})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, nil, &model.CartLine{ID: uuid.NewString(), UserID: "u1", ProductID: "p1", Size: 10, Quantity: 1})
	require.NoError(t, err)

	lines, err := repo.ListByUser(ctx, nil, "u1")
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestCartRepository_ScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	repo := NewCartRepository(db)
	ctx := context.Background()

	line, err := repo.Upsert(ctx, nil, &model.CartLine{ID: uuid.NewString(), UserID: "u1", ProductID: "p1", Size: 9, Quantity: 1})
	require.NoError(t, err)

	_, err = repo.FindByID(ctx, "u2", line.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.ErrorIs(t, repo.UpdateQuantity(ctx, "u2", line.ID, 4), gorm.ErrRecordNotFound)

	removed, err := repo.Delete(ctx, "u2", line.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = repo.Delete(ctx, "u1", line.ID)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestCartRepository_Consume(t *testing.T) {
	db := newTestDB(t)
	repo := NewCartRepository(db)
	ctx := context.Background()

	whole, err := repo.Upsert(ctx, nil, &model.CartLine{ID: uuid.NewString(), UserID: "u1", ProductID: "p1", Size: 9, Quantity: 2})
	require.NoError(t, err)
	grown, err := repo.Upsert(ctx, nil, &model.CartLine{ID: uuid.NewString(), UserID: "u1", ProductID: "p2", Size: 9, Quantity: 5})
	require.NoError(t, err)

	deleted, err := repo.Consume(ctx, nil, "u1", whole.ID, 2)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Consume(ctx, nil, "u1", grown.ID, 3)
	require.NoError(t, err)
	assert.False(t, deleted)

	// another user's line is never touched
	deleted, err = repo.Consume(ctx, nil, "u2", grown.ID, 10)
	require.NoError(t, err)
	assert.False(t, deleted)

	lines, err := repo.ListByUser(ctx, nil, "u1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, grown.ID, lines[0].ID)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestOrderRepository_SeparateBillingRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := &model.Order{
		ID:       uuid.NewString(),
		UserID:   "user-1",
		Total:    100,
		Currency: "INR",
		Status:   model.OrderPending,
		Shipping: model.Address{Name: "Asha", City: "Bengaluru"},
		Billing:  model.Address{Name: "Asha", City: "Mysuru"},
	}
	require.NoError(t, repo.Create(ctx, db, order))

	stored, err := repo.FindByID(ctx, nil, order.ID)
	require.NoError(t, err)
	assert.False(t, stored.BillingSameAsShipping)
	assert.Equal(t, "Mysuru", stored.BillingAddress().City)
	assert.Equal(t, "Bengaluru", stored.Shipping.City)
}

func TestOrderRepository_FindLoadsLines(t *testing.T) {
	db := newTestDB(t)
	order := seedOrder(t, db, model.OrderPending)
	repo := NewOrderRepository(db)

	got, err := repo.FindByIDForUser(context.Background(), "user-1", order.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, int64(2000), got.Lines[0].LineTotal())

	_, err = repo.FindByIDForUser(context.Background(), "someone-else", order.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrderRepository_CreateIsAtomic(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	orderID := uuid.NewString()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.Create(ctx, tx, &model.Order{ID: orderID, UserID: "u1", Total: 1, Currency: "INR", Status: model.OrderPending}); err != nil {
			return err
		}
		// duplicate primary key fails the second line insert
		dup := uuid.NewString()
		return repo.CreateOrderLines(ctx, tx, []*model.OrderLine{
			{ID: dup, OrderID: orderID, ProductID: "p1", Size: 9, Quantity: 1, UnitPrice: 1},
			{ID: dup, OrderID: orderID, ProductID: "p2", Size: 9, Quantity: 1, UnitPrice: 1},
		})
	})
	require.Error(t, err)

	var orders, lines int64
	require.NoError(t, db.Model(&model.Order{}).Count(&orders).Error)
	require.NoError(t, db.Model(&model.OrderLine{}).Count(&lines).Error)
	assert.Zero(t, orders)
	assert.Zero(t, lines)
}

func TestOrderRepository_MarkConfirmedOnce(t *testing.T) {
	db := newTestDB(t)
	order := seedOrder(t, db, model.OrderPending)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	changed, err := repo.MarkConfirmed(ctx, nil, order.ID, "order_gw1", "pay_1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkConfirmed(ctx, nil, order.ID, "order_gw1", "pay_2")
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := repo.FindByID(ctx, nil, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderConfirmed, got.Status)
	assert.Equal(t, "pay_1", got.GatewayPaymentID)
	assert.NotNil(t, got.ConfirmedAt)
}

func TestOrderRepository_NoTransitionOutOfConfirmed(t *testing.T) {
	db := newTestDB(t)
	order := seedOrder(t, db, model.OrderConfirmed)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	for _, to := range []model.OrderStatus{model.OrderPending, model.OrderFailed, model.OrderCancelled} {
		changed, err := repo.Transition(ctx, nil, order.ID, to, nil)
		require.NoError(t, err)
		assert.False(t, changed, "confirmed -> %s", to)
	}

	got, err := repo.FindByID(ctx, nil, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderConfirmed, got.Status)
}

func TestOrderRepository_FailedCanStillConfirm(t *testing.T) {
	db := newTestDB(t)
	order := seedOrder(t, db, model.OrderFailed)
	repo := NewOrderRepository(db)

	changed, err := repo.MarkConfirmed(context.Background(), nil, order.ID, "order_gw2", "pay_9")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestPaymentAttemptRepository(t *testing.T) {
	db := newTestDB(t)
	order := seedOrder(t, db, model.OrderPending)
	repo := NewPaymentAttemptRepository(db)
	ctx := context.Background()

	for _, gw := range []string{"order_a", "order_b"} {
		require.NoError(t, repo.Create(ctx, db, &model.PaymentAttempt{
			OrderID: order.ID, GatewayOrderID: gw, Amount: order.Total, Currency: "INR", Status: model.AttemptCreated,
		}))
	}

	latest, err := repo.FindLatestByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "order_b", latest.GatewayOrderID)

	failed, err := repo.MarkFailed(ctx, nil, "order_a", "card declined")
	require.NoError(t, err)
	assert.True(t, failed)

	failed, err = repo.MarkFailed(ctx, nil, "order_a", "again")
	require.NoError(t, err)
	assert.False(t, failed)

	require.NoError(t, repo.MarkPaid(ctx, db, "order_b", "pay_1"))
	paid, err := repo.FindByGatewayOrderID(ctx, "order_b")
	require.NoError(t, err)
	assert.Equal(t, model.AttemptPaid, paid.Status)
	assert.Equal(t, "pay_1", paid.GatewayPaymentID)
}

func TestWebhookEventRepository_Dedupes(t *testing.T) {
	db := newTestDB(t)
	repo := NewWebhookEventRepository(db)
	ctx := context.Background()

	exists, err := repo.Exists(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, exists)

	first, err := repo.MarkProcessed(ctx, nil, "evt_1", model.EventPaymentCaptured)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := repo.MarkProcessed(ctx, nil, "evt_1", model.EventPaymentCaptured)
	require.NoError(t, err)
	assert.False(t, again)

	exists, err = repo.Exists(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestProductRepository_SeedIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx))
	require.NoError(t, repo.Seed(ctx))

	products, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 6)

	many, err := repo.FindMany(ctx, []string{"nike-pegasus-41", "missing"})
	require.NoError(t, err)
	assert.Len(t, many, 1)
}
