package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazar-commerce/backend-bazar/internal/auth"
	"github.com/bazar-commerce/backend-bazar/internal/basket"
	"github.com/bazar-commerce/backend-bazar/internal/catalog"
	"github.com/bazar-commerce/backend-bazar/internal/payment"
	"github.com/bazar-commerce/backend-bazar/internal/pricing"
	"github.com/bazar-commerce/backend-bazar/internal/shipping"
)

type stubUsers struct {
	user auth.User
}

func (s stubUsers) CreateUser(ctx context.Context, name, email, passwordHash string) (auth.User, error) {
	return auth.User{Name: name, Email: email, PasswordHash: passwordHash}, nil
}

func (s stubUsers) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	return s.user, nil
}

func (s stubUsers) GetUserByID(ctx context.Context, id string) (auth.User, error) {
	return s.user, nil
}

type memBasketStore struct {
	items []pricing.BasketItem
}

func (m *memBasketStore) ListItems(ctx context.Context, userID string) ([]pricing.BasketItem, error) {
	return m.items, nil
}

func (m *memBasketStore) AddItem(ctx context.Context, userID, productID string, count int) error {
	m.items = append(m.items, pricing.BasketItem{ProductID: productID, Count: count})
	return nil
}

func (m *memBasketStore) SetCount(ctx context.Context, userID, productID string, count int) error {
	return nil
}

func (m *memBasketStore) RemoveItem(ctx context.Context, userID, productID string) error {
	return nil
}

func (m *memBasketStore) Replace(ctx context.Context, userID string, items []pricing.BasketItem) error {
	m.items = items
	return nil
}

func (m *memBasketStore) Clear(ctx context.Context, userID string) error {
	m.items = nil
	return nil
}

type stubCatalog struct {
	products map[string]catalog.Product
}

func (s stubCatalog) GetByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	return s.products, nil
}

type captureOrders struct {
	intents []Intent
	fail    error
}

func (c *captureOrders) CreateUnpaid(ctx context.Context, intent Intent) error {
	if c.fail != nil {
		return c.fail
	}
	c.intents = append(c.intents, intent)
	return nil
}

func testProduct(id string, price int64, weight int64, stock int) catalog.Product {
	return catalog.Product{
		ID:         id,
		Title:      "product " + id,
		WeightGrams: weight,
		ShowCount:  stock,
		Prices:     catalog.PriceLog{{Price: price, EffectiveAt: time.Unix(0, 0)}},
	}
}

func newTestService(t *testing.T, items []pricing.BasketItem, orders *captureOrders) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := &Service{
		Users: stubUsers{user: auth.User{ID: "u1", Email: "u@example.com", City: "Tehran"}},
		Basket: &basket.Service{
			Store: &memBasketStore{items: items},
			Catalog: stubCatalog{products: map[string]catalog.Product{
				"p1": testProduct("p1", 1000, 250, 10),
			}},
		},
		Shipping:    shipping.Calculator{PerGramRate: 7, BaseFee: 70000},
		Provider:    payment.NewMock(),
		Intents:     RedisIntentStore{R: client},
		Orders:      orders,
		IntentTTL:   time.Hour,
		CallbackURL: "https://shop.example/api/v1/checkout/verify",
		CourierCity: "tehran",
	}
	return svc, mr
}

func TestCreateWritesIntentAndOrder(t *testing.T) {
	orders := &captureOrders{}
	svc, _ := newTestService(t, []pricing.BasketItem{{ProductID: "p1", Count: 2}}, orders)

	out, err := svc.Create(context.Background(), "u1", shipping.MethodPost)
	require.NoError(t, err)
	require.NotEmpty(t, out.Authority)
	require.NotEmpty(t, out.RedirectURL)

	// 2 * 1000 goods + (500g * 7 + 70000) shipping
	assert.EqualValues(t, 2000+73500, out.GrandTotal)

	intent, err := svc.Intents.Get(context.Background(), out.Authority)
	require.NoError(t, err)
	require.NotNil(t, intent)
	assert.Equal(t, "u1", intent.UserID)
	assert.Equal(t, out.GrandTotal, intent.TotalPrice)
	assert.EqualValues(t, 500, intent.TotalWeight)
	assert.EqualValues(t, 73500, intent.ShippingCost)

	require.Len(t, orders.intents, 1)
	assert.Equal(t, out.Authority, orders.intents[0].Authority)
}

func TestCreateCompensatesIntentWhenOrderWriteFails(t *testing.T) {
	orders := &captureOrders{fail: errors.New("db down")}
	svc, mr := newTestService(t, []pricing.BasketItem{{ProductID: "p1", Count: 1}}, orders)

	out, err := svc.Create(context.Background(), "u1", shipping.MethodPost)
	require.Error(t, err)
	assert.Empty(t, out.Authority)

	// no dangling intent may survive a failed dual-write
	assert.Empty(t, mr.Keys())
}

func TestCreateRejectsEmptyBasket(t *testing.T) {
	svc, _ := newTestService(t, nil, &captureOrders{})

	_, err := svc.Create(context.Background(), "u1", shipping.MethodPost)
	require.ErrorIs(t, err, ErrEmptyBasket)
}

func TestCreateRejectsUnknownMethod(t *testing.T) {
	svc, _ := newTestService(t, []pricing.BasketItem{{ProductID: "p1", Count: 1}}, &captureOrders{})

	_, err := svc.Create(context.Background(), "u1", "pigeon")
	require.ErrorIs(t, err, ErrUnknownMethod)
}

func TestCreateRejectsCourierOutsideCity(t *testing.T) {
	orders := &captureOrders{}
	svc, _ := newTestService(t, []pricing.BasketItem{{ProductID: "p1", Count: 1}}, orders)
	svc.Users = stubUsers{user: auth.User{ID: "u1", City: "Shiraz"}}

	_, err := svc.Create(context.Background(), "u1", shipping.MethodCourier)
	require.ErrorIs(t, err, ErrCourierNotAvailable)
}

func TestIntentExpiresWithTTL(t *testing.T) {
	orders := &captureOrders{}
	svc, mr := newTestService(t, []pricing.BasketItem{{ProductID: "p1", Count: 1}}, orders)

	out, err := svc.Create(context.Background(), "u1", shipping.MethodPost)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	intent, err := svc.Intents.Get(context.Background(), out.Authority)
	require.NoError(t, err)
	assert.Nil(t, intent, "expired intent must read as absent")
}

func TestIntentPutIsFirstWriterWins(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := RedisIntentStore{R: client}

	intent := Intent{Authority: "A1", UserID: "u1"}
	require.NoError(t, store.Put(context.Background(), intent, time.Minute))
	err := store.Put(context.Background(), intent, time.Minute)
	require.ErrorIs(t, err, ErrIntentExists)
}
