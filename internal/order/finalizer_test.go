package order

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazar-commerce/backend-bazar/internal/checkout"
	"github.com/bazar-commerce/backend-bazar/internal/payment"
	"github.com/bazar-commerce/backend-bazar/internal/pricing"
)

type memStore struct {
	orders       map[string]*Order
	stock        map[string]int
	confirmCalls int
}

func newMemStore(stock map[string]int) *memStore {
	return &memStore{orders: map[string]*Order{}, stock: stock}
}

func (m *memStore) GetByAuthority(ctx context.Context, authority string) (Order, error) {
	o, ok := m.orders[authority]
	if !ok {
		return Order{}, ErrNotFound
	}
	return *o, nil
}

func (m *memStore) EnsureUnpaid(ctx context.Context, intent checkout.Intent) error {
	if _, ok := m.orders[intent.Authority]; ok {
		return nil
	}
	m.orders[intent.Authority] = &Order{
		UserID:           intent.UserID,
		PaymentAuthority: intent.Authority,
		Status:           StatusUnpaid,
		Products:         intent.Products,
		GrandTotal:       intent.TotalPrice,
	}
	return nil
}

func (m *memStore) Confirm(ctx context.Context, authority, refID string) (ConfirmResult, error) {
	m.confirmCalls++
	o, ok := m.orders[authority]
	if !ok {
		return ConfirmResult{}, ErrNotFound
	}
	if o.Status == StatusConfirmed {
		return ConfirmResult{Order: *o, Already: true}, nil
	}
	if o.Status == StatusFailed || o.Status == StatusExpired {
		return ConfirmResult{Order: *o}, ErrTerminalStatus
	}
	var shortfalls []Shortfall
	for _, line := range o.Products {
		if !line.Available || line.Count <= 0 {
			continue
		}
		avail := m.stock[line.ProductID]
		if avail < line.Count {
			shortfalls = append(shortfalls, Shortfall{ProductID: line.ProductID, Requested: line.Count, Available: avail})
			m.stock[line.ProductID] = 0
			continue
		}
		m.stock[line.ProductID] = avail - line.Count
	}
	o.Status = StatusConfirmed
	o.GatewayRefID = refID
	return ConfirmResult{Order: *o, Shortfalls: shortfalls}, nil
}

func (m *memStore) MarkFailed(ctx context.Context, authority string) error {
	if o, ok := m.orders[authority]; ok && o.Status == StatusUnpaid {
		o.Status = StatusFailed
	}
	return nil
}

func testIntent(authority string) checkout.Intent {
	now := time.Now()
	return checkout.Intent{
		Authority:        authority,
		UserID:           "u1",
		SubmissionMethod: "post",
		TotalPrice:       75500,
		TotalWeight:      500,
		ShippingCost:     73500,
		Products: []pricing.Line{
			{ProductID: "p1", Count: 2, UnitPrice: 1000, LineNet: 2000, Available: true},
		},
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

type finalizerFixture struct {
	f        *Finalizer
	store    *memStore
	intents  checkout.RedisIntentStore
	provider *payment.Mock
	mr       *miniredis.Miniredis
}

func newFinalizerFixture(t *testing.T, stock map[string]int) finalizerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemStore(stock)
	intents := checkout.RedisIntentStore{R: client}
	provider := payment.NewMock()
	return finalizerFixture{
		f:        &Finalizer{Orders: store, Intents: intents, Provider: provider},
		store:    store,
		intents:  intents,
		provider: provider,
		mr:       mr,
	}
}

// creates a paid-for intent plus its provisional order, mirroring checkout
func (fx finalizerFixture) arrange(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	created, err := fx.provider.CreatePayment(ctx, payment.CreateRequest{Amount: 75500})
	require.NoError(t, err)
	intent := testIntent(created.Authority)
	require.NoError(t, fx.intents.Put(ctx, intent, time.Hour))
	require.NoError(t, fx.store.EnsureUnpaid(ctx, intent))
	return created.Authority
}

func TestVerifyConfirmsOrderAndDecrementsStock(t *testing.T) {
	fx := newFinalizerFixture(t, map[string]int{"p1": 5})
	authority := fx.arrange(t)

	outcome, err := fx.f.Verify(context.Background(), authority)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, StatusConfirmed, outcome.Status)
	assert.Empty(t, outcome.Shortfalls)
	assert.Equal(t, 3, fx.store.stock["p1"])

	intent, err := fx.intents.Get(context.Background(), authority)
	require.NoError(t, err)
	assert.Nil(t, intent, "intent must be consumed on confirmation")
}

func TestVerifyIsIdempotentPerAuthority(t *testing.T) {
	fx := newFinalizerFixture(t, map[string]int{"p1": 5})
	authority := fx.arrange(t)

	first, err := fx.f.Verify(context.Background(), authority)
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := fx.f.Verify(context.Background(), authority)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.True(t, second.AlreadyVerified)

	assert.Equal(t, 3, fx.store.stock["p1"], "stock must not be decremented twice")
	assert.Equal(t, 1, fx.store.confirmCalls, "confirmed order short-circuits before the store")
}

func TestVerifyUnknownAuthority(t *testing.T) {
	fx := newFinalizerFixture(t, nil)

	_, err := fx.f.Verify(context.Background(), "A-never-created")
	require.ErrorIs(t, err, ErrAuthorityUnknown)
}

func TestVerifyExpiredIntent(t *testing.T) {
	fx := newFinalizerFixture(t, map[string]int{"p1": 5})
	authority := fx.arrange(t)

	fx.mr.FastForward(2 * time.Hour)

	_, err := fx.f.Verify(context.Background(), authority)
	require.ErrorIs(t, err, ErrAuthorityUnknown)
	assert.Equal(t, StatusUnpaid, fx.store.orders[authority].Status, "order stays as audit record")
}

func TestVerifyRecreatesMissingOrderFromIntent(t *testing.T) {
	fx := newFinalizerFixture(t, map[string]int{"p1": 5})
	ctx := context.Background()
	created, err := fx.provider.CreatePayment(ctx, payment.CreateRequest{Amount: 75500})
	require.NoError(t, err)
	require.NoError(t, fx.intents.Put(ctx, testIntent(created.Authority), time.Hour))
	// no provisional order was written

	outcome, err := fx.f.Verify(ctx, created.Authority)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, StatusConfirmed, fx.store.orders[created.Authority].Status)
}

type rejectingProvider struct{}

func (rejectingProvider) CreatePayment(ctx context.Context, req payment.CreateRequest) (payment.CreateResult, error) {
	return payment.CreateResult{Authority: "A-reject"}, nil
}

func (rejectingProvider) VerifyPayment(ctx context.Context, req payment.VerifyRequest) (payment.VerifyResult, error) {
	return payment.VerifyResult{Code: -51}, nil
}

func TestVerifyRejectionMarksOrderFailed(t *testing.T) {
	fx := newFinalizerFixture(t, map[string]int{"p1": 5})
	fx.f.Provider = rejectingProvider{}
	ctx := context.Background()

	intent := testIntent("A-reject")
	require.NoError(t, fx.intents.Put(ctx, intent, time.Hour))
	require.NoError(t, fx.store.EnsureUnpaid(ctx, intent))

	outcome, err := fx.f.Verify(ctx, "A-reject")
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, StatusFailed, fx.store.orders["A-reject"].Status)
	assert.Equal(t, 5, fx.store.stock["p1"], "rejected payment must not touch stock")

	// failed is terminal; a later verify does not call the gateway again
	again, err := fx.f.Verify(ctx, "A-reject")
	require.NoError(t, err)
	assert.False(t, again.Success)
	assert.Equal(t, StatusFailed, again.Status)
}

func TestVerifyReportsShortfallWithoutRollback(t *testing.T) {
	fx := newFinalizerFixture(t, map[string]int{"p1": 1})
	authority := fx.arrange(t)

	outcome, err := fx.f.Verify(context.Background(), authority)
	require.NoError(t, err)
	assert.True(t, outcome.Success, "payment stays settled despite shortfall")
	require.Len(t, outcome.Shortfalls, 1)
	assert.Equal(t, "p1", outcome.Shortfalls[0].ProductID)
	assert.Equal(t, 2, outcome.Shortfalls[0].Requested)
	assert.Equal(t, 1, outcome.Shortfalls[0].Available)
	assert.Equal(t, 0, fx.store.stock["p1"], "stock floors at zero")
}
