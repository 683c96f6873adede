package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"orderflow/internal/resilience"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/port"
)

// fakeRepo is an in-memory OrderRepository, idempotent on order number
// like the real store.
type fakeRepo struct {
	mu        sync.Mutex
	saved     map[string]*domain.Order
	saveCalls int
	failSave  bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{saved: map[string]*domain.Order{}}
}

func (r *fakeRepo) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	if r.failSave {
		return errors.New("datastore unavailable")
	}
	if _, ok := r.saved[order.OrderNumber]; ok {
		return nil
	}
	copied := *order
	r.saved[order.OrderNumber] = &copied
	return nil
}

func (r *fakeRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.saved[orderNumber]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

type fakeInventory struct {
	mu    sync.Mutex
	calls int
	fn    func(requests []port.InventoryCheckRequest) (*port.InventoryCheckBatch, error)
}

func (f *fakeInventory) CheckAvailability(ctx context.Context, requests []port.InventoryCheckRequest) (*port.InventoryCheckBatch, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(requests)
}

func (f *fakeInventory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu        sync.Mutex
	received  []string
	confirmed []string
}

func (f *fakeNotifier) PublishOrderReceived(ctx context.Context, event *domain.OrderPlacedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, event.OrderNumber)
}

func (f *fakeNotifier) PublishOrderConfirmed(ctx context.Context, event *domain.OrderPlacedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, event.OrderNumber)
}

func (f *fakeNotifier) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received), len(f.confirmed)
}

func testPolicy(name string) *resilience.Policy {
	return resilience.NewPolicy(name, resilience.Config{
		MaxAttempts:          2,
		WaitDuration:         time.Millisecond,
		AttemptTimeout:       100 * time.Millisecond,
		FailureRateThreshold: 0.5,
		SlidingWindowSize:    4,
		MinimumCalls:         2,
		OpenStateDuration:    time.Minute,
		HalfOpenMaxCalls:     1,
	})
}

func allAvailable(requests []port.InventoryCheckRequest) (*port.InventoryCheckBatch, error) {
	results := make([]port.InventoryCheckResult, len(requests))
	for i, req := range requests {
		results[i] = port.InventoryCheckResult{SkuCode: req.SkuCode, Available: true}
	}
	return &port.InventoryCheckBatch{Results: results}, nil
}

func newTestService(policyName string, inv *fakeInventory) (*OrderService, *fakeRepo, *fakeNotifier) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := NewOrderService(repo, inv, notifier, testPolicy(policyName), otel.Tracer("test"))
	return svc, repo, notifier
}

func validRequest() *OrderRequest {
	return &OrderRequest{OrderedItems: []OrderedItem{
		{SkuCode: "TSHIRT", Quantity: 2, UnitPrice: 10.00},
	}}
}

func TestPlaceOrder_NilRequestHasNoSideEffects(t *testing.T) {
	inv := &fakeInventory{fn: allAvailable}
	svc, repo, notifier := newTestService("nil-request", inv)

	assert.False(t, svc.PlaceOrder(context.Background(), nil))

	received, confirmed := notifier.counts()
	assert.Zero(t, received)
	assert.Zero(t, confirmed)
	assert.Zero(t, inv.callCount())
	assert.Zero(t, repo.count())
}

func TestPlaceOrder_InvalidItemsRejectedBeforeAnyRemoteCall(t *testing.T) {
	tests := []struct {
		name string
		item OrderedItem
	}{
		{"zero quantity", OrderedItem{SkuCode: "TSHIRT", Quantity: 0, UnitPrice: 10}},
		{"negative quantity", OrderedItem{SkuCode: "TSHIRT", Quantity: -1, UnitPrice: 10}},
		{"empty sku", OrderedItem{SkuCode: "", Quantity: 1, UnitPrice: 10}},
		{"negative price", OrderedItem{SkuCode: "TSHIRT", Quantity: 1, UnitPrice: -0.01}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inv := &fakeInventory{fn: allAvailable}
			svc, repo, notifier := newTestService("invalid-"+tc.name, inv)

			assert.False(t, svc.PlaceOrder(context.Background(), &OrderRequest{OrderedItems: []OrderedItem{tc.item}}))

			received, confirmed := notifier.counts()
			assert.Zero(t, received)
			assert.Zero(t, confirmed)
			assert.Zero(t, inv.callCount())
			assert.Zero(t, repo.count())
		})
	}
}

func TestPlaceOrder_AllAvailablePersistsMatchingOrder(t *testing.T) {
	inv := &fakeInventory{fn: allAvailable}
	svc, repo, notifier := newTestService("happy-path", inv)

	require.True(t, svc.PlaceOrder(context.Background(), validRequest()))

	require.Equal(t, 1, repo.count())
	var stored *domain.Order
	for _, o := range repo.saved {
		stored = o
	}
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.OrderNumber)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, domain.Item{SkuCode: "TSHIRT", Quantity: 2, UnitPrice: 10.00}, stored.Items[0])

	received, confirmed := notifier.counts()
	assert.Equal(t, 1, received)
	assert.Equal(t, 1, confirmed)
}

func TestPlaceOrder_GeneratesFreshOrderNumbers(t *testing.T) {
	inv := &fakeInventory{fn: allAvailable}
	svc, repo, _ := newTestService("fresh-numbers", inv)

	require.True(t, svc.PlaceOrder(context.Background(), validRequest()))
	require.True(t, svc.PlaceOrder(context.Background(), validRequest()))

	assert.Equal(t, 2, repo.count(), "each call must persist under its own order number")
}

func TestPlaceOrder_UnavailableItemRejectsWithoutPersisting(t *testing.T) {
	inv := &fakeInventory{fn: func(requests []port.InventoryCheckRequest) (*port.InventoryCheckBatch, error) {
		return &port.InventoryCheckBatch{Results: []port.InventoryCheckResult{
			{SkuCode: "OUT-OF-STOCK", Available: false},
		}}, nil
	}}
	svc, repo, notifier := newTestService("out-of-stock", inv)

	req := &OrderRequest{OrderedItems: []OrderedItem{
		{SkuCode: "OUT-OF-STOCK", Quantity: 1, UnitPrice: 5.00},
	}}
	assert.False(t, svc.PlaceOrder(context.Background(), req))

	assert.Zero(t, repo.count())
	received, confirmed := notifier.counts()
	assert.Equal(t, 1, received, "tentative event is emitted before the check and not retracted")
	assert.Zero(t, confirmed)
}

func TestPlaceOrder_PartialAvailabilityRejects(t *testing.T) {
	inv := &fakeInventory{fn: func(requests []port.InventoryCheckRequest) (*port.InventoryCheckBatch, error) {
		return &port.InventoryCheckBatch{Results: []port.InventoryCheckResult{
			{SkuCode: "TSHIRT", Available: true},
			{SkuCode: "MUG", Available: false},
		}}, nil
	}}
	svc, repo, _ := newTestService("partial", inv)

	req := &OrderRequest{OrderedItems: []OrderedItem{
		{SkuCode: "TSHIRT", Quantity: 1, UnitPrice: 10},
		{SkuCode: "MUG", Quantity: 3, UnitPrice: 4},
	}}
	assert.False(t, svc.PlaceOrder(context.Background(), req))
	assert.Zero(t, repo.count())
}

func TestPlaceOrder_SentinelRejectionDoesNotTripBreaker(t *testing.T) {
	inv := &fakeInventory{fn: func(requests []port.InventoryCheckRequest) (*port.InventoryCheckBatch, error) {
		return &port.InventoryCheckBatch{Rejected: true}, nil
	}}
	svc, repo, _ := newTestService("sentinel", inv)
	policy := svc.policy

	// well past MinimumCalls; a failure-counting bug would open the circuit
	for i := 0; i < 6; i++ {
		assert.False(t, svc.PlaceOrder(context.Background(), validRequest()))
	}

	assert.Equal(t, resilience.StateClosed, policy.Breaker().State())
	assert.Equal(t, 6, inv.callCount(), "sentinel responses are successful calls, not retried")
	assert.Zero(t, repo.count())
}

func TestPlaceOrder_TransportFailureExhaustsRetriesThenRejects(t *testing.T) {
	inv := &fakeInventory{fn: func(requests []port.InventoryCheckRequest) (*port.InventoryCheckBatch, error) {
		return nil, errors.New("connection refused")
	}}
	svc, repo, notifier := newTestService("transport-failure", inv)

	assert.False(t, svc.PlaceOrder(context.Background(), validRequest()))

	assert.Equal(t, 2, inv.callCount(), "transport failures are retried up to MaxAttempts")
	assert.Zero(t, repo.count())
	_, confirmed := notifier.counts()
	assert.Zero(t, confirmed)
}

func TestPlaceOrder_MalformedResponseIsNotRetried(t *testing.T) {
	inv := &fakeInventory{fn: func(requests []port.InventoryCheckRequest) (*port.InventoryCheckBatch, error) {
		return nil, resilience.Permanent(port.ErrMalformedResponse)
	}}
	svc, repo, _ := newTestService("malformed", inv)

	assert.False(t, svc.PlaceOrder(context.Background(), validRequest()))

	assert.Equal(t, 1, inv.callCount())
	assert.Zero(t, repo.count())
}

func TestPlaceOrder_OpenCircuitShortCircuitsSubsequentOrders(t *testing.T) {
	inv := &fakeInventory{fn: func(requests []port.InventoryCheckRequest) (*port.InventoryCheckBatch, error) {
		return nil, errors.New("unreachable")
	}}
	svc, _, _ := newTestService("open-circuit", inv)

	for i := 0; i < 3; i++ {
		svc.PlaceOrder(context.Background(), validRequest())
	}
	require.Equal(t, resilience.StateOpen, svc.policy.Breaker().State())
	before := inv.callCount()

	start := time.Now()
	assert.False(t, svc.PlaceOrder(context.Background(), validRequest()))

	assert.Equal(t, before, inv.callCount(), "no round trip while the circuit is open")
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestPlaceOrder_PersistenceFailureRejectsButKeepsEvents(t *testing.T) {
	inv := &fakeInventory{fn: allAvailable}
	svc, repo, notifier := newTestService("save-failure", inv)
	repo.failSave = true

	assert.False(t, svc.PlaceOrder(context.Background(), validRequest()))

	received, confirmed := notifier.counts()
	assert.Equal(t, 1, received)
	assert.Equal(t, 1, confirmed, "already-emitted events are not retracted")
}

func TestPlaceOrder_SaveIsIdempotentOnOrderNumber(t *testing.T) {
	repo := newFakeRepo()
	order, err := domain.NewOrder([]domain.Item{{SkuCode: "TSHIRT", Quantity: 1, UnitPrice: 9.99}})
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), order))
	require.NoError(t, repo.Save(context.Background(), order))

	assert.Equal(t, 1, repo.count())
	assert.Equal(t, 2, repo.saveCalls)
}

func TestGetOrder_DelegatesToRepository(t *testing.T) {
	inv := &fakeInventory{fn: allAvailable}
	svc, repo, _ := newTestService("get-order", inv)

	order, err := domain.NewOrder([]domain.Item{{SkuCode: "MUG", Quantity: 1, UnitPrice: 4}})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), order))

	got, err := svc.GetOrder(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)

	_, err = svc.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
