package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"orderflow/internal/resilience"
	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/port"
)

type stubRepo struct {
	orders map[string]*domain.Order
}

func (r *stubRepo) Save(ctx context.Context, order *domain.Order) error {
	r.orders[order.OrderNumber] = order
	return nil
}

func (r *stubRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order, ok := r.orders[orderNumber]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

type stubInventory struct {
	available bool
}

func (s *stubInventory) CheckAvailability(ctx context.Context, requests []port.InventoryCheckRequest) (*port.InventoryCheckBatch, error) {
	results := make([]port.InventoryCheckResult, len(requests))
	for i, req := range requests {
		results[i] = port.InventoryCheckResult{SkuCode: req.SkuCode, Available: s.available}
	}
	return &port.InventoryCheckBatch{Results: results}, nil
}

type stubNotifier struct{}

func (stubNotifier) PublishOrderReceived(ctx context.Context, event *domain.OrderPlacedEvent)  {}
func (stubNotifier) PublishOrderConfirmed(ctx context.Context, event *domain.OrderPlacedEvent) {}

func newTestMux(t *testing.T, available bool) (*http.ServeMux, *stubRepo) {
	t.Helper()
	repo := &stubRepo{orders: map[string]*domain.Order{}}
	policy := resilience.NewPolicy("handler-test-"+t.Name(), resilience.Config{
		MaxAttempts:    1,
		AttemptTimeout: time.Second,
	})
	svc := application.NewOrderService(repo, &stubInventory{available: available}, stubNotifier{}, policy, otel.Tracer("test"))
	mux := http.NewServeMux()
	NewOrderHandler(svc).RegisterRoutes(mux)
	return mux, repo
}

func TestPlaceOrderEndpoint_Created(t *testing.T) {
	mux, repo := newTestMux(t, true)

	body := `{"orderedItems":[{"skuCode":"TSHIRT","quantity":2,"unitPrice":10.0}]}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/order", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp application.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Placed)
	assert.Len(t, repo.orders, 1)
}

func TestPlaceOrderEndpoint_OutOfStock(t *testing.T) {
	mux, repo := newTestMux(t, false)

	body := `{"orderedItems":[{"skuCode":"TSHIRT","quantity":2,"unitPrice":10.0}]}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/order", strings.NewReader(body)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp application.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Placed)
	assert.Empty(t, repo.orders)
}

func TestPlaceOrderEndpoint_BadJSON(t *testing.T) {
	mux, _ := newTestMux(t, true)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/order", strings.NewReader(`{"orderedItems":`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrderEndpoint_EmptyItemsRejected(t *testing.T) {
	mux, _ := newTestMux(t, true)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/order", strings.NewReader(`{"orderedItems":[]}`)))

	// structurally valid but semantically empty: rejection, not a client syntax error
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetOrderEndpoint_Found(t *testing.T) {
	mux, repo := newTestMux(t, true)

	order, err := domain.NewOrder([]domain.Item{{SkuCode: "MUG", Quantity: 3, UnitPrice: 4.50}})
	require.NoError(t, err)
	repo.orders[order.OrderNumber] = order

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/order/"+order.OrderNumber, nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		OrderNumber string `json:"orderNumber"`
		Items       []struct {
			SkuCode   string  `json:"skuCode"`
			Quantity  int     `json:"quantity"`
			UnitPrice float64 `json:"unitPrice"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, order.OrderNumber, view.OrderNumber)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "MUG", view.Items[0].SkuCode)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, 4.50, view.Items[0].UnitPrice)
}

func TestGetOrderEndpoint_NotFound(t *testing.T) {
	mux, _ := newTestMux(t, true)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/order/does-not-exist", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
