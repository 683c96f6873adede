package interfaces

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"orderflow/internal/service/order/application"
	"orderflow/internal/service/order/domain"
)

// OrderHandler 封装 order 服务的 HTTP 处理器。
type OrderHandler struct {
	service *application.OrderService
}

func NewOrderHandler(service *application.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/order", h.handlePlaceOrder)
	mux.HandleFunc("GET /api/order/{orderNumber}", h.handleGetOrder)
}

func (h *OrderHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	placed := h.service.PlaceOrder(ctx, &req)

	w.Header().Set("Content-Type", "application/json")
	if placed {
		w.WriteHeader(http.StatusCreated)
	} else {
		// 非法请求、缺货、依赖不可用对外都是同一种拒绝
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	json.NewEncoder(w).Encode(application.OrderResponse{Placed: placed})
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	orderNumber := r.PathValue("orderNumber")
	order, err := h.service.GetOrder(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toOrderView(order))
}

// orderView 是查询接口的响应形状。
type orderView struct {
	OrderNumber string         `json:"orderNumber"`
	Items       []orderItemView `json:"items"`
}

type orderItemView struct {
	SkuCode   string  `json:"skuCode"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

func toOrderView(order *domain.Order) orderView {
	view := orderView{
		OrderNumber: order.OrderNumber,
		Items:       make([]orderItemView, len(order.Items)),
	}
	for i, item := range order.Items {
		view.Items[i] = orderItemView{
			SkuCode:   item.SkuCode,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return view
}
