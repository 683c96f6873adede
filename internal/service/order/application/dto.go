package application

import "orderflow/internal/service/order/domain"

// OrderRequest 是下单接口的入参 DTO。
type OrderRequest struct {
	OrderedItems []OrderedItem `json:"orderedItems"`
}

// OrderedItem 是调用方提交的一个订单条目。
type OrderedItem struct {
	SkuCode   string  `json:"skuCode"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// OrderResponse 是下单接口的出参 DTO。
type OrderResponse struct {
	Placed bool `json:"placed"`
}

func (r *OrderRequest) toDomainItems() []domain.Item {
	items := make([]domain.Item, len(r.OrderedItems))
	for i, it := range r.OrderedItems {
		items[i] = domain.Item{
			SkuCode:   it.SkuCode,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return items
}
