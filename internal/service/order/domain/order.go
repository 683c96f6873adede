package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidOrder 表示下单请求没有通过基本校验，任何副作用发生之前即被拒绝。
var ErrInvalidOrder = errors.New("invalid order request")

// Order 是订单聚合根。构造时即分配全局唯一的 OrderNumber，
// 与最终是否落库无关；一旦落库成功，聚合不再变更。
type Order struct {
	OrderNumber string
	Items       []Item
	CreatedAt   time.Time
}

// Item 是订单内的一个条目，与请求中的条目一一对应。
type Item struct {
	SkuCode   string
	Quantity  int
	UnitPrice float64
}

// NewOrder 校验条目并组装订单聚合。
// 空条目、空 SKU、非正数量、负单价都会被拒绝。
func NewOrder(items []Item) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrInvalidOrder
	}
	for _, item := range items {
		if item.SkuCode == "" || item.Quantity <= 0 || item.UnitPrice < 0 {
			return nil, ErrInvalidOrder
		}
	}

	order := &Order{
		OrderNumber: uuid.New().String(),
		Items:       make([]Item, len(items)),
		CreatedAt:   time.Now(),
	}
	copy(order.Items, items)
	return order, nil
}
