package domain

import (
	"context"
	"errors"
)

// ErrOrderNotFound 由仓储在查无此单时返回。
var ErrOrderNotFound = errors.New("order not found")

// OrderRepository 定义订单聚合的持久化接口，由基础设施层实现。
type OrderRepository interface {
	// Save 持久化一个订单聚合。对同一 OrderNumber 重复调用必须幂等，
	// 不产生重复记录；单次调用在一个本地事务内完成，不存在部分落库。
	Save(ctx context.Context, order *Order) error

	// FindByOrderNumber 按订单号查找聚合，查无返回 ErrOrderNotFound。
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)
}
