package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/service/order/domain"
)

// CachedOrderRepository 在任意 OrderRepository 外面加一层 cache-aside 的
// Redis 缓存。订单落库后不可变，缓存只需 TTL 过期，不需要失效广播。
// 缓存故障一律降级到底层仓储，只记日志。
type CachedOrderRepository struct {
	inner domain.OrderRepository
	rdb   redis.UniversalClient
	ttl   time.Duration
}

func NewCachedOrderRepository(inner domain.OrderRepository, rdb redis.UniversalClient, ttl time.Duration) *CachedOrderRepository {
	return &CachedOrderRepository{inner: inner, rdb: rdb, ttl: ttl}
}

func cacheKey(orderNumber string) string {
	return "order:" + orderNumber
}

// Save 先落库，成功后回填缓存（尽力而为）。
func (r *CachedOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if err := r.inner.Save(ctx, order); err != nil {
		return err
	}
	r.fill(ctx, order)
	return nil
}

// FindByOrderNumber 命中缓存直接返回，未命中回源并回填。
func (r *CachedOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	value, err := r.rdb.Get(ctx, cacheKey(orderNumber)).Result()
	if err == nil {
		var order domain.Order
		if err := json.Unmarshal([]byte(value), &order); err == nil {
			return &order, nil
		}
		// 缓存内容损坏，当作未命中回源
	} else if err != redis.Nil {
		logger.Ctx(ctx).Debug().Err(err).Str("order", orderNumber).Msg("order cache read failed")
	}

	order, err := r.inner.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	r.fill(ctx, order)
	return order, nil
}

func (r *CachedOrderRepository) fill(ctx context.Context, order *domain.Order) {
	payload, err := json.Marshal(order)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, cacheKey(order.OrderNumber), payload, r.ttl).Err(); err != nil {
		logger.Ctx(ctx).Debug().Err(err).Str("order", order.OrderNumber).Msg("order cache write failed")
	}
}
