package port

import (
	"context"

	"orderflow/internal/service/order/domain"
)

// NotificationPublisher 是订单生命周期通知的出站端口。
//
// 两个方法都是 fire-and-forget：投递至少一次、不保证顺序，
// 失败只记日志，绝不阻塞或影响下单结果，所以不返回 error。
type NotificationPublisher interface {
	// PublishOrderReceived 在库存校验之前发出「已收到订单」通知。
	PublishOrderReceived(ctx context.Context, event *domain.OrderPlacedEvent)

	// PublishOrderConfirmed 在库存校验通过之后发出「订单确认」通知。
	PublishOrderConfirmed(ctx context.Context, event *domain.OrderPlacedEvent)
}
