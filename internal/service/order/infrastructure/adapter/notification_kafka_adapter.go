package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/order/domain"
)

// 事件种类通过消息头传递，消息体保持为 {orderNumber}
const eventKindHeader = "event-kind"

const publishTimeout = 5 * time.Second

// NotificationKafkaAdapter 实现 port.NotificationPublisher。
//
// 发送是 fire-and-forget：在独立 goroutine 里、带自身超时地写入 Kafka，
// 失败只记日志。链路上下文保留，但不继承请求 context 的超时与取消，
// 避免请求先行结束时丢掉通知。
type NotificationKafkaAdapter struct {
	writer *kafka.Writer
}

func NewNotificationKafkaAdapter(writer *kafka.Writer) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

func (a *NotificationKafkaAdapter) PublishOrderReceived(ctx context.Context, event *domain.OrderPlacedEvent) {
	a.publish(ctx, domain.EventOrderReceived, event)
}

func (a *NotificationKafkaAdapter) PublishOrderConfirmed(ctx context.Context, event *domain.OrderPlacedEvent) {
	a.publish(ctx, domain.EventOrderConfirmed, event)
}

func (a *NotificationKafkaAdapter) publish(ctx context.Context, kind domain.EventKind, event *domain.OrderPlacedEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("order", event.OrderNumber).
			Msg("failed to marshal order notification")
		return
	}

	// 只带走 Span 上下文，不带走调用方的超时
	detached := trace.ContextWithRemoteSpanContext(context.Background(), trace.SpanContextFromContext(ctx))

	go func() {
		sendCtx, cancel := context.WithTimeout(detached, publishTimeout)
		defer cancel()

		err := mq.ProduceMessage(sendCtx, a.writer, []byte(event.OrderNumber), payload,
			kafka.Header{Key: eventKindHeader, Value: []byte(kind)})
		if err != nil {
			logger.Ctx(sendCtx).Error().Err(err).
				Str("order", event.OrderNumber).
				Str("kind", string(kind)).
				Msg("failed to publish order notification")
		}
	}()
}

// Close 关闭底层的 Kafka writer。
func (a *NotificationKafkaAdapter) Close() error {
	return a.writer.Close()
}
