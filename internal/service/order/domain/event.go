package domain

// EventKind 区分订单生命周期里两个不同语义的通知点：
// 收到订单（库存校验前）与订单确认（库存校验通过后）。
type EventKind string

const (
	EventOrderReceived  EventKind = "ORDER_RECEIVED"
	EventOrderConfirmed EventKind = "ORDER_CONFIRMED"
)

// OrderPlacedEvent 是发往通知主题的消息体。
// 消息体只携带订单号，事件种类放在消息头里传递。
type OrderPlacedEvent struct {
	OrderNumber string `json:"orderNumber"`
}
