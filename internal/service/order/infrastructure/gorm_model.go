package infrastructure

import "time"

// OrderModel 对应数据库中的 orders 表，以订单号为主键。
type OrderModel struct {
	OrderNumber string `gorm:"primaryKey;size:64"`
	CreatedAt   time.Time

	Items []OrderItemModel `gorm:"foreignKey:OrderNumber;references:OrderNumber"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应 order_items 表。
type OrderItemModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	OrderNumber string `gorm:"index;size:64"`
	SkuCode     string `gorm:"size:64"`
	Quantity    int
	UnitPrice   float64 `gorm:"type:decimal(10,2)"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}
