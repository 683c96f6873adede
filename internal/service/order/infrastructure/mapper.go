package infrastructure

import "orderflow/internal/service/order/domain"

// toOrderModel 把领域聚合转换为数据库模型。
func toOrderModel(order *domain.Order) *OrderModel {
	model := &OrderModel{
		OrderNumber: order.OrderNumber,
		CreatedAt:   order.CreatedAt,
		Items:       make([]OrderItemModel, len(order.Items)),
	}
	for i, item := range order.Items {
		model.Items[i] = OrderItemModel{
			OrderNumber: order.OrderNumber,
			SkuCode:     item.SkuCode,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}
	return model
}

// toDomainOrder 把数据库模型转换回领域聚合。
func toDomainOrder(model *OrderModel) *domain.Order {
	order := &domain.Order{
		OrderNumber: model.OrderNumber,
		CreatedAt:   model.CreatedAt,
		Items:       make([]domain.Item, len(model.Items)),
	}
	for i, item := range model.Items {
		order.Items[i] = domain.Item{
			SkuCode:   item.SkuCode,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return order
}
