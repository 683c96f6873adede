package application

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/resilience"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/port"
)

// OrderService 编排下单工作流：本地持久化、远程库存校验、
// 生命周期通知。所有外部依赖以出站端口的形式在构造时注入。
type OrderService struct {
	repo      domain.OrderRepository
	inventory port.InventoryChecker
	notifier  port.NotificationPublisher
	policy    *resilience.Policy
	tracer    trace.Tracer
}

func NewOrderService(
	repo domain.OrderRepository,
	inventory port.InventoryChecker,
	notifier port.NotificationPublisher,
	policy *resilience.Policy,
	tracer trace.Tracer,
) *OrderService {
	return &OrderService{
		repo:      repo,
		inventory: inventory,
		notifier:  notifier,
		policy:    policy,
		tracer:    tracer,
	}
}

// PlaceOrder 执行一次下单。调用方只会看到接受（true）或拒绝（false），
// 拒绝的具体原因（非法请求、缺货、依赖不可用）通过日志与链路区分。
//
// 副作用不回滚：已发出的通知不会因为后续校验失败或落库失败而被撤回，
// 通知语义是至少一次、尽力而为。
func (s *OrderService) PlaceOrder(ctx context.Context, req *OrderRequest) bool {
	if req == nil {
		return false
	}

	order, err := domain.NewOrder(req.toDomainItems())
	if err != nil {
		// 校验失败发生在任何副作用之前：没有事件、没有远程调用、没有落库
		logger.Ctx(ctx).Warn().Err(err).Msg("order request rejected by validation")
		return false
	}

	event := &domain.OrderPlacedEvent{OrderNumber: order.OrderNumber}
	s.notifier.PublishOrderReceived(ctx, event)

	batch := s.checkInventory(ctx, order)
	if batch == nil {
		// 策略层失败，fallback 已记录原始请求与失败原因
		return false
	}
	if batch.Rejected {
		// 对端业务拒绝是正常结果，不按错误处理
		logger.Ctx(ctx).Info().
			Str("order", order.OrderNumber).
			Msg("inventory service rejected the batch")
		return false
	}
	if !batch.AllAvailable() {
		logger.Ctx(ctx).Info().
			Str("order", order.OrderNumber).
			Msg("order rejected: not all items in stock")
		return false
	}

	s.notifier.PublishOrderConfirmed(ctx, event)

	if err := s.repo.Save(ctx, order); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("order", order.OrderNumber).
			Msg("failed to persist confirmed order")
		return false
	}

	logger.Ctx(ctx).Info().
		Str("order", order.OrderNumber).
		Int("items", len(order.Items)).
		Msg("order placed")
	return true
}

// GetOrder 按订单号查询已提交的订单。
func (s *OrderService) GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.repo.FindByOrderNumber(ctx, orderNumber)
}

// checkInventory 在 "CreateOrder" span 内、弹性策略保护下调用库存服务。
// span 在每条退出路径上都恰好结束一次：成功、失败、熔断短路。
// 策略层失败时返回 nil，由调用方解释为拒绝。
func (s *OrderService) checkInventory(ctx context.Context, order *domain.Order) *port.InventoryCheckBatch {
	requests := make([]port.InventoryCheckRequest, len(order.Items))
	for i, item := range order.Items {
		requests[i] = port.InventoryCheckRequest{
			SkuCode:  item.SkuCode,
			Quantity: item.Quantity,
		}
	}

	ctx, span := s.tracer.Start(ctx, "CreateOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.number", order.OrderNumber),
		attribute.Int("order.items", len(requests)),
	)

	return resilience.Execute(ctx, s.policy,
		func(ctx context.Context) (*port.InventoryCheckBatch, error) {
			return s.inventory.CheckAvailability(ctx, requests)
		},
		func(ctx context.Context, err error) *port.InventoryCheckBatch {
			span.RecordError(err)
			span.SetStatus(codes.Error, "inventory check failed")

			evt := logger.Ctx(ctx).Error().Err(err).
				Str("order", order.OrderNumber).
				Interface("requests", requests)
			if errors.Is(err, resilience.ErrOpenState) {
				evt.Msg("inventory check short-circuited by open circuit")
			} else {
				evt.Msg("inventory check failed after retries, rejecting order")
			}
			return nil
		})
}
