package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orderflow/internal/service/order/domain"
)

// NewMySQL 建立数据库连接并迁移订单表结构。
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if err := db.AutoMigrate(&OrderModel{}, &OrderItemModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate order tables")
	}
	return db, nil
}

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Save 在一个本地事务内写入订单及其条目。
// 订单号冲突时整体跳过，同一订单号的重放不会产生重复记录，
// 也不会出现只有条目或只有订单头的半成品。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Omit("Items").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_number"}},
			DoNothing: true,
		}).Create(model)
		if res.Error != nil {
			return errors.Wrap(res.Error, "insert order")
		}
		if res.RowsAffected == 0 {
			// 已存在同号订单，幂等返回
			return nil
		}
		if len(model.Items) > 0 {
			if err := tx.Create(&model.Items).Error; err != nil {
				return errors.Wrap(err, "insert order items")
			}
		}
		return nil
	})
}

// FindByOrderNumber 连同条目读出一个订单聚合。
func (r *GormOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_number = ?", orderNumber).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return toDomainOrder(&model), nil
}
