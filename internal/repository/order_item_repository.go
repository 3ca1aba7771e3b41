package repository

import (
	"context"

	"app/internal/domain/model"
)

// 注文明細。商品名と単価は注文時点のスナップショットで、後から変わらない
type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
