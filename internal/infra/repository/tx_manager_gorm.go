package repository

import (
	"context"

	repo "app/internal/repository"

	"gorm.io/gorm"
)

// gormのTransactionでTxReposを組み立てる
type GormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

func (m *GormTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTxRepos{tx: tx})
	})
}

type gormTxRepos struct {
	tx *gorm.DB
}

func (r *gormTxRepos) Orders() repo.OrderRepository         { return NewOrderGormRepository(r.tx) }
func (r *gormTxRepos) OrderItems() repo.OrderItemRepository { return NewOrderItemGormRepository(r.tx) }
func (r *gormTxRepos) Carts() repo.CartRepository           { return NewCartGormRepository(r.tx) }
func (r *gormTxRepos) CartItems() repo.CartItemRepository   { return NewCartItemGormRepository(r.tx) }
func (r *gormTxRepos) Inventory() repo.InventoryRepository  { return NewInventoryGormRepository(r.tx) }
func (r *gormTxRepos) Products() repo.ProductRepository     { return NewProductGormRepository(r.tx) }
