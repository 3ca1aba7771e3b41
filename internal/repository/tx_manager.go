package repository

import "context"

// 同一トランザクションに乗せるrepository一式。
// checkoutの在庫引当〜注文作成〜カート確定が主な利用者
type TxRepos interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Carts() CartRepository
	CartItems() CartItemRepository
	Inventory() InventoryRepository
	Products() ProductRepository
}

// begin/commit/rollbackをusecaseから隠す。fnがerrorを返したらrollback
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
