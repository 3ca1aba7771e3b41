package repository

import "context"

type InventoryRepository interface {
	SetStock(ctx context.Context, productID int64, newStock int64) error

	//在庫が足りれば減らしてtrue。足りなければ何もせずfalse
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	//キャンセル時の在庫戻し
	IncreaseStock(ctx context.Context, productID int64, qty int64) error
}
