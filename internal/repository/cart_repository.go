package repository

import (
	"context"

	"app/internal/domain/model"
)

type CartRepository interface {
	FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)

	//ACTIVEカートが無ければ作る
	FindOrCreateActive(ctx context.Context, userID int64) (model.Cart, error)

	UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error

	//明細を全削除する
	Clear(ctx context.Context, cartID int64) error
}

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	FindByCartAndProduct(ctx context.Context, cartID int64, productID int64) (model.CartItem, bool, error)
	Create(ctx context.Context, item model.CartItem) error
	UpdateQuantity(ctx context.Context, itemID int64, qty int64) error
	Delete(ctx context.Context, itemID int64) error
}
