package usecase

import (
	"context"
	"errors"
	"net/http"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type CartUsecase struct {
	tx repo.TransactionManager
}

func NewCartUsecase(tx repo.TransactionManager) *CartUsecase {
	return &CartUsecase{tx: tx}
}

type CartItemOutput struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Color     string `json:"color,omitempty"`
	Flavor    string `json:"flavor,omitempty"`
	Size      string `json:"size,omitempty"`
}

type CartOutput struct {
	CartID int64            `json:"cart_id"`
	Items  []CartItemOutput `json:"items"`
	Total  int64            `json:"total"`
}

type AddCartItemInput struct {
	ProductID int64
	Quantity  int64
	Color     string
	Flavor    string
	Size      string
}

func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindOrCreateActive(ctx, userID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toCartOutput(cart.ID, items)
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

func (u *CartUsecase) AddItem(ctx context.Context, userID int64, in AddCartItemInput) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
	}
	if in.Size != "" && !model.ItemSize(in.Size).Valid() {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid size")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, in.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !p.IsActive {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		cart, err := r.Carts().FindOrCreateActive(ctx, userID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//同じ商品は数量を足す
		existing, found, err := r.CartItems().FindByCartAndProduct(ctx, cart.ID, in.ProductID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if found {
			if err := r.CartItems().UpdateQuantity(ctx, existing.ID, existing.Quantity+in.Quantity); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		} else {
			item := model.CartItem{
				CartID:            cart.ID,
				ProductID:         in.ProductID,
				Quantity:          in.Quantity,
				UnitPriceSnapshot: p.Price,
				Color:             in.Color,
				Flavor:            in.Flavor,
				Size:              model.ItemSize(in.Size),
			}
			if err := r.CartItems().Create(ctx, item); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = toCartOutput(cart.ID, items)
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

func (u *CartUsecase) UpdateItemQuantity(ctx context.Context, userID int64, itemID int64, qty int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if itemID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if qty < 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "quantity must be >= 0")
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindActiveByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//自分のカートの明細かチェック
		var target *model.CartItem
		for i := range items {
			if items[i].ID == itemID {
				target = &items[i]
				break
			}
		}
		if target == nil {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		//0は削除扱い
		if qty == 0 {
			if err := r.CartItems().Delete(ctx, itemID); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		} else {
			if err := r.CartItems().UpdateQuantity(ctx, itemID, qty); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		items, err = r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = toCartOutput(cart.ID, items)
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, itemID int64) (CartOutput, error) {
	return u.UpdateItemQuantity(ctx, userID, itemID, 0)
}

func toCartOutput(cartID int64, items []model.CartItem) CartOutput {
	outItems := make([]CartItemOutput, 0, len(items))
	var total int64 = 0
	for _, it := range items {
		outItems = append(outItems, CartItemOutput{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPriceSnapshot,
			Color:     it.Color,
			Flavor:    it.Flavor,
			Size:      string(it.Size),
		})
		total += it.UnitPriceSnapshot * it.Quantity
	}
	return CartOutput{CartID: cartID, Items: outItems, Total: total}
}
