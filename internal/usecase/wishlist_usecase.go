package usecase

import (
	"context"
	"errors"
	"net/http"

	repo "app/internal/repository"
)

type WishlistUsecase struct {
	wishlist repo.WishlistRepository
	products repo.ProductRepository
}

func NewWishlistUsecase(wishlist repo.WishlistRepository, products repo.ProductRepository) *WishlistUsecase {
	return &WishlistUsecase{wishlist: wishlist, products: products}
}

type WishlistEntryOutput struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Brand     string `json:"brand,omitempty"`
}

func (u *WishlistUsecase) List(ctx context.Context, userID int64) ([]WishlistEntryOutput, error) {
	if userID <= 0 {
		return []WishlistEntryOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	items, err := u.wishlist.ListByUserID(ctx, userID)
	if err != nil {
		return []WishlistEntryOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]WishlistEntryOutput, 0, len(items))
	for _, it := range items {
		p, err := u.products.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			//削除済み商品は読み飛ばす
			continue
		}
		if err != nil {
			return []WishlistEntryOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		outs = append(outs, WishlistEntryOutput{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Brand:     p.Brand,
		})
	}
	return outs, nil
}

func (u *WishlistUsecase) Add(ctx context.Context, userID int64, productID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}

	p, err := u.products.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsActive {
		return NewHTTPError(http.StatusNotFound, "not found")
	}

	if err := u.wishlist.Add(ctx, userID, productID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

func (u *WishlistUsecase) Remove(ctx context.Context, userID int64, productID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}

	err := u.wishlist.Remove(ctx, userID, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}
