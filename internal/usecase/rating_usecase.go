package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type RatingUsecase struct {
	ratings  repo.RatingRepository
	products repo.ProductRepository
}

func NewRatingUsecase(ratings repo.RatingRepository, products repo.ProductRepository) *RatingUsecase {
	return &RatingUsecase{ratings: ratings, products: products}
}

type RateProductInput struct {
	ProductID int64
	Score     int
	Comment   string
}

type ProductRatingsOutput struct {
	Average float64        `json:"average"`
	Count   int64          `json:"count"`
	Items   []model.Rating `json:"items"`
}

// 同じユーザーの再投稿は上書きになる
func (u *RatingUsecase) RateProduct(ctx context.Context, userID int64, in RateProductInput) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Score < 1 || in.Score > 5 {
		return NewHTTPError(http.StatusBadRequest, "score must be between 1 and 5")
	}
	if len(in.Comment) > 2000 {
		return NewHTTPError(http.StatusBadRequest, "comment too long")
	}

	p, err := u.products.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !p.IsActive {
		return NewHTTPError(http.StatusNotFound, "not found")
	}

	err = u.ratings.Upsert(ctx, model.Rating{
		UserID:    userID,
		ProductID: in.ProductID,
		Score:     in.Score,
		Comment:   strings.TrimSpace(in.Comment),
	})
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

func (u *RatingUsecase) ListForProduct(ctx context.Context, productID int64) (ProductRatingsOutput, error) {
	if productID <= 0 {
		return ProductRatingsOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}

	items, err := u.ratings.ListByProductID(ctx, productID)
	if err != nil {
		return ProductRatingsOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	avg, count, err := u.ratings.AverageByProductID(ctx, productID)
	if err != nil {
		return ProductRatingsOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return ProductRatingsOutput{Average: avg, Count: count, Items: items}, nil
}
