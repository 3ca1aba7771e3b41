package repository

import (
	"context"

	"app/internal/domain/model"
)

type RatingRepository interface {
	//同じ(user, product)なら上書き
	Upsert(ctx context.Context, rating model.Rating) error
	ListByProductID(ctx context.Context, productID int64) ([]model.Rating, error)
	AverageByProductID(ctx context.Context, productID int64) (float64, int64, error)
}
