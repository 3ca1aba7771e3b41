package repository

import (
	"context"

	"app/internal/domain/model"
)

type ProductListQuery struct {
	Page     int
	Limit    int
	Q        string
	Category string
	MinPrice *int64
	MaxPrice *int64
	Sort     string // "", "new", "price_asc", "price_desc"
}

type ProductRepository interface {
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, productID int64) (model.Product, error)
	Create(ctx context.Context, p model.Product) (int64, error)
	Update(ctx context.Context, p model.Product) error
	Delete(ctx context.Context, productID int64) error
}
