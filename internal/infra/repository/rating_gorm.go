package repository

import (
	"context"

	"app/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RatingGormRepository struct {
	db *gorm.DB
}

func NewRatingGormRepository(db *gorm.DB) *RatingGormRepository {
	return &RatingGormRepository{db: db}
}

func (r *RatingGormRepository) Upsert(ctx context.Context, rating model.Rating) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "comment", "updated_at"}),
		}).
		Create(&rating).Error
}

func (r *RatingGormRepository) ListByProductID(ctx context.Context, productID int64) ([]model.Rating, error) {
	var items []model.Rating
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id desc").
		Find(&items).Error
	if err != nil {
		return []model.Rating{}, err
	}
	return items, nil
}

func (r *RatingGormRepository) AverageByProductID(ctx context.Context, productID int64) (float64, int64, error) {
	var out struct {
		Avg   float64
		Count int64
	}
	err := r.db.WithContext(ctx).Model(&model.Rating{}).
		Select("COALESCE(AVG(score), 0) AS avg, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&out).Error
	if err != nil {
		return 0, 0, err
	}
	return out.Avg, out.Count, nil
}
