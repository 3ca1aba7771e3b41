package model

import "time"

// 商品レビュー。1ユーザー1商品につき1件（再投稿は上書き）
type Rating struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_ratings_user_product" json:"user_id"`
	ProductID int64     `gorm:"not null;uniqueIndex:idx_ratings_user_product;index" json:"product_id"`
	Score     int       `gorm:"not null" json:"score"` // 1〜5
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
