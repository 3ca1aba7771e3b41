package model

import "time"

// カート明細。追加時点の単価を必ずスナップショットする
type CartItem struct {
	ID                int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID            int64 `gorm:"not null;index" json:"cart_id"`
	ProductID         int64 `gorm:"not null;index" json:"product_id"`
	Quantity          int64 `gorm:"not null" json:"quantity"`
	UnitPriceSnapshot int64 `gorm:"not null;column:unit_price_snapshot" json:"unit_price_snapshot"`

	//任意のバリエーション指定（注文明細へ引き継ぐ）
	Color  string   `gorm:"type:varchar(50)" json:"color,omitempty"`
	Flavor string   `gorm:"type:varchar(50)" json:"flavor,omitempty"`
	Size   ItemSize `gorm:"type:varchar(5)" json:"size,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
