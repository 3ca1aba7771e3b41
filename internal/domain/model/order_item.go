package model

import "time"

type ItemSize string

const (
	ItemSizeS   ItemSize = "S"
	ItemSizeM   ItemSize = "M"
	ItemSizeL   ItemSize = "L"
	ItemSizeXL  ItemSize = "XL"
	ItemSizeXXL ItemSize = "XXL"
)

func (s ItemSize) Valid() bool {
	switch s {
	case ItemSizeS, ItemSizeM, ItemSizeL, ItemSizeXL, ItemSizeXXL:
		return true
	default:
		return false
	}
}

// 注文明細。確定時点の商品名・単価をスナップショットする
type OrderItem struct {
	ID                  int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64  `gorm:"not null;index" json:"order_id"`
	ProductID           int64  `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   int64  `gorm:"not null" json:"unit_price_snapshot"`
	Quantity            int64  `gorm:"not null" json:"quantity"`

	//任意のバリエーション指定
	Color  string   `gorm:"type:varchar(50)" json:"color,omitempty"`
	Flavor string   `gorm:"type:varchar(50)" json:"flavor,omitempty"`
	Size   ItemSize `gorm:"type:varchar(5)" json:"size,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
