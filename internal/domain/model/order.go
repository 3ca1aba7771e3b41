package model

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusDispatched OrderStatus = "dispatched"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCanceled   OrderStatus = "canceled"
)

// statusとして保存できる値か
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusRefunded,
		OrderStatusDispatched, OrderStatusDelivered, OrderStatusCompleted,
		OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// 注文。statusは決済ゲートウェイとの照合（reconcile）でのみ遷移する。
type Order struct {
	ID                int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            int64       `gorm:"not null;index" json:"user_id"`
	ShippingAddressID int64       `gorm:"not null" json:"shipping_address_id"`
	Status            OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	//合計金額（通貨の主単位）。作成時に確定して以後不変
	TotalAmount int64 `gorm:"not null" json:"total_amount"`

	//決済ゲートウェイのcheckoutセッションID。セッション作成直後に1回だけ入る
	ExternalSessionRef string `gorm:"type:varchar(255);index" json:"external_session_ref"`

	//返金ID。返金済みのときだけ入る（1回まで）
	RefundRef string `gorm:"type:varchar(255)" json:"refund_ref,omitempty"`

	//請求書URL。ゲートウェイが報告したときだけ入る
	InvoiceRef string `gorm:"type:varchar(512)" json:"invoice_ref,omitempty"`

	//二重送信防止キー
	IdempotencyKey string `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`

	//★楽観ロック。reconcile/refundの書き込みはversion一致が条件
	Version int64 `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
