package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

// reconcile/refundが注文へ書き戻すときのパッチ。
// Versionは読み出した時点の値で、一致しない書き込みはErrConflictになる。
type OrderReconcilePatch struct {
	OrderID int64
	Version int64

	Status model.OrderStatus

	//nilなら変更しない
	InvoiceRef *string
	RefundRef  *string
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)

	//決済セッションIDで検索（refund・webhookのエントリポイント）
	FindBySessionRef(ctx context.Context, sessionRef string) (model.Order, error)

	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	//セッション作成直後に1回だけ呼ぶ。既に入っていればErrConflict
	SetSessionRef(ctx context.Context, orderID int64, sessionRef string) error

	//★version一致が条件のCAS更新。0件ならErrConflict
	ApplyReconcile(ctx context.Context, patch OrderReconcilePatch) error

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	//返金済み注文の件数（返金回数超過ブロック用）
	CountRefundedByUser(ctx context.Context, userID int64) (int64, error)

	//ダッシュボード用の合計（注文数と回収済み扱いstatusの売上）
	StatsTotals(ctx context.Context) (OrderStats, error)
}

type OrderStats struct {
	TotalOrders  int64
	TotalRevenue int64
}
