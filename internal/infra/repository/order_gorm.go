package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) FindBySessionRef(ctx context.Context, sessionRef string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("external_session_ref = ?", sessionRef).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		//idempotency_keyの一意制約に当たったら呼び出し側で再検索させる
		if isUniqueViolation(err) {
			return 0, repo.ErrDuplicate
		}
		return 0, err
	}
	return order.ID, nil
}

// セッションIDは空のときだけ書ける（1回限り）
func (r *OrderGormRepository) SetSessionRef(ctx context.Context, orderID int64, sessionRef string) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND (external_session_ref IS NULL OR external_session_ref = '')", orderID).
		Updates(map[string]interface{}{
			"external_session_ref": sessionRef,
			"updated_at":           time.Now(),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrConflict
	}
	return nil
}

// ★version一致のCAS更新。負けたらErrConflict
func (r *OrderGormRepository) ApplyReconcile(ctx context.Context, patch repo.OrderReconcilePatch) error {
	updates := map[string]interface{}{
		"status":     patch.Status,
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now(),
	}
	if patch.InvoiceRef != nil {
		updates["invoice_ref"] = *patch.InvoiceRef
	}
	if patch.RefundRef != nil {
		updates["refund_ref"] = *patch.RefundRef
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND version = ?", patch.OrderID, patch.Version).
		Updates(updates)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrConflict
	}
	return nil
}

func (r *OrderGormRepository) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&o).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) StatsTotals(ctx context.Context) (repo.OrderStats, error) {
	var stats repo.OrderStats

	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Count(&stats.TotalOrders).Error; err != nil {
		return repo.OrderStats{}, err
	}

	//回収済み扱いのstatusだけ売上に数える
	var revenue struct{ Sum int64 }
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Select("COALESCE(SUM(total_amount), 0) AS sum").
		Where("status IN ?", []model.OrderStatus{
			model.OrderStatusPaid,
			model.OrderStatusDispatched,
			model.OrderStatusDelivered,
			model.OrderStatusCompleted,
		}).
		Scan(&revenue).Error
	if err != nil {
		return repo.OrderStats{}, err
	}

	stats.TotalRevenue = revenue.Sum
	return stats, nil
}

func (r *OrderGormRepository) CountRefundedByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ? AND status = ?", userID, model.OrderStatusRefunded).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return n, nil
}
