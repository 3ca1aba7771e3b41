package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// ユーザー1人あたりの返金許容回数。超えたらアカウントをブロックする
const refundLimitPerUser = 10

type DashboardUsecase struct {
	orders    repo.OrderRepository
	users     repo.UserRepository
	auditRepo repo.AuditLogRepository
}

func NewDashboardUsecase(orders repo.OrderRepository, users repo.UserRepository, auditRepo repo.AuditLogRepository) *DashboardUsecase {
	return &DashboardUsecase{orders: orders, users: users, auditRepo: auditRepo}
}

type DashboardSummaryOutput struct {
	TotalOrders  int64 `json:"total_orders"`
	TotalRevenue int64 `json:"total_revenue"`
}

type UserOrderReportOutput struct {
	UserID        int64         `json:"user_id"`
	Username      string        `json:"username"`
	Email         string        `json:"email"`
	IsActive      bool          `json:"is_active"`
	RefundedCount int64         `json:"refunded_count"`
	Orders        []OrderOutput `json:"orders"`
}

func (u *DashboardUsecase) Summary(ctx context.Context, actorAdminUserID int64) (DashboardSummaryOutput, error) {
	if actorAdminUserID <= 0 {
		return DashboardSummaryOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	stats, err := u.orders.StatsTotals(ctx)
	if err != nil {
		return DashboardSummaryOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return DashboardSummaryOutput{
		TotalOrders:  stats.TotalOrders,
		TotalRevenue: stats.TotalRevenue,
	}, nil
}

// 特定ユーザーの注文レポート。返金回数が上限を超えていたら
// その場でアカウントをブロックして403を返す
func (u *DashboardUsecase) UserOrderReport(ctx context.Context, actorAdminUserID int64, targetUserID int64) (UserOrderReportOutput, error) {
	if actorAdminUserID <= 0 {
		return UserOrderReportOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if targetUserID <= 0 {
		return UserOrderReportOutput{}, NewHTTPError(http.StatusBadRequest, "invalid user_id")
	}

	user, err := u.users.FindByID(ctx, targetUserID)
	if errors.Is(err, repo.ErrUserNotFound) || errors.Is(err, repo.ErrNotFound) {
		return UserOrderReportOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return UserOrderReportOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	refunded, err := u.orders.CountRefundedByUser(ctx, targetUserID)
	if err != nil {
		return UserOrderReportOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if refunded >= refundLimitPerUser && user.IsActive {
		if err := u.users.SetActive(ctx, targetUserID, false); err != nil {
			return UserOrderReportOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		//★監査ログ（BLOCK_USER）
		_ = u.auditRepo.Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionBlockUser,
			ResourceType: model.AuditResourceUser,
			ResourceID:   targetUserID,
			BeforeJSON:   `{"is_active":true}`,
			AfterJSON:    `{"is_active":false,"refunded_count":` + int64String(refunded) + `}`,
			CreatedAt:    time.Now(),
		})
		return UserOrderReportOutput{}, NewCodedError(http.StatusForbidden, CodeRefundLimitExceeded, "refund limit exceeded, account blocked")
	}

	orders, _, err := u.orders.ListByUserID(ctx, targetUserID, 1, 100)
	if err != nil {
		return UserOrderReportOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o, nil))
	}

	return UserOrderReportOutput{
		UserID:        user.ID,
		Username:      user.Username,
		Email:         user.Email,
		IsActive:      user.IsActive,
		RefundedCount: refunded,
		Orders:        outs,
	}, nil
}

func (u *DashboardUsecase) AuditLogs(ctx context.Context, actorAdminUserID int64, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	if actorAdminUserID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 50
	}

	logs, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return logs, nil
}
