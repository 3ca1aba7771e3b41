package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/gateway"
	repo "app/internal/repository"
)

// 返金。statusをrefundedにできるのはここだけ
type RefundUsecase struct {
	orders    repo.OrderRepository
	gw        gateway.PaymentGateway
	auditRepo repo.AuditLogRepository
}

func NewRefundUsecase(
	orders repo.OrderRepository,
	gw gateway.PaymentGateway,
	auditRepo repo.AuditLogRepository,
) *RefundUsecase {
	return &RefundUsecase{orders: orders, gw: gw, auditRepo: auditRepo}
}

// セッションIDで注文を引いて全額返金する。
// 2回目の呼び出しは前提チェックで必ず落ちる（黙って再実行はしない）
func (u *RefundUsecase) RefundBySessionRef(ctx context.Context, actorAdminUserID int64, sessionRef string) (model.Order, error) {
	if actorAdminUserID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	sessionRef = strings.TrimSpace(sessionRef)
	if sessionRef == "" {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	o, err := u.orders.FindBySessionRef(ctx, sessionRef)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//未払い・キャンセルは回収した支払いが無いので返金できない
	if o.Status == model.OrderStatusPending || o.Status == model.OrderStatusCanceled {
		return model.Order{}, NewCodedError(http.StatusBadRequest, CodeInvalidTransition,
			fmt.Sprintf("cannot refund an order with status '%s'", o.Status))
	}
	if o.Status == model.OrderStatusRefunded || o.RefundRef != "" {
		return model.Order{}, NewCodedError(http.StatusBadRequest, CodeAlreadyRefunded, "order has already been refunded")
	}

	s, err := u.gw.RetrieveSession(ctx, sessionRef)
	if errors.Is(err, gateway.ErrNotFound) {
		return model.Order{}, NewCodedError(http.StatusNotFound, CodeNotFound, "payment session not found")
	}
	if err != nil {
		return model.Order{}, NewCodedError(http.StatusBadGateway, CodeGatewayUnavailable, "payment gateway unavailable")
	}
	if s.PaymentIntentRef == "" {
		return model.Order{}, NewCodedError(http.StatusBadRequest, CodePreconditionFailed, "no payment intent found for the order")
	}

	//金額は副単位に直して全額
	refund, err := u.gw.CreateRefund(ctx, s.PaymentIntentRef, o.TotalAmount*100)
	if err != nil {
		return model.Order{}, NewCodedError(http.StatusBadGateway, CodeGatewayUnavailable, "refund request failed")
	}

	patch := repo.OrderReconcilePatch{
		OrderID:   o.ID,
		Version:   o.Version,
		Status:    model.OrderStatusRefunded,
		RefundRef: &refund.ID,
	}
	if err := u.orders.ApplyReconcile(ctx, patch); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			//返金自体は通っている。取り込みは再試行させる
			return model.Order{}, NewCodedError(http.StatusConflict, CodeConflict, "order was updated concurrently, retry")
		}
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//★監査ログ（REFUND_ORDER）
	beforeJSON := `{"status":"` + string(o.Status) + `"}`
	afterJSON := `{"status":"refunded","refund_ref":"` + refund.ID + `"}`
	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actorAdminUserID,
		Action:       model.AuditActionRefundOrder,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   o.ID,
		BeforeJSON:   beforeJSON,
		AfterJSON:    afterJSON,
		CreatedAt:    time.Now(),
	}); err != nil {
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	o.Status = model.OrderStatusRefunded
	o.RefundRef = refund.ID
	o.Version++
	return o, nil
}
