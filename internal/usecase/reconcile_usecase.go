package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"app/internal/domain/model"
	"app/internal/gateway"
	repo "app/internal/repository"
)

// 注文statusと決済ゲートウェイのセッション状態を突き合わせるエンジン。
// 管理者経路（ポーリング）とwebhook経路（completionイベント）の2本がある。
type ReconcileUsecase struct {
	orders    repo.OrderRepository
	gw        gateway.PaymentGateway
	auditRepo repo.AuditLogRepository
}

func NewReconcileUsecase(
	orders repo.OrderRepository,
	gw gateway.PaymentGateway,
	auditRepo repo.AuditLogRepository,
) *ReconcileUsecase {
	return &ReconcileUsecase{orders: orders, gw: gw, auditRepo: auditRepo}
}

// 遷移表の適用結果
type TransitionDecision struct {
	Reject     bool
	HTTPStatus int
	Code       string
	Message    string

	//受理時に採用するstatus
	NextStatus model.OrderStatus

	//受理時、ゲートウェイが請求書を報告していれば取得して添付する
	FetchInvoice bool
}

// 遷移ルール。nilのフィールドは「任意」
type transitionRule struct {
	gateway     gateway.PaymentStatus
	requestedIn []model.OrderStatus
	currentIn   []model.OrderStatus

	decide func(requested model.OrderStatus) TransitionDecision
}

func rejectWith(status int, code string, message string) func(model.OrderStatus) TransitionDecision {
	return func(model.OrderStatus) TransitionDecision {
		return TransitionDecision{Reject: true, HTTPStatus: status, Code: code, Message: message}
	}
}

func acceptRequested(fetchInvoice bool) func(model.OrderStatus) TransitionDecision {
	return func(requested model.OrderStatus) TransitionDecision {
		return TransitionDecision{NextStatus: requested, FetchInvoice: fetchInvoice}
	}
}

func acceptFixed(next model.OrderStatus) func(model.OrderStatus) TransitionDecision {
	return func(model.OrderStatus) TransitionDecision {
		return TransitionDecision{NextStatus: next}
	}
}

// 管理者経路の遷移表。上から順に評価して最初に合致した行を使う。
var adminTransitionRules = []transitionRule{
	//支払い済み：pending/canceledへは戻せない（返金が正規の逆操作）
	{
		gateway:     gateway.PaymentStatusPaid,
		requestedIn: []model.OrderStatus{model.OrderStatusPending, model.OrderStatusCanceled},
		decide:      rejectWith(http.StatusBadRequest, CodeInvalidTransition, "order is paid, initiate a refund instead"),
	},
	//支払い済みでも返金済みなら一切動かさない
	{
		gateway:   gateway.PaymentStatusPaid,
		currentIn: []model.OrderStatus{model.OrderStatusRefunded},
		decide:    rejectWith(http.StatusBadRequest, CodeAlreadyRefunded, "order has already been refunded"),
	},
	//refundedへの直接書き込みは禁止。返金はRefundUsecaseだけが行う
	{
		gateway:     gateway.PaymentStatusPaid,
		requestedIn: []model.OrderStatus{model.OrderStatusRefunded},
		decide:      rejectWith(http.StatusBadRequest, CodeInvalidTransition, "use the refund endpoint to refund an order"),
	},
	//支払い済み：要求どおり進め、請求書があれば添付
	{
		gateway: gateway.PaymentStatusPaid,
		decide:  acceptRequested(true),
	},
	//未払い＋返金済みは矛盾状態。動かさない
	{
		gateway:   gateway.PaymentStatusUnpaid,
		currentIn: []model.OrderStatus{model.OrderStatusRefunded},
		decide:    rejectWith(http.StatusBadRequest, CodeAlreadyRefunded, "order has already been refunded"),
	},
	//未払い：pending/canceled間の行き来だけ許す
	{
		gateway:     gateway.PaymentStatusUnpaid,
		requestedIn: []model.OrderStatus{model.OrderStatusPending, model.OrderStatusCanceled},
		currentIn:   []model.OrderStatus{model.OrderStatusPending, model.OrderStatusCanceled},
		decide:      acceptRequested(false),
	},
	//未払いでそれ以外の組み合わせは明示的に拒否する
	{
		gateway: gateway.PaymentStatusUnpaid,
		decide:  rejectWith(http.StatusBadRequest, CodeInvalidTransition, "order is unpaid, only pending or canceled are allowed"),
	},
	//支払い手段待ち：何も動かせない
	{
		gateway: gateway.PaymentStatusRequiresPaymentMethod,
		decide:  rejectWith(http.StatusBadRequest, CodeInvalidTransition, "payment not completed, retry the payment"),
	},
	//セッションがキャンセルでも返金済みは終端のまま
	{
		gateway:   gateway.PaymentStatusCanceled,
		currentIn: []model.OrderStatus{model.OrderStatusRefunded},
		decide:    rejectWith(http.StatusBadRequest, CodeAlreadyRefunded, "order has already been refunded"),
	},
	//セッション自体がキャンセル：要求に関係なくcanceledへ
	{
		gateway: gateway.PaymentStatusCanceled,
		decide:  acceptFixed(model.OrderStatusCanceled),
	},
}

// 遷移表を引く。どの行にも合致しないゲートウェイ状態は未対応として拒否
func ResolveAdminTransition(gwStatus gateway.PaymentStatus, current model.OrderStatus, requested model.OrderStatus) TransitionDecision {
	for _, rule := range adminTransitionRules {
		if rule.gateway != gwStatus {
			continue
		}
		if rule.requestedIn != nil && !containsStatus(rule.requestedIn, requested) {
			continue
		}
		if rule.currentIn != nil && !containsStatus(rule.currentIn, current) {
			continue
		}
		return rule.decide(requested)
	}
	return TransitionDecision{
		Reject:     true,
		HTTPStatus: http.StatusBadRequest,
		Code:       CodeUnhandledGatewayStatus,
		Message:    "unhandled payment status: " + string(gwStatus),
	}
}

func containsStatus(list []model.OrderStatus, s model.OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// 管理者経路。ゲートウェイのセッションをポーリングし、遷移表で判定して書き戻す
func (u *ReconcileUsecase) UpdateStatusFromGateway(
	ctx context.Context,
	actorAdminUserID int64,
	orderID int64,
	requested model.OrderStatus,
) (model.Order, error) {
	if actorAdminUserID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if !requested.Valid() {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//セッション未作成の注文はreconcileできない
	if o.ExternalSessionRef == "" {
		return model.Order{}, NewCodedError(http.StatusBadRequest, CodePreconditionFailed, "order has no payment session")
	}

	s, err := u.gw.RetrieveSession(ctx, o.ExternalSessionRef)
	if errors.Is(err, gateway.ErrNotFound) {
		return model.Order{}, NewCodedError(http.StatusNotFound, CodeNotFound, "payment session not found")
	}
	if err != nil {
		return model.Order{}, NewCodedError(http.StatusBadGateway, CodeGatewayUnavailable, "payment gateway unavailable")
	}

	d := ResolveAdminTransition(s.PaymentStatus, o.Status, requested)
	if d.Reject {
		return model.Order{}, NewCodedError(d.HTTPStatus, d.Code, d.Message)
	}

	patch := repo.OrderReconcilePatch{
		OrderID: o.ID,
		Version: o.Version,
		Status:  d.NextStatus,
	}

	//請求書は取れたときだけ添付する。失敗しても遷移は止めない
	if d.FetchInvoice && s.InvoiceRef != "" {
		if inv, err := u.gw.RetrieveInvoice(ctx, s.InvoiceRef); err == nil && inv.PDFURL != "" {
			patch.InvoiceRef = &inv.PDFURL
		}
	}

	if err := u.orders.ApplyReconcile(ctx, patch); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return model.Order{}, NewCodedError(http.StatusConflict, CodeConflict, "order was updated concurrently, retry")
		}
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//★監査ログ（UPDATE_ORDER_STATUS）
	beforeJSON := `{"status":"` + string(o.Status) + `"}`
	afterJSON := `{"status":"` + string(d.NextStatus) + `"}`
	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actorAdminUserID,
		Action:       model.AuditActionUpdateOrderStatus,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   o.ID,
		BeforeJSON:   beforeJSON,
		AfterJSON:    afterJSON,
		CreatedAt:    time.Now(),
	}); err != nil {
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	o.Status = d.NextStatus
	o.Version++
	if patch.InvoiceRef != nil {
		o.InvoiceRef = *patch.InvoiceRef
	}
	return o, nil
}

// webhook経路のCASリトライ上限。再配送もあるので粘りすぎない
const completeRetryLimit = 3

// webhook経路。completionイベントは現在statusに関係なくcompletedへ寄せる。
// 同一イベントの再配送で再実行されても同じ終端値に収束する
func (u *ReconcileUsecase) CompleteFromWebhook(ctx context.Context, orderID int64, invoiceRef string) error {
	//請求書URLの解決は1回だけ。失敗しても遷移は止めない
	var invoiceURL *string
	if invoiceRef != "" {
		if inv, err := u.gw.RetrieveInvoice(ctx, invoiceRef); err == nil && inv.HostedURL != "" {
			invoiceURL = &inv.HostedURL
		}
	}

	for attempt := 0; attempt < completeRetryLimit; attempt++ {
		o, err := u.orders.FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if o.ExternalSessionRef == "" {
			return NewCodedError(http.StatusBadRequest, CodePreconditionFailed, "order has no payment session")
		}

		//返金済みは終端。遅延再配送で動かさず、そのままACKする
		if o.Status == model.OrderStatusRefunded {
			return nil
		}

		//既に同じ内容なら書き込み不要（再配送のとき）
		if o.Status == model.OrderStatusCompleted && (invoiceURL == nil || o.InvoiceRef == *invoiceURL) {
			return nil
		}

		patch := repo.OrderReconcilePatch{
			OrderID:    o.ID,
			Version:    o.Version,
			Status:     model.OrderStatusCompleted,
			InvoiceRef: invoiceURL,
		}

		err = u.orders.ApplyReconcile(ctx, patch)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		//競合したら読み直して再適用
	}

	return NewCodedError(http.StatusConflict, CodeConflict, "order was updated concurrently, retry")
}
