package usecase

import (
	"context"
	"net/http"
	"strconv"

	"app/internal/gateway"
)

// ゲートウェイからの非同期イベントの受け口。
// 署名検証に通らないペイロードは一切状態に触らせない
type WebhookUsecase struct {
	gw        gateway.PaymentGateway
	reconcile *ReconcileUsecase
}

func NewWebhookUsecase(gw gateway.PaymentGateway, reconcile *ReconcileUsecase) *WebhookUsecase {
	return &WebhookUsecase{gw: gw, reconcile: reconcile}
}

// 生のボディと署名ヘッダを受けて検証・振り分けする。
// 処理済み・意図的に無視したイベントはnilを返し、handlerがackする
// （プロバイダに不要な再送をさせないため）
func (u *WebhookUsecase) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	ev, err := u.gw.VerifyWebhook(payload, signature)
	if err != nil {
		return NewCodedError(http.StatusBadRequest, CodeSignatureInvalid, "webhook signature verification failed")
	}

	switch ev.Type {
	case "checkout.session.completed":
		orderID, err := strconv.ParseInt(ev.OrderRef, 10, 64)
		if err != nil || orderID <= 0 {
			return NewHTTPError(http.StatusBadRequest, "invalid order reference in event metadata")
		}
		return u.reconcile.CompleteFromWebhook(ctx, orderID, ev.InvoiceRef)

	case "invoice.payment_succeeded":
		//情報のみ。状態は変えない
		return nil

	default:
		//未知のイベントは無視してackする
		return nil
	}
}
