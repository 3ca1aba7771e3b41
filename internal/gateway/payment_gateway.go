package gateway

import (
	"context"
	"errors"
)

var (
	//セッション・請求書などがプロバイダ側に存在しない
	ErrNotFound = errors.New("gateway resource not found")

	//ネットワーク・プロバイダ障害。状態遷移に変換してはいけない
	ErrUnavailable = errors.New("gateway unavailable")

	//webhook署名の検証失敗
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// ゲートウェイが報告するセッションの支払い状態
type PaymentStatus string

const (
	PaymentStatusPaid                  PaymentStatus = "paid"
	PaymentStatusUnpaid                PaymentStatus = "unpaid"
	PaymentStatusRequiresPaymentMethod PaymentStatus = "requires_payment_method"
	PaymentStatusCanceled              PaymentStatus = "canceled"
)

// checkoutの1明細。金額は副単位（1/100）で渡す
type CheckoutItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int64
}

type CreateSessionInput struct {
	Items         []CheckoutItem
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	CustomerName  string

	//metadataに入れる注文参照（webhookで逆引きする）
	OrderRef string
}

type Session struct {
	ID  string
	URL string

	PaymentStatus PaymentStatus

	//あれば入る（expand前提ではなくID参照）
	InvoiceRef       string
	PaymentIntentRef string
}

type Invoice struct {
	ID        string
	PDFURL    string
	HostedURL string
}

type Refund struct {
	ID string
}

// 署名検証済みのwebhookイベント
type WebhookEvent struct {
	Type       string
	SessionRef string
	InvoiceRef string

	//metadataのorder_id。checkout.session.completed以外では空
	OrderRef string
}

// 決済プロバイダへの窓口。reconcile/refundはこの契約だけに依存する
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, in CreateSessionInput) (Session, error)
	RetrieveSession(ctx context.Context, sessionRef string) (Session, error)
	RetrieveInvoice(ctx context.Context, invoiceRef string) (Invoice, error)

	//amountは副単位
	CreateRefund(ctx context.Context, paymentIntentRef string, amount int64) (Refund, error)

	//生のリクエストボディと署名ヘッダから検証済みイベントを作る
	VerifyWebhook(payload []byte, signature string) (WebhookEvent, error)
}
