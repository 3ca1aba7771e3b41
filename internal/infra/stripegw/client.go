package stripegw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"app/internal/gateway"

	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/invoice"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"
)

// gateway.PaymentGatewayのStripe実装
type Client struct {
	webhookSecret string
}

func New(secretKey string, webhookSecret string) *Client {
	stripe.Key = secretKey
	return &Client{webhookSecret: webhookSecret}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, in gateway.CreateSessionInput) (gateway.Session, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(in.Items))
	for _, it := range in.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String("inr"),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(it.Name),
					Description: stripe.String(it.Description),
				},
				UnitAmount: stripe.Int64(it.UnitAmount),
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(in.SuccessURL),
		CancelURL:          stripe.String(in.CancelURL),
		CustomerEmail:      stripe.String(in.CustomerEmail),

		BillingAddressCollection: stripe.String("required"),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"IN", "US"}),
		},

		//セッション完了時に請求書を発行させる
		InvoiceCreation: &stripe.CheckoutSessionInvoiceCreationParams{
			Enabled: stripe.Bool(true),
			InvoiceData: &stripe.CheckoutSessionInvoiceCreationInvoiceDataParams{
				Description: stripe.String("Product purchase invoice"),
				Footer:      stripe.String("Thank you for your purchase!"),
				CustomFields: []*stripe.CheckoutSessionInvoiceCreationInvoiceDataCustomFieldParams{
					{Name: stripe.String("Customer Name"), Value: stripe.String(in.CustomerName)},
				},
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", in.OrderRef)

	s, err := checkoutsession.New(params)
	if err != nil {
		return gateway.Session{}, mapStripeErr(err)
	}
	return toSession(s), nil
}

func (c *Client) RetrieveSession(ctx context.Context, sessionRef string) (gateway.Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := checkoutsession.Get(sessionRef, params)
	if err != nil {
		return gateway.Session{}, mapStripeErr(err)
	}
	return toSession(s), nil
}

func (c *Client) RetrieveInvoice(ctx context.Context, invoiceRef string) (gateway.Invoice, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx

	inv, err := invoice.Get(invoiceRef, params)
	if err != nil {
		return gateway.Invoice{}, mapStripeErr(err)
	}
	return gateway.Invoice{
		ID:        inv.ID,
		PDFURL:    inv.InvoicePDF,
		HostedURL: inv.HostedInvoiceURL,
	}, nil
}

func (c *Client) CreateRefund(ctx context.Context, paymentIntentRef string, amount int64) (gateway.Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentRef),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx

	r, err := refund.New(params)
	if err != nil {
		return gateway.Refund{}, mapStripeErr(err)
	}
	return gateway.Refund{ID: r.ID}, nil
}

func (c *Client) VerifyWebhook(payload []byte, signature string) (gateway.WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return gateway.WebhookEvent{}, fmt.Errorf("%w: %v", gateway.ErrInvalidSignature, err)
	}

	ev := gateway.WebhookEvent{Type: string(event.Type)}

	switch ev.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return gateway.WebhookEvent{}, fmt.Errorf("parse checkout session: %w", err)
		}
		ev.SessionRef = sess.ID
		ev.OrderRef = sess.Metadata["order_id"]
		if sess.Invoice != nil {
			ev.InvoiceRef = sess.Invoice.ID
		}
	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err == nil {
			ev.InvoiceRef = inv.ID
		}
	}

	return ev, nil
}

// sessionをgateway表現へ。期限切れはcanceled扱いにする
func toSession(s *stripe.CheckoutSession) gateway.Session {
	out := gateway.Session{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: gateway.PaymentStatus(s.PaymentStatus),
	}
	if s.Status == stripe.CheckoutSessionStatusExpired {
		out.PaymentStatus = gateway.PaymentStatusCanceled
	}
	if s.Invoice != nil {
		out.InvoiceRef = s.Invoice.ID
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentRef = s.PaymentIntent.ID
	}
	return out
}

func mapStripeErr(err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		if sErr.Code == stripe.ErrorCodeResourceMissing || sErr.HTTPStatusCode == http.StatusNotFound {
			return gateway.ErrNotFound
		}
	}
	return fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
}
