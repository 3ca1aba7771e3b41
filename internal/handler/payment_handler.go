package handler

import (
	"io"
	"net/http"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 決済まわりのHTTP。checkout・webhook・refundの3本
type PaymentHandler struct {
	checkoutUC *usecase.CheckoutUsecase
	webhookUC  *usecase.WebhookUsecase
	refundUC   *usecase.RefundUsecase
}

func NewPaymentHandler(
	checkoutUC *usecase.CheckoutUsecase,
	webhookUC *usecase.WebhookUsecase,
	refundUC *usecase.RefundUsecase,
) *PaymentHandler {
	return &PaymentHandler{
		checkoutUC: checkoutUC,
		webhookUC:  webhookUC,
		refundUC:   refundUC,
	}
}

type CheckoutRequest struct {
	AddressID int64 `json:"address_id"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	//webhookは署名検証だけで認証しない
	e.POST("/payments/webhook", h.webhook)

	g := e.Group("/payments")
	g.Use(middleware.AuthJWT(cfg))
	g.POST("/checkout", h.checkout)

	admin := e.Group("/payments")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())
	admin.POST("/refund/:sessionId", h.refund)
}

func (h *PaymentHandler) checkout(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	//再送で二重注文にならないようにヘッダのキーを必須にする
	key := c.Request().Header.Get("X-Idempotency-Key")
	if key == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "X-Idempotency-Key is required"})
	}

	out, err := h.checkoutUC.PlaceOrder(c.Request().Context(), userID, usecase.PlaceOrderInput{
		AddressID:      req.AddressID,
		IdempotencyKey: key,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *PaymentHandler) webhook(c echo.Context) error {
	//署名検証は生ボディに対して行う
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	signature := c.Request().Header.Get("Stripe-Signature")

	if err := h.webhookUC.HandleEvent(c.Request().Context(), payload, signature); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}

func (h *PaymentHandler) refund(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	sessionRef := c.Param("sessionId")
	if sessionRef == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
	}

	out, err := h.refundUC.RefundBySessionRef(c.Request().Context(), adminID, sessionRef)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
