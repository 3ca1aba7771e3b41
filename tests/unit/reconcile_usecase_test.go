package unit

import (
	"context"
	"net/http"
	"testing"

	"app/internal/domain/model"
	"app/internal/gateway"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// 遷移表
// =====================

func TestResolveAdminTransition_Paid_RejectsPendingAndCanceled(t *testing.T) {
	for _, requested := range []model.OrderStatus{model.OrderStatusPending, model.OrderStatusCanceled} {
		d := usecase.ResolveAdminTransition(gateway.PaymentStatusPaid, model.OrderStatusPaid, requested)
		assert.True(t, d.Reject, "requested=%s", requested)
		assert.Equal(t, usecase.CodeInvalidTransition, d.Code)
		assert.Equal(t, http.StatusBadRequest, d.HTTPStatus)
	}
}

func TestResolveAdminTransition_Paid_RefundedIsFrozen(t *testing.T) {
	d := usecase.ResolveAdminTransition(gateway.PaymentStatusPaid, model.OrderStatusRefunded, model.OrderStatusCompleted)
	assert.True(t, d.Reject)
	assert.Equal(t, usecase.CodeAlreadyRefunded, d.Code)
}

// refundedは返金エンドポイント経由でしか書けない
func TestResolveAdminTransition_Paid_DirectRefundRejected(t *testing.T) {
	d := usecase.ResolveAdminTransition(gateway.PaymentStatusPaid, model.OrderStatusPaid, model.OrderStatusRefunded)
	assert.True(t, d.Reject)
	assert.Equal(t, usecase.CodeInvalidTransition, d.Code)
	assertContains(t, d.Message, "refund endpoint")
}

func TestResolveAdminTransition_Paid_AcceptsForwardWithInvoice(t *testing.T) {
	for _, requested := range []model.OrderStatus{
		model.OrderStatusDispatched,
		model.OrderStatusDelivered,
		model.OrderStatusCompleted,
	} {
		d := usecase.ResolveAdminTransition(gateway.PaymentStatusPaid, model.OrderStatusPaid, requested)
		assert.False(t, d.Reject, "requested=%s", requested)
		assert.Equal(t, requested, d.NextStatus)
		assert.True(t, d.FetchInvoice)
	}
}

func TestResolveAdminTransition_Unpaid_PendingCanceledOnly(t *testing.T) {
	//pending<->canceledは許す
	d := usecase.ResolveAdminTransition(gateway.PaymentStatusUnpaid, model.OrderStatusPending, model.OrderStatusCanceled)
	assert.False(t, d.Reject)
	assert.Equal(t, model.OrderStatusCanceled, d.NextStatus)
	assert.False(t, d.FetchInvoice)

	d = usecase.ResolveAdminTransition(gateway.PaymentStatusUnpaid, model.OrderStatusCanceled, model.OrderStatusPending)
	assert.False(t, d.Reject)
	assert.Equal(t, model.OrderStatusPending, d.NextStatus)

	//未払いで前進はさせない
	d = usecase.ResolveAdminTransition(gateway.PaymentStatusUnpaid, model.OrderStatusPending, model.OrderStatusCompleted)
	assert.True(t, d.Reject)
	assert.Equal(t, usecase.CodeInvalidTransition, d.Code)
}

func TestResolveAdminTransition_Unpaid_RefundedIsContradiction(t *testing.T) {
	d := usecase.ResolveAdminTransition(gateway.PaymentStatusUnpaid, model.OrderStatusRefunded, model.OrderStatusPending)
	assert.True(t, d.Reject)
	assert.Equal(t, usecase.CodeAlreadyRefunded, d.Code)
}

func TestResolveAdminTransition_RequiresPaymentMethod_RejectsAll(t *testing.T) {
	d := usecase.ResolveAdminTransition(gateway.PaymentStatusRequiresPaymentMethod, model.OrderStatusPending, model.OrderStatusPaid)
	assert.True(t, d.Reject)
	assert.Equal(t, usecase.CodeInvalidTransition, d.Code)
	assertContains(t, d.Message, "retry the payment")
}

func TestResolveAdminTransition_GatewayCanceled_ForcesCanceled(t *testing.T) {
	//要求が何であれcanceledへ寄せる
	d := usecase.ResolveAdminTransition(gateway.PaymentStatusCanceled, model.OrderStatusPending, model.OrderStatusCompleted)
	assert.False(t, d.Reject)
	assert.Equal(t, model.OrderStatusCanceled, d.NextStatus)
}

// 返金済みはセッションがキャンセルでも動かない
func TestResolveAdminTransition_GatewayCanceled_RefundedStaysTerminal(t *testing.T) {
	d := usecase.ResolveAdminTransition(gateway.PaymentStatusCanceled, model.OrderStatusRefunded, model.OrderStatusCanceled)
	assert.True(t, d.Reject)
	assert.Equal(t, usecase.CodeAlreadyRefunded, d.Code)
}

func TestResolveAdminTransition_UnknownGatewayStatus(t *testing.T) {
	d := usecase.ResolveAdminTransition(gateway.PaymentStatus("no_payment_required"), model.OrderStatusPending, model.OrderStatusPaid)
	assert.True(t, d.Reject)
	assert.Equal(t, usecase.CodeUnhandledGatewayStatus, d.Code)
}

func assertContains(t *testing.T, s string, substr string) {
	t.Helper()
	assert.Contains(t, s, substr)
}

// =====================
// UpdateStatusFromGateway
// =====================

func TestReconcile_UpdateStatus_NoSessionRef(t *testing.T) {
	orders := new(OrderRepoMock)
	gw := new(GatewayMock)
	audit := new(AuditRepoMock)

	orders.On("FindByID", mock.Anything, int64(1)).Return(model.Order{
		ID:     1,
		Status: model.OrderStatusPending,
	}, nil)

	uc := usecase.NewReconcileUsecase(orders, gw, audit)

	_, err := uc.UpdateStatusFromGateway(context.Background(), 9, 1, model.OrderStatusCanceled)
	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, usecase.CodePreconditionFailed, he.Code)

	gw.AssertNotCalled(t, "RetrieveSession", mock.Anything, mock.Anything)
}

func TestReconcile_UpdateStatus_GatewayUnavailable(t *testing.T) {
	orders := new(OrderRepoMock)
	gw := new(GatewayMock)
	audit := new(AuditRepoMock)

	orders.On("FindByID", mock.Anything, int64(1)).Return(model.Order{
		ID:                 1,
		Status:             model.OrderStatusPending,
		ExternalSessionRef: "cs_1",
	}, nil)
	gw.On("RetrieveSession", mock.Anything, "cs_1").Return(gateway.Session{}, gateway.ErrUnavailable)

	uc := usecase.NewReconcileUsecase(orders, gw, audit)

	_, err := uc.UpdateStatusFromGateway(context.Background(), 9, 1, model.OrderStatusCanceled)
	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, he.Status)
	assert.Equal(t, usecase.CodeGatewayUnavailable, he.Code)

	//障害は状態遷移に変換しない
	orders.AssertNotCalled(t, "ApplyReconcile", mock.Anything, mock.Anything)
}

func TestReconcile_UpdateStatus_SessionGone(t *testing.T) {
	orders := new(OrderRepoMock)
	gw := new(GatewayMock)
	audit := new(AuditRepoMock)

	orders.On("FindByID", mock.Anything, int64(1)).Return(model.Order{
		ID:                 1,
		Status:             model.OrderStatusPending,
		ExternalSessionRef: "cs_gone",
	}, nil)
	gw.On("RetrieveSession", mock.Anything, "cs_gone").Return(gateway.Session{}, gateway.ErrNotFound)

	uc := usecase.NewReconcileUsecase(orders, gw, audit)

	_, err := uc.UpdateStatusFromGateway(context.Background(), 9, 1, model.OrderStatusCanceled)
	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, he.Status)
}

func TestReconcile_UpdateStatus_PaidToCanceled_Rejected(t *testing.T) {
	orders := new(OrderRepoMock)
	gw := new(GatewayMock)
	audit := new(AuditRepoMock)

	orders.On("FindByID", mock.Anything, int64(5)).Return(model.Order{
		ID:                 5,
		Status:             model.OrderStatusPaid,
		ExternalSessionRef: "cs_5",
	}, nil)
	gw.On("RetrieveSession", mock.Anything, "cs_5").Return(gateway.Session{
		ID:            "cs_5",
		PaymentStatus: gateway.PaymentStatusPaid,
	}, nil)

	uc := usecase.NewReconcileUsecase(orders, gw, audit)

	_, err := uc.UpdateStatusFromGateway(context.Background(), 9, 5, model.OrderStatusCanceled)
	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, usecase.CodeInvalidTransition, he.Code)
	assertErrContains(t, err, "initiate a refund instead")

	orders.AssertNotCalled(t, "ApplyReconcile", mock.Anything, mock.Anything)
	audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReconcile_UpdateStatus_Paid_AttachesInvoice_And_Audits(t *testing.T) {
	orders := new(OrderRepoMock)
	gw := new(GatewayMock)
	audit := new(AuditRepoMock)

	orders.On("FindByID", mock.Anything, int64(5)).Return(model.Order{
		ID:                 5,
		Status:             model.OrderStatusPaid,
		Version:            3,
		ExternalSessionRef: "cs_5",
	}, nil)
	gw.On("RetrieveSession", mock.Anything, "cs_5").Return(gateway.Session{
		ID:            "cs_5",
		PaymentStatus: gateway.PaymentStatusPaid,
		InvoiceRef:    "in_1",
	}, nil)
	gw.On("RetrieveInvoice", mock.Anything, "in_1").Return(gateway.Invoice{
		ID:     "in_1",
		PDFURL: "https://pay.example/invoice.pdf",
	}, nil)

	pdf := "https://pay.example/invoice.pdf"
	orders.On("ApplyReconcile", mock.Anything, repo.OrderReconcilePatch{
		OrderID:    5,
		Version:    3,
		Status:     model.OrderStatusDispatched,
		InvoiceRef: &pdf,
	}).Return(nil)

	audit.On("Create", mock.Anything, mock.MatchedBy(func(a model.AuditLog) bool {
		return a.ActorUserID == 9 &&
			a.Action == model.AuditActionUpdateOrderStatus &&
			a.ResourceType == model.AuditResourceOrder &&
			a.ResourceID == 5 &&
			a.BeforeJSON == `{"status":"paid"}` &&
			a.AfterJSON == `{"status":"dispatched"}`
	})).Return(nil)

	uc := usecase.NewReconcileUsecase(orders, gw, audit)

	updated, err := uc.UpdateStatusFromGateway(context.Background(), 9, 5, model.OrderStatusDispatched)
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusDispatched, updated.Status)
	assert.Equal(t, pdf, updated.InvoiceRef)
	assert.Equal(t, int64(4), updated.Version)

	orders.AssertExpectations(t)
	gw.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestReconcile_UpdateStatus_InvoiceFetchFailure_DoesNotBlock(t *testing.T) {
	orders := new(OrderRepoMock)
	gw := new(GatewayMock)
	audit := new(AuditRepoMock)

	orders.On("FindByID", mock.Anything, int64(5)).Return(model.Order{
		ID:                 5,
		Status:             model.OrderStatusPaid,
		Version:            1,
		ExternalSessionRef: "cs_5",
	}, nil)
	gw.On("RetrieveSession", mock.Anything, "cs_5").Return(gateway.Session{
		ID:            "cs_5",
		PaymentStatus: gateway.PaymentStatusPaid,
		InvoiceRef:    "in_1",
	}, nil)
	gw.On("RetrieveInvoice", mock.Anything, "in_1").Return(gateway.Invoice{}, gateway.ErrUnavailable)

	//請求書なしのパッチで適用される
	orders.On("ApplyReconcile", mock.Anything, repo.OrderReconcilePatch{
		OrderID: 5,
		Version: 1,
		Status:  model.OrderStatusCompleted,
	}).Return(nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewReconcileUsecase(orders, gw, audit)

	updated, err := uc.UpdateStatusFromGateway(context.Background(), 9, 5, model.OrderStatusCompleted)
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, updated.Status)
	assert.Equal(t, "", updated.InvoiceRef)

	orders.AssertExpectations(t)
}

func TestReconcile_UpdateStatus_VersionConflict(t *testing.T) {
	orders := new(OrderRepoMock)
	gw := new(GatewayMock)
	audit := new(AuditRepoMock)

	orders.On("FindByID", mock.Anything, int64(5)).Return(model.Order{
		ID:                 5,
		Status:             model.OrderStatusPaid,
		Version:            2,
		ExternalSessionRef: "cs_5",
	}, nil)
	gw.On("RetrieveSession", mock.Anything, "cs_5").Return(gateway.Session{
		ID:            "cs_5",
		PaymentStatus: gateway.PaymentStatusPaid,
	}, nil)
	orders.On("ApplyReconcile", mock.Anything, mock.Anything).Return(repo.ErrConflict)

	uc := usecase.NewReconcileUsecase(orders, gw, audit)

	_, err := uc.UpdateStatusFromGateway(context.Background(), 9, 5, model.OrderStatusCompleted)
	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusConflict, he.Status)

	audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// =====================
// CompleteFromWebhook
// =====================

func TestReconcile_CompleteFromWebhook_Success(t *testing.T) {
	orders := new(OrderRepoMock)
	gw := new(GatewayMock)
	audit := new(AuditRepoMock)

	orders.On("FindByID", mock.Anything, int64(7)).Return(model.Order{
		ID:                 7,
		Status:             model.OrderStatusPaid,
		Version:            1,
		ExternalSessionRef: "cs_7",
	}, nil)
	gw.On("RetrieveInvoice", mock.Anything, "in_7").Return(gateway.Invoice{
		ID:        "in_7",
		HostedURL: "https://pay.example/hosted",
	}, nil)

	hosted := "https://pay.example/hosted"
	orders.On("ApplyReconcile", mock.Anything, repo.OrderReconcilePatch{
		OrderID:    7,
		Version:    1,
		Status:     model.OrderStatusCompleted,
		InvoiceRef: &hosted,
	}).Return(nil)

	uc := usecase.NewReconcileUsecase(orders, gw, audit)

	err := uc.CompleteFromWebhook(context.Background(), 7, "in_7")
	assert.NoError(t, err)

	orders.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestReconcile_CompleteFromWebhook_Replay_NoSecondWrite(t *testing.T) {
	orders := new(OrderRepoMock)
	gw := new(GatewayMock)
	audit := new(AuditRepoMock)

	hosted := "https://pay.example/hosted"
	orders.On("FindByID", mock.Anything, int64(7)).Return(model.Order{
		ID:                 7,
		Status:             model.OrderStatusCompleted,
		Version:            2,
		ExternalSessionRef: "cs_7",
		InvoiceRef:         hosted,
	}, nil)
	gw.On("RetrieveInvoice", mock.Anything, "in_7").Return(gateway.Invoice{
		ID:        "in_7",
		HostedURL: hosted,
	}, nil)

	uc := usecase.NewReconcileUsecase(orders, gw, audit)

	err := uc.CompleteFromWebhook(context.Background(), 7, "in_7")
	assert.NoError(t, err)

	orders.AssertNotCalled(t, "ApplyReconcile", mock.Anything, mock.Anything)
}

// 返金後に遅れて届いたcompletionイベントは状態を動かさない
func TestReconcile_CompleteFromWebhook_RefundedStaysTerminal(t *testing.T) {
	orders := new(OrderRepoMock)
	gw := new(GatewayMock)
	audit := new(AuditRepoMock)

	orders.On("FindByID", mock.Anything, int64(7)).Return(model.Order{
		ID:                 7,
		Status:             model.OrderStatusRefunded,
		Version:            5,
		ExternalSessionRef: "cs_7",
		RefundRef:          "re_7",
	}, nil)

	uc := usecase.NewReconcileUsecase(orders, gw, audit)

	err := uc.CompleteFromWebhook(context.Background(), 7, "")
	assert.NoError(t, err)

	orders.AssertNotCalled(t, "ApplyReconcile", mock.Anything, mock.Anything)
}

func TestReconcile_CompleteFromWebhook_RetriesOnConflict(t *testing.T) {
	orders := new(OrderRepoMock)
	gw := new(GatewayMock)
	audit := new(AuditRepoMock)

	//1回目version1で競合、読み直してversion2で成功
	first := orders.On("FindByID", mock.Anything, int64(7)).Return(model.Order{
		ID:                 7,
		Status:             model.OrderStatusPaid,
		Version:            1,
		ExternalSessionRef: "cs_7",
	}, nil).Once()
	orders.On("FindByID", mock.Anything, int64(7)).Return(model.Order{
		ID:                 7,
		Status:             model.OrderStatusPaid,
		Version:            2,
		ExternalSessionRef: "cs_7",
	}, nil).NotBefore(first)

	orders.On("ApplyReconcile", mock.Anything, repo.OrderReconcilePatch{
		OrderID: 7,
		Version: 1,
		Status:  model.OrderStatusCompleted,
	}).Return(repo.ErrConflict)
	orders.On("ApplyReconcile", mock.Anything, repo.OrderReconcilePatch{
		OrderID: 7,
		Version: 2,
		Status:  model.OrderStatusCompleted,
	}).Return(nil)

	uc := usecase.NewReconcileUsecase(orders, gw, audit)

	err := uc.CompleteFromWebhook(context.Background(), 7, "")
	assert.NoError(t, err)

	orders.AssertExpectations(t)
	//請求書参照がないので取得しない
	gw.AssertNotCalled(t, "RetrieveInvoice", mock.Anything, mock.Anything)
}
