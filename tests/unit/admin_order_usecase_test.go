package unit

import (
	"context"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newAdminOrderFixture() (*usecase.AdminOrderUsecase, *OrderRepoMock, *OrderItemRepoMock) {
	orders := new(OrderRepoMock)
	orderItems := new(OrderItemRepoMock)

	tx := &TxManagerMock{Repos: &TxReposMock{
		orders:     orders,
		orderItems: orderItems,
	}}
	tx.On("WithinTx", mock.Anything).Return(nil)

	return usecase.NewAdminOrderUsecase(tx), orders, orderItems
}

func TestAdminOrderList_InvalidPage(t *testing.T) {
	uc, orders, _ := newAdminOrderFixture()

	_, err := uc.List(context.Background(), repo.AdminOrderListFilter{Page: 0, Limit: 20})
	assertErrContains(t, err, "invalid page")

	orders.AssertNotCalled(t, "ListAdmin", mock.Anything, mock.Anything)
}

func TestAdminOrderList_InvalidLimit(t *testing.T) {
	uc, orders, _ := newAdminOrderFixture()

	_, err := uc.List(context.Background(), repo.AdminOrderListFilter{Page: 1, Limit: 101})
	assertErrContains(t, err, "invalid limit")

	orders.AssertNotCalled(t, "ListAdmin", mock.Anything, mock.Anything)
}

// 各注文に明細をぶら下げて返す
func TestAdminOrderList_Success_WithItems(t *testing.T) {
	uc, orders, orderItems := newAdminOrderFixture()

	f := repo.AdminOrderListFilter{Page: 1, Limit: 20, Status: "paid"}
	orders.On("ListAdmin", mock.Anything, f).Return([]model.Order{
		{ID: 1, UserID: 10, Status: model.OrderStatusPaid, TotalAmount: 500},
		{ID: 2, UserID: 11, Status: model.OrderStatusPaid, TotalAmount: 300},
	}, int64(2), nil)
	orderItems.On("ListByOrderID", mock.Anything, int64(1)).Return([]model.OrderItem{
		{ID: 100, OrderID: 1, ProductID: 7, Quantity: 2},
	}, nil)
	orderItems.On("ListByOrderID", mock.Anything, int64(2)).Return([]model.OrderItem{}, nil)

	outs, err := uc.List(context.Background(), f)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(outs))
	assert.Equal(t, int64(1), outs[0].ID)
	assert.Equal(t, 1, len(outs[0].Items))
	assert.Equal(t, 0, len(outs[1].Items))

	orders.AssertExpectations(t)
	orderItems.AssertExpectations(t)
}

func TestAdminOrderList_Empty(t *testing.T) {
	uc, orders, orderItems := newAdminOrderFixture()

	f := repo.AdminOrderListFilter{Page: 1, Limit: 20}
	orders.On("ListAdmin", mock.Anything, f).Return([]model.Order{}, int64(0), nil)

	outs, err := uc.List(context.Background(), f)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(outs))

	orderItems.AssertNotCalled(t, "ListByOrderID", mock.Anything, mock.Anything)
}
