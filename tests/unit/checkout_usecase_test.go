package unit

import (
	"context"
	"testing"

	"app/internal/domain/model"
	"app/internal/gateway"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// Checkout向けの追加mock
// =====================

type CartRepoMock struct{ mock.Mock }

func (m *CartRepoMock) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) FindOrCreateActive(ctx context.Context, userID int64) (model.Cart, error) {
	args := m.Called(ctx, userID)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartRepoMock) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error {
	args := m.Called(ctx, cartID, status)
	return args.Error(0)
}

func (m *CartRepoMock) Clear(ctx context.Context, cartID int64) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

type CartItemRepoMock struct{ mock.Mock }

func (m *CartItemRepoMock) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	args := m.Called(ctx, cartID)
	items, _ := args.Get(0).([]model.CartItem)
	return items, args.Error(1)
}

func (m *CartItemRepoMock) FindByCartAndProduct(ctx context.Context, cartID int64, productID int64) (model.CartItem, bool, error) {
	args := m.Called(ctx, cartID, productID)
	it, _ := args.Get(0).(model.CartItem)
	return it, args.Bool(1), args.Error(2)
}

func (m *CartItemRepoMock) Create(ctx context.Context, item model.CartItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *CartItemRepoMock) UpdateQuantity(ctx context.Context, itemID int64, qty int64) error {
	args := m.Called(ctx, itemID, qty)
	return args.Error(0)
}

func (m *CartItemRepoMock) Delete(ctx context.Context, itemID int64) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) SetStock(ctx context.Context, productID int64, newStock int64) error {
	args := m.Called(ctx, productID, newStock)
	return args.Error(0)
}

func (m *InventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	args := m.Called(ctx, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepoMock) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	args := m.Called(ctx, q)
	ps, _ := args.Get(0).([]model.Product)
	return ps, args.Get(1).(int64), args.Error(2)
}

func (m *ProductRepoMock) FindByID(ctx context.Context, productID int64) (model.Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) Create(ctx context.Context, p model.Product) (int64, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ProductRepoMock) Update(ctx context.Context, p model.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ProductRepoMock) Delete(ctx context.Context, productID int64) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

type AddressRepoMock struct{ mock.Mock }

func (m *AddressRepoMock) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	args := m.Called(ctx, addressID)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *AddressRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	args := m.Called(ctx, userID)
	as, _ := args.Get(0).([]model.Address)
	return as, args.Error(1)
}

func (m *AddressRepoMock) Create(ctx context.Context, addr model.Address) (int64, error) {
	args := m.Called(ctx, addr)
	return args.Get(0).(int64), args.Error(1)
}

func (m *AddressRepoMock) Update(ctx context.Context, addr model.Address) error {
	args := m.Called(ctx, addr)
	return args.Error(0)
}

func (m *AddressRepoMock) Delete(ctx context.Context, addressID int64) error {
	args := m.Called(ctx, addressID)
	return args.Error(0)
}

// =====================
// PlaceOrder tests
// =====================

type checkoutFixture struct {
	tx       *TxManagerMock
	orders   *OrderRepoMock
	items    *OrderItemRepoMock
	carts    *CartRepoMock
	cartItem *CartItemRepoMock
	inv      *InventoryRepoMock
	products *ProductRepoMock
	addrs    *AddressRepoMock
	users    *UserRepoMock
	gw       *GatewayMock

	uc *usecase.CheckoutUsecase
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		tx:       new(TxManagerMock),
		orders:   new(OrderRepoMock),
		items:    new(OrderItemRepoMock),
		carts:    new(CartRepoMock),
		cartItem: new(CartItemRepoMock),
		inv:      new(InventoryRepoMock),
		products: new(ProductRepoMock),
		addrs:    new(AddressRepoMock),
		users:    new(UserRepoMock),
		gw:       new(GatewayMock),
	}
	f.tx.Repos = &TxReposMock{
		orders:     f.orders,
		orderItems: f.items,
		carts:      f.carts,
		cartItems:  f.cartItem,
		inventory:  f.inv,
		products:   f.products,
	}
	f.uc = usecase.NewCheckoutUsecase(f.tx, f.addrs, f.users, f.orders, f.gw, "https://shop.example")
	return f
}

func TestCheckout_MissingIdempotencyKey(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.uc.PlaceOrder(context.Background(), 1, usecase.PlaceOrderInput{
		AddressID:      1,
		IdempotencyKey: "",
	})
	assertErrContains(t, err, "invalid idempotency_key")
}

func TestCheckout_AddressOwnership(t *testing.T) {
	f := newCheckoutFixture()

	f.addrs.On("FindByID", mock.Anything, int64(3)).Return(model.Address{ID: 3, UserID: 99}, nil)

	_, err := f.uc.PlaceOrder(context.Background(), 1, usecase.PlaceOrderInput{
		AddressID:      3,
		IdempotencyKey: "key-1",
	})
	assertErrContains(t, err, "forbidden")
}

// 同じキーの再送は既存注文と既存セッションを返す
func TestCheckout_SameKey_ReturnsSameOrder(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	f.addrs.On("FindByID", mock.Anything, int64(3)).Return(model.Address{ID: 3, UserID: 1}, nil)
	f.tx.On("WithinTx", mock.Anything).Return(nil)

	existing := model.Order{
		ID:                 10,
		UserID:             1,
		Status:             model.OrderStatusPending,
		TotalAmount:        500,
		IdempotencyKey:     "key-1",
		ExternalSessionRef: "cs_10",
	}
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(1), "key-1").Return(existing, true, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(10)).Return([]model.OrderItem{}, nil)
	f.gw.On("RetrieveSession", mock.Anything, "cs_10").Return(gateway.Session{
		ID:            "cs_10",
		URL:           "https://pay.example/cs_10",
		PaymentStatus: gateway.PaymentStatusUnpaid,
	}, nil)

	out, err := f.uc.PlaceOrder(ctx, 1, usecase.PlaceOrderInput{AddressID: 3, IdempotencyKey: "key-1"})
	assert.NoError(t, err)
	assert.Equal(t, int64(10), out.Order.ID)
	assert.Equal(t, "cs_10", out.SessionID)
	assert.Equal(t, "https://pay.example/cs_10", out.RedirectURL)

	//新しい注文もセッションも作らない
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.gw.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

func TestCheckout_OutOfStock_NoOrder(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	f.addrs.On("FindByID", mock.Anything, int64(3)).Return(model.Address{ID: 3, UserID: 1}, nil)
	f.tx.On("WithinTx", mock.Anything).Return(nil)

	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(1), "key-1").Return(model.Order{}, false, nil)
	f.carts.On("FindActiveByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 20, UserID: 1}, nil)
	f.cartItem.On("ListByCartID", mock.Anything, int64(20)).Return([]model.CartItem{
		{ID: 1, CartID: 20, ProductID: 100, Quantity: 5, UnitPriceSnapshot: 100},
	}, nil)
	f.products.On("FindByID", mock.Anything, int64(100)).Return(model.Product{ID: 100, Name: "Whey", IsActive: true}, nil)
	f.inv.On("DecreaseStockIfEnough", mock.Anything, int64(100), int64(5)).Return(false, nil)

	_, err := f.uc.PlaceOrder(ctx, 1, usecase.PlaceOrderInput{AddressID: 3, IdempotencyKey: "key-1"})
	assertErrContains(t, err, "out of stock")

	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.carts.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything)
	f.gw.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

// 正常系：注文作成→カート確定→副単位でセッション作成→参照の書き戻し
func TestCheckout_Success_CreatesSessionInMinorUnits(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()

	f.addrs.On("FindByID", mock.Anything, int64(3)).Return(model.Address{ID: 3, UserID: 1}, nil)
	f.tx.On("WithinTx", mock.Anything).Return(nil)

	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(1), "key-1").Return(model.Order{}, false, nil)
	f.carts.On("FindActiveByUserID", mock.Anything, int64(1)).Return(model.Cart{ID: 20, UserID: 1}, nil)
	f.cartItem.On("ListByCartID", mock.Anything, int64(20)).Return([]model.CartItem{
		{ID: 1, CartID: 20, ProductID: 100, Quantity: 2, UnitPriceSnapshot: 250, Size: model.ItemSizeL},
	}, nil)
	f.products.On("FindByID", mock.Anything, int64(100)).Return(model.Product{ID: 100, Name: "Whey", IsActive: true}, nil)
	f.inv.On("DecreaseStockIfEnough", mock.Anything, int64(100), int64(2)).Return(true, nil)

	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.UserID == 1 &&
			o.ShippingAddressID == 3 &&
			o.Status == model.OrderStatusPending &&
			o.TotalAmount == 500 &&
			o.IdempotencyKey == "key-1"
	})).Return(int64(11), nil)
	f.items.On("CreateBulk", mock.Anything, int64(11), mock.Anything).Return(nil)
	f.carts.On("UpdateStatus", mock.Anything, int64(20), model.CartStatusCheckedOut).Return(nil)
	f.carts.On("Clear", mock.Anything, int64(20)).Return(nil)

	f.users.On("FindByID", mock.Anything, int64(1)).Return(&model.User{
		ID:       1,
		Username: "taro",
		Email:    "taro@example.com",
	}, nil)

	f.gw.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(in gateway.CreateSessionInput) bool {
		if len(in.Items) != 1 {
			return false
		}
		//主単位250 → 副単位25000
		return in.Items[0].UnitAmount == 25000 &&
			in.Items[0].Quantity == 2 &&
			in.OrderRef == "11" &&
			in.SuccessURL == "https://shop.example/success/11" &&
			in.CustomerEmail == "taro@example.com"
	})).Return(gateway.Session{
		ID:            "cs_11",
		URL:           "https://pay.example/cs_11",
		PaymentStatus: gateway.PaymentStatusUnpaid,
	}, nil)

	f.orders.On("SetSessionRef", mock.Anything, int64(11), "cs_11").Return(nil)

	out, err := f.uc.PlaceOrder(ctx, 1, usecase.PlaceOrderInput{AddressID: 3, IdempotencyKey: "key-1"})
	assert.NoError(t, err)
	assert.Equal(t, int64(11), out.Order.ID)
	assert.Equal(t, "cs_11", out.SessionID)
	assert.Equal(t, "https://pay.example/cs_11", out.RedirectURL)

	f.orders.AssertExpectations(t)
	f.gw.AssertExpectations(t)
	f.carts.AssertExpectations(t)
}
