package usecase

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/gateway"
	repo "app/internal/repository"
)

// カート確定〜決済セッション作成まで。
// 注文作成はトランザクション、セッション作成はコミット後に行う
type CheckoutUsecase struct {
	tx        repo.TransactionManager
	addresses repo.AddressRepository
	users     repo.UserRepository
	orders    repo.OrderRepository
	gw        gateway.PaymentGateway

	//success/cancel URLの組み立てに使うフロントURL
	feURL string
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	addresses repo.AddressRepository,
	users repo.UserRepository,
	orders repo.OrderRepository,
	gw gateway.PaymentGateway,
	feURL string,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:        tx,
		addresses: addresses,
		users:     users,
		orders:    orders,
		gw:        gw,
		feURL:     strings.TrimRight(feURL, "/"),
	}
}

type PlaceOrderInput struct {
	AddressID      int64
	IdempotencyKey string
}

type CheckoutOutput struct {
	Order OrderOutput `json:"order"`

	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

func (u *CheckoutUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.AddressID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid address_id")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > 255 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency_key")
	}

	//address_idの存在確認＋所有チェック
	addr, err := u.addresses.FindByID(ctx, in.AddressID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CheckoutOutput{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return CheckoutOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if addr.UserID != userID {
		return CheckoutOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	var created model.Order
	var items []model.OrderItem

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//同じキーなら同じ注文を返す
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if found {
			existingItems, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			created = existing
			items = existingItems
			return nil
		}

		cart, err := r.Carts().FindActiveByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if len(cartItems) == 0 {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}

		//在庫を確定時に再チェックして減らす
		orderItems := make([]model.OrderItem, 0, len(cartItems))
		var total int64 = 0

		for _, ci := range cartItems {
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusBadRequest, "invalid product")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !p.IsActive {
				return NewHTTPError(http.StatusBadRequest, "invalid product")
			}

			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, ci.ProductID, ci.Quantity)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				return NewHTTPError(http.StatusBadRequest, "out of stock")
			}

			//スナップショット（バリエーション指定も引き継ぐ）
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           ci.ProductID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   ci.UnitPriceSnapshot,
				Quantity:            ci.Quantity,
				Color:               ci.Color,
				Flavor:              ci.Flavor,
				Size:                ci.Size,
				CreatedAt:           time.Now(),
			})

			total += ci.UnitPriceSnapshot * ci.Quantity
		}

		now := time.Now()
		order := model.Order{
			UserID:            userID,
			ShippingAddressID: in.AddressID,
			Status:            model.OrderStatusPending,
			TotalAmount:       total,
			IdempotencyKey:    key,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		orderID, err := r.Orders().Create(ctx, order)
		if errors.Is(err, repo.ErrDuplicate) {
			//同時に同じキーが入った。もう一回検索して同じ結果を返す
			ex2, found2, err2 := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err2 == nil && found2 {
				items2, err3 := r.OrderItems().ListByOrderID(ctx, ex2.ID)
				if err3 != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				created = ex2
				items = items2
				return nil
			}
			return NewHTTPError(http.StatusBadRequest, "idempotency conflict")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//カートをCHECKED_OUTにして明細をクリア（再注文防止）
		if err := r.Carts().UpdateStatus(ctx, cart.ID, model.CartStatusCheckedOut); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		order.ID = orderID
		created = order
		items = orderItems
		return nil
	})
	if err != nil {
		return CheckoutOutput{}, err
	}

	//セッションは注文コミット後に作る。
	//失敗しても注文はpendingのまま残り、同じキーの再送で作り直せる
	sessionID, redirectURL, err := u.ensureSession(ctx, &created, items)
	if err != nil {
		return CheckoutOutput{}, err
	}

	return CheckoutOutput{
		Order:       toOrderOutput(created, items),
		SessionID:   sessionID,
		RedirectURL: redirectURL,
	}, nil
}

// セッションが未作成なら作って1回だけ書き戻す。作成済みなら現状を返す
func (u *CheckoutUsecase) ensureSession(ctx context.Context, o *model.Order, items []model.OrderItem) (string, string, error) {
	if o.ExternalSessionRef != "" {
		//再送のとき。URLは取れたら返す程度でよい
		s, err := u.gw.RetrieveSession(ctx, o.ExternalSessionRef)
		if err != nil {
			return o.ExternalSessionRef, "", nil
		}
		return s.ID, s.URL, nil
	}

	user, err := u.users.FindByID(ctx, o.UserID)
	if err != nil {
		return "", "", NewHTTPError(http.StatusInternalServerError, "db error")
	}

	checkoutItems := make([]gateway.CheckoutItem, 0, len(items))
	for _, it := range items {
		desc := it.Color
		if desc == "" {
			desc = it.ProductNameSnapshot
		}
		checkoutItems = append(checkoutItems, gateway.CheckoutItem{
			Name:        it.ProductNameSnapshot,
			Description: desc,
			UnitAmount:  it.UnitPriceSnapshot * 100,
			Quantity:    it.Quantity,
		})
	}

	orderRef := strconv.FormatInt(o.ID, 10)
	s, err := u.gw.CreateCheckoutSession(ctx, gateway.CreateSessionInput{
		Items:         checkoutItems,
		SuccessURL:    u.feURL + "/success/" + orderRef,
		CancelURL:     u.feURL + "/cancel/" + orderRef,
		CustomerEmail: user.Email,
		CustomerName:  user.Username,
		OrderRef:      orderRef,
	})
	if err != nil {
		return "", "", NewCodedError(http.StatusBadGateway, CodeGatewayUnavailable, "payment gateway unavailable")
	}

	if err := u.orders.SetSessionRef(ctx, o.ID, s.ID); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			//並行リクエストに先を越された。保存済みの方を正とする
			saved, err2 := u.orders.FindByID(ctx, o.ID)
			if err2 == nil && saved.ExternalSessionRef != "" {
				o.ExternalSessionRef = saved.ExternalSessionRef
				return saved.ExternalSessionRef, "", nil
			}
		}
		return "", "", NewHTTPError(http.StatusInternalServerError, "db error")
	}

	o.ExternalSessionRef = s.ID
	return s.ID, s.URL, nil
}
