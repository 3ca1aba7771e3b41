package server

import (
	"app/internal/config"
	"app/internal/handler"

	"github.com/labstack/echo/v4"
)

// Handlersはルート登録に必要なハンドラ一式
type Handlers struct {
	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	Cart         *handler.CartHandler
	Address      *handler.AddressHandler
	Wishlist     *handler.WishlistHandler
	Rating       *handler.RatingHandler
	Order        *handler.OrderHandler
	Payment      *handler.PaymentHandler
	AdminOrder   *handler.AdminOrderHandler
	Dashboard    *handler.DashboardHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	h.Auth.RegisterRoutes(e, cfg)
	h.Product.RegisterRoutes(e)
	h.AdminProduct.RegisterRoutes(e, cfg)
	h.Cart.RegisterRoutes(e, cfg)
	h.Address.RegisterRoutes(e, cfg)
	h.Wishlist.RegisterRoutes(e, cfg)
	h.Rating.RegisterRoutes(e, cfg)
	h.Order.RegisterRoutes(e, cfg)
	h.Payment.RegisterRoutes(e, cfg)
	h.AdminOrder.RegisterRoutes(e, cfg)
	h.Dashboard.RegisterRoutes(e, cfg)
}
