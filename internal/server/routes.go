package server

import (
	"net/http"

	"app/internal/config"
	"app/internal/handler"

	"github.com/labstack/echo/v4"
)

// ハンドラ一式。mainで組み立てて渡す
type Deps struct {
	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	Cart         *handler.CartHandler
	Order        *handler.OrderHandler
	Coupon       *handler.CouponHandler
	Payment      *handler.PaymentHandler
	AdminProduct *handler.AdminProductHandler
	AdminOrder   *handler.AdminOrderHandler
}

func registerRoutes(e *echo.Echo, cfg config.Config, d Deps) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	d.Auth.RegisterRoutes(e)
	d.Product.RegisterRoutes(e)
	d.Cart.RegisterRoutes(e, cfg)
	d.Order.RegisterRoutes(e, cfg)
	d.Coupon.RegisterRoutes(e, cfg)
	d.Payment.RegisterRoutes(e, cfg)
	d.AdminProduct.RegisterRoutes(e, cfg)
	d.AdminOrder.RegisterRoutes(e, cfg)
}
