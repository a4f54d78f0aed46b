package server

import (
	"net/http"

	"shopflow/internal/config"
	"shopflow/internal/handler"

	"github.com/labstack/echo/v4"
)

// Start はechoにルートを載せて待ち受ける
func Start(
	addr string,
	cfg config.Config,
	productH *handler.ProductHandler,
	cartH *handler.CartHandler,
	wishlistH *handler.WishlistHandler,
	orderH *handler.OrderHandler,
) error {
	e := echo.New()
	e.HideBanner = true

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	productH.RegisterRoutes(e)
	cartH.RegisterRoutes(e, cfg)
	wishlistH.RegisterRoutes(e, cfg)
	orderH.RegisterRoutes(e, cfg)

	return e.Start(addr)
}
