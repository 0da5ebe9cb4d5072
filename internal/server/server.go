package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"storefront-checkout/internal/handler"
	authmw "storefront-checkout/internal/middleware"
	"storefront-checkout/internal/service"
)

type Services struct {
	Catalog  service.CatalogService
	Cart     service.CartService
	Order    service.OrderService
	Checkout service.CheckoutService
	Payment  service.PaymentService
}

type Server struct {
	echo           *echo.Echo
	jwtSecret      string
	productHandler *handler.ProductHandler
	cartHandler    *handler.CartHandler
	orderHandler   *handler.OrderHandler
	paymentHandler *handler.PaymentHandler
}

func NewServer(services Services, jwtSecret string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		jwtSecret:      jwtSecret,
		productHandler: handler.NewProductHandler(services.Catalog),
		cartHandler:    handler.NewCartHandler(services.Cart),
		orderHandler:   handler.NewOrderHandler(services.Checkout, services.Order),
		paymentHandler: handler.NewPaymentHandler(services.Payment),
	}

	s.setupRoutes()
	return s
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,

		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("user_id", authmw.UserID(c)).
				Msg("request")
			return nil
		},
	})
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	api.GET("/products", s.productHandler.ListProducts)

	// -------- payments (public) --------
	api.GET("/payments/config", s.paymentHandler.PublicConfig)
	api.POST("/payments/webhook", s.paymentHandler.Webhook)

	// -------- authenticated --------
	authed := api.Group("", authmw.AuthMiddleware(s.jwtSecret))

	cart := authed.Group("/cart")
	cart.GET("", s.cartHandler.GetCart)
	cart.DELETE("", s.cartHandler.Clear)
	cart.POST("/lines", s.cartHandler.AddLine)
	cart.PATCH("/lines/:id", s.cartHandler.SetQuantity)
	cart.DELETE("/lines/:id", s.cartHandler.RemoveLine)

	authed.POST("/checkout", s.orderHandler.Checkout)

	orders := authed.Group("/orders")
	orders.GET("", s.orderHandler.ListOrders)
	orders.GET("/:id", s.orderHandler.GetOrder)
	orders.POST("/:id/cancel", s.orderHandler.Cancel)
	orders.POST("/:id/payment-intent", s.paymentHandler.CreateIntent)
	orders.POST("/:id/payment-failed", s.orderHandler.ReportPaymentFailure)

	authed.POST("/payments/verify", s.paymentHandler.Verify)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
