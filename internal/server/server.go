package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/sefazor/subscription-checkout/internal/handler"
	"github.com/sefazor/subscription-checkout/internal/middleware"
)

type Options struct {
	CORSAllowOrigins string
	// Requests per minute per IP; 0 disables the limiter.
	RateLimitMax int
}

type Server struct {
	app             *fiber.App
	checkoutHandler *handler.CheckoutHandler
}

func NewServer(checkoutHandler *handler.CheckoutHandler, logger *zap.SugaredLogger, opts Options) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(logger))
	if opts.CORSAllowOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: opts.CORSAllowOrigins,
			AllowHeaders: "Origin, Content-Type, Accept",
			AllowMethods: "GET, POST",
		}))
	}
	if opts.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimitMax,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
		}))
	}
	app.Use(middleware.PageSession())

	s := &Server{
		app:             app,
		checkoutHandler: checkoutHandler,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", handler.Health)

	s.app.Get("/prices.html", s.checkoutHandler.PricesPage)
	s.app.Post("/prices.html", s.checkoutHandler.CreateSubscription)

	s.app.Get("/subscribe.html", s.checkoutHandler.SubscribePage)
	s.app.Post("/subscribe.html", s.checkoutHandler.SubmitPayment)

	subscribe := s.app.Group("/subscribe")
	subscribe.Get("/status", s.checkoutHandler.CheckoutStatus)
	subscribe.Get("/qr.png", s.checkoutHandler.HandoffQRCode)
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start(address string) error {
	return s.app.Listen(address)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
