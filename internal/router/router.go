package router

import (
	"net/http"

	"github.com/fasol-market/api/internal/bot"
	"github.com/fasol-market/api/internal/config"
	"github.com/fasol-market/api/internal/database"
	"github.com/fasol-market/api/internal/enum"
	"github.com/fasol-market/api/internal/handler"
	mw "github.com/fasol-market/api/internal/middleware"
	"github.com/fasol-market/api/internal/service"
	"github.com/fasol-market/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Config     *config.Config
	Queries    *database.Queries
	Hub        *ws.Hub
	Holds      *service.HoldService
	Settlement *service.CaptureService
	Catalog    handler.CatalogService
	Bot        *bot.Handler // nil when the Telegram bot is disabled
}

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(d Deps) chi.Router {
	cfg := d.Config
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(mw.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/{topic}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWTSecret, w, r)
	})

	paymentHandler := handler.NewPaymentHandler(d.Holds, d.Settlement)
	productHandler := handler.NewProductHandler(d.Catalog)
	checkoutLimiter := mw.NewRateLimiter(cfg.CheckoutRPS, cfg.CheckoutBurst)

	r.Route("/api", func(r chi.Router) {
		// Storefront and gateway (public)
		paymentHandler.RegisterPublicRoutes(r, checkoutLimiter.Handler)
		productHandler.RegisterPublicRoutes(r)

		if d.Bot != nil {
			r.Post("/bot/telegram", d.Bot.Webhook)
		}

		authHandler := handler.NewAuthHandler(d.Queries, cfg.JWTSecret)
		authHandler.RegisterRoutes(r)

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole(enum.OperatorRoleOwner, enum.OperatorRoleOperator))

			paymentHandler.RegisterOperatorRoutes(r)

			orderHandler := handler.NewOrderHandler(d.Settlement)
			r.Route("/orders", orderHandler.RegisterRoutes)

			// Owner-only routes
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.OperatorRoleOwner))

				productHandler.RegisterOwnerRoutes(r)

				operatorHandler := handler.NewOperatorHandler(d.Queries)
				r.Route("/operators", operatorHandler.RegisterRoutes)

				reportsHandler := handler.NewReportsHandler(d.Queries, cfg.Location())
				r.Route("/reports", reportsHandler.RegisterRoutes)
			})
		})
	})

	log.Info().Bool("bot", d.Bot != nil).Msg("router initialized")
	return r
}
