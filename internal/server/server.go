package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/menuboard/internal/auth"
	"github.com/dukerupert/menuboard/internal/handler"
	"github.com/dukerupert/menuboard/internal/middleware"
	"github.com/dukerupert/menuboard/internal/push"
	"github.com/dukerupert/menuboard/internal/store"
	ws "github.com/dukerupert/menuboard/internal/websocket"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options configures a Server.
type Options struct {
	Keys middleware.APIKeys
	// Push enables the push endpoints when both VAPID keys are set.
	Push push.Config
	// AppBaseURL prefixes links opened from customer notifications.
	AppBaseURL string
	// AdminUserIDs receive admin notifications on their dashboard devices.
	AdminUserIDs []string
	// Alerter, when set, is told about every new admin notification.
	Alerter push.Alerter
	// DispatchRateLimit is the number of dispatch calls allowed per client IP
	// per minute. Zero uses the default.
	DispatchRateLimit int
}

const defaultDispatchRateLimit = 120

type Server struct {
	hub          *ws.Hub
	favoriteH    *handler.FavoriteHandler
	pushH        *handler.PushHandler
	dispatchH    *handler.DispatchHandler
	adminNotifH  *handler.AdminNotificationHandler
	pushStore    *store.PushStore
	rateLimiter  *middleware.RateLimiter
	pushService  *push.Service
	notifier     *push.Notifier
	keys         middleware.APIKeys
	dispatchRate int
	logger       *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	pushLogger := logger.With("component", "push")

	pushSt := store.NewPushStore(db)
	var pushSvc *push.Service
	var dispatcher *push.Dispatcher
	var notifier *push.Notifier
	if opts.Push.VAPIDPublicKey != "" && opts.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(opts.Push)
		dispatcher = push.NewDispatcher(pushSvc, pushSt, opts.AppBaseURL, pushLogger)
		notifier = push.NewNotifier(pushSvc, pushSt, opts.AdminUserIDs, opts.Alerter, pushLogger)
	} else {
		pushLogger.Warn("VAPID keys not configured, push notifications disabled")
	}

	var adminNotifier handler.Notifier
	if notifier != nil {
		adminNotifier = notifier
	}

	rate := opts.DispatchRateLimit
	if rate <= 0 {
		rate = defaultDispatchRateLimit
	}

	return &Server{
		hub:          hub,
		favoriteH:    handler.NewFavoriteHandler(store.NewFavoriteStore(db), logger.With("component", "favorite")),
		pushH:        handler.NewPushHandler(pushSt, pushSvc, logger.With("component", "push_handler")),
		dispatchH:    handler.NewDispatchHandler(dispatcher, logger.With("component", "dispatch")),
		adminNotifH:  handler.NewAdminNotificationHandler(store.NewAdminNotificationStore(db), hub, adminNotifier, logger.With("component", "admin_notification")),
		pushStore:    pushSt,
		rateLimiter:  middleware.NewRateLimiter(),
		pushService:  pushSvc,
		notifier:     notifier,
		keys:         opts.Keys,
		dispatchRate: rate,
		logger:       logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Notifier returns the admin notification notifier, or nil when push is disabled.
func (s *Server) Notifier() *push.Notifier {
	return s.notifier
}

// Hub returns the change feed hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", s.healthHandler)

	anon := middleware.RequireRole(s.keys, auth.RoleAnon)
	service := middleware.RequireRole(s.keys, auth.RoleService)

	r.Route("/rest/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(anon)

			r.Get("/favorites", s.favoriteH.List)
			r.Post("/favorites", s.favoriteH.Create)
			r.Delete("/favorites", s.favoriteH.Delete)

			r.Get("/push/vapid-key", s.pushH.GetVAPIDKey)
			r.Put("/push-subscriptions", s.pushH.Upsert)
			r.Delete("/push-subscriptions", s.pushH.Delete)
		})

		r.Group(func(r chi.Router) {
			r.Use(service)

			r.Get("/admin-notifications", s.adminNotifH.List)
			r.Get("/admin-notifications/unread-count", s.adminNotifH.UnreadCount)
			r.Post("/admin-notifications", s.adminNotifH.Create)
			r.Post("/admin-notifications/read-all", s.adminNotifH.MarkAllRead)
			r.Patch("/admin-notifications/{id}", s.adminNotifH.Update)
			r.Delete("/admin-notifications/{id}", s.adminNotifH.Delete)
			r.Delete("/admin-notifications", s.adminNotifH.BulkDelete)
		})
	})

	r.With(anon, s.rateLimited(s.dispatchRate)).Post("/functions/v1/send-push-notification", s.dispatchH.Send)

	r.With(service).Get("/realtime/v1/admin-notifications",
		ws.HandleWebSocket(s.hub, handler.AdminNotificationTable, s.logger.With("component", "websocket")))

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(limit int) func(http.Handler) http.Handler {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, limit, time.Minute)
}
