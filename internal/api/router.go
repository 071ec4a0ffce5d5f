package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tripmate-io/tripmate/internal/auth"
	"github.com/tripmate-io/tripmate/internal/chat"
	"github.com/tripmate-io/tripmate/internal/notification"
	"github.com/tripmate-io/tripmate/internal/repositories"
	"github.com/tripmate-io/tripmate/internal/social"
)

// loginRateLimit caps login attempts per client IP per minute.
const loginRateLimit = 10

// RouterConfig holds all dependencies needed to build the HTTP router.
// It is populated in main.go after all components are initialized.
type RouterConfig struct {
	AuthService *auth.AuthService
	Handshake   *chat.Handshake
	Social      *social.Service
	Pending     *notification.PendingCounter

	// Chat carries the fan-out, repositories and presence shared by every
	// chat session. Its Fanout is also used by the notification channel and
	// the message edit/delete broadcasts.
	Chat chat.Deps

	Users         repositories.UserRepository
	Conversations repositories.ConversationRepository
	Messages      repositories.MessageRepository

	// Ping checks database reachability for /healthz. Optional.
	Ping func(ctx context.Context) error

	// CORSOrigins lists the browser origins allowed to call the REST API.
	// Empty allows every origin.
	CORSOrigins []string

	Logger *zap.Logger
}

// NewRouter builds and returns the fully configured Chi router.
// REST routes live under /api/v1, the WebSocket channels under /ws.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	// --- Initialize handlers ---
	authHandler := NewAuthHandler(cfg.AuthService, cfg.Logger)
	userHandler := NewUserHandler(cfg.Users, cfg.Logger)
	conversationHandler := NewConversationHandler(cfg.Conversations, cfg.Messages, cfg.Users, cfg.Logger)
	messageHandler := NewMessageHandler(cfg.Messages, cfg.Chat.Fanout, cfg.Logger)
	socialHandler := NewSocialHandler(cfg.Social, cfg.Pending, cfg.Logger)
	wsHandler := NewWSHandler(cfg.Handshake, cfg.Chat, cfg.Pending, cfg.Logger)
	healthHandler := NewHealthHandler(cfg.Ping, cfg.Logger)

	r.Get("/healthz", healthHandler.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket channels authenticate from the token query parameter.
	r.Route("/ws", func(r chi.Router) {
		r.Get("/chat/{conversationID}", wsHandler.ServeChat)
		r.Get("/notifications", wsHandler.ServeNotifications)
	})

	r.Route("/api/v1", func(r chi.Router) {

		// --- Public routes ---
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(loginRateLimit, time.Minute))
			r.Post("/auth/login", authHandler.Login)
		})

		// --- Authenticated routes (valid JWT required) ---
		r.Group(func(r chi.Router) {
			r.Use(Authenticate(cfg.AuthService))

			r.Get("/users/me", userHandler.GetMe)

			// Chat
			r.Post("/conversations", conversationHandler.Create)
			r.Get("/conversations/{id}/messages", conversationHandler.ListMessages)
			r.Patch("/messages/{id}", messageHandler.Update)
			r.Delete("/messages/{id}", messageHandler.Delete)

			// Friends and trips
			r.Post("/friend-requests", socialHandler.SendFriendRequest)
			r.Post("/friend-requests/{id}/respond", socialHandler.RespondFriendRequest)
			r.Post("/trips", socialHandler.CreateTrip)
			r.Post("/trip-shares", socialHandler.ShareTrip)
			r.Post("/trip-shares/{id}/respond", socialHandler.RespondTripShare)

			// Notifications
			r.Get("/notifications/pending-count", socialHandler.PendingCount)
		})
	})

	return r
}
