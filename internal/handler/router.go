package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/support-inbox/internal/authz"
	"github.com/capitalize-ai/support-inbox/internal/middleware"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Health        *HealthHandler
	Webhook       *WebhookHandler
	Users         *UserHandler
	Conversations *ConversationHandler
	Messages      *MessageHandler
	Contacts      *ContactHandler
	WhatsApp      *WhatsAppHandler
}

// RouterConfig holds the HTTP-level settings of the API.
type RouterConfig struct {
	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter wires the API routes. Every /api/v1 route except login is
// authenticated and checked against policy before its handler runs.
func NewRouter(cfg RouterConfig, h Handlers, guard *authz.Guard, policy authz.Policy, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", h.Health.Health)
	r.Get("/ready", h.Health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Provider webhook, authenticated by signature. It is never rate
	// limited: anything but 200 makes the provider redeliver.
	r.Post("/webhooks/whatsapp", h.Webhook.Receive)

	limit := middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)
	loginLimit := middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)

	op := func(name string) func(http.Handler) http.Handler {
		return middleware.Authorize(guard, policy, name, log)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(loginLimit).Post("/auth/login", h.Users.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(limit)

			// Conversations; agents only reach the ones assigned to them
			visible := h.Conversations.Visible
			r.Route("/conversations", func(r chi.Router) {
				r.With(op(authz.OpConversationsCreate)).Post("/", h.Conversations.Create)
				r.With(op(authz.OpConversationsList)).Get("/", h.Conversations.List)

				r.Route("/{id}", func(r chi.Router) {
					r.With(op(authz.OpConversationsGet), visible).Get("/", h.Conversations.Get)
					r.With(op(authz.OpConversationsDelete), visible).Delete("/", h.Conversations.Delete)
					r.With(op(authz.OpConversationsAssign), visible).Put("/assign", h.Conversations.Assign)
					r.With(op(authz.OpConversationsTransition), visible).Put("/status", h.Conversations.Transition)

					// Messages
					r.With(op(authz.OpMessagesList), visible).Get("/messages", h.Messages.List)
					r.With(op(authz.OpMessagesSend), visible).Post("/messages", h.Messages.Send)
					r.With(op(authz.OpMessagesRead), visible).Post("/read", h.Messages.MarkRead)
				})
			})

			// Contacts
			r.Route("/contacts", func(r chi.Router) {
				r.With(op(authz.OpContactsList)).Get("/", h.Contacts.List)
				r.With(op(authz.OpContactsCreate)).Post("/", h.Contacts.Create)
				r.With(op(authz.OpContactsGet)).Get("/phone/{phone}", h.Contacts.GetByPhone)
				r.With(op(authz.OpContactsGet)).Get("/{id}", h.Contacts.Get)
				r.With(op(authz.OpContactsUpdate)).Put("/{id}", h.Contacts.Update)
				r.With(op(authz.OpContactsDelete)).Delete("/{id}", h.Contacts.Delete)
			})

			// WhatsApp
			r.Route("/whatsapp", func(r chi.Router) {
				r.With(op(authz.OpWhatsAppSend)).Post("/send", h.WhatsApp.Send)
				r.With(op(authz.OpWhatsAppSend)).Post("/send-template", h.WhatsApp.SendTemplate)
				r.With(op(authz.OpWhatsAppStatus)).Get("/message-status", h.WhatsApp.Status)
			})

			// Roles
			r.Route("/roles", func(r chi.Router) {
				r.With(op(authz.OpRolesList)).Get("/", h.Users.ListRoles)
				r.With(op(authz.OpRolesCreate)).Post("/", h.Users.CreateRole)
				r.With(op(authz.OpRolesSeed)).Post("/seed", h.Users.SeedRoles)
				r.With(op(authz.OpRolesGet)).Get("/{id}", h.Users.GetRole)
				r.With(op(authz.OpRolesUpdate)).Put("/{id}", h.Users.UpdateRole)
				r.With(op(authz.OpRolesDelete)).Delete("/{id}", h.Users.DeleteRole)
			})

			// Users
			r.Route("/users", func(r chi.Router) {
				r.With(op(authz.OpUsersList)).Get("/", h.Users.ListUsers)
				r.With(op(authz.OpUsersList)).Get("/agents", h.Users.ListAgents)
				r.With(op(authz.OpUsersCreate)).Post("/", h.Users.CreateUser)
				r.With(op(authz.OpUsersList)).Get("/{id}", h.Users.GetUser)
				r.With(op(authz.OpUsersUpdate)).Put("/{id}", h.Users.UpdateUser)
				r.With(op(authz.OpUsersDelete)).Delete("/{id}", h.Users.DeleteUser)
			})
		})
	})

	return r
}
