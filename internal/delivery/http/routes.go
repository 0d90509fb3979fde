package http

import (
	"net/http"

	wsDelivery "chatify/internal/delivery/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

type RouterDeps struct {
	HttpHandler      *HttpHandler
	AuthHandler      *AuthHandler
	WebsocketHandler *wsDelivery.WebsocketHandler
	AuthMiddleware   *AuthMiddleware
	AllowedOrigins   []string
	HealthCheck      http.HandlerFunc
	Log              *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(deps.Log))
	r.Use(middleware.Recoverer)

	MapHttpRoutes(r, deps)

	cors := handlers.CORS(
		handlers.AllowedOrigins(deps.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-Id"}),
		handlers.AllowCredentials(),
	)
	return cors(r)
}

func MapHttpRoutes(r chi.Router, deps RouterDeps) {
	authHandler := deps.AuthHandler
	httpHandler := deps.HttpHandler
	authMiddleware := deps.AuthMiddleware

	if deps.HealthCheck != nil {
		r.Get("/healthz", deps.HealthCheck)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.RefreshToken)
		r.Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/logout-all", authHandler.LogoutAllDevices)
		})
	})

	// the websocket handshake authenticates with a token query parameter
	if deps.WebsocketHandler != nil {
		r.Get("/ws", deps.WebsocketHandler.HandleWebSocket)
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/messages", func(r chi.Router) {
			r.Get("/users", httpHandler.ListUsers)
			r.Get("/unread", httpHandler.UnreadSummary)
			r.Get("/{id}", httpHandler.ListConversation)
			r.Post("/send/{id}", httpHandler.SendMessage)
			r.Post("/open/{id}", httpHandler.OpenConversation)
			r.Post("/close/{id}", httpHandler.CloseConversation)
			r.Post("/clear/{id}", httpHandler.ClearConversation)
			r.Delete("/{id}", httpHandler.DeleteMessage)
		})

		r.Route("/user", func(r chi.Router) {
			r.Get("/me", httpHandler.Me)
			r.Put("/language", httpHandler.UpdateLanguage)
			r.Put("/profile-pic", httpHandler.UpdateProfilePic)
		})
	})
}
