package routes

import (
	"github.com/avvvet/opsboard-services/internal/socketsvc/handlers"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

// SetRoutes mounts the websocket endpoint. The token may come from the
// Authorization header, the jwt cookie or the jwt query parameter since
// browsers cannot set headers on a websocket handshake.
func SetRoutes(r chi.Router, h *handlers.Handler, tokenAuth *jwtauth.JWTAuth) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(tokenAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie, jwtauth.TokenFromQuery))
			r.Use(jwtauth.Authenticator)

			r.Get("/ws", h.HandleWebSocket)
		})
	})
}
