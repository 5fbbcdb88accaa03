package handlers

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/boards", h.ListBoards)
			r.Get("/board", h.GetBoard)
			r.Post("/board", h.PostBoard)
			r.Get("/board/summary", h.BoardSummary)

			r.Get("/roster", h.GetRoster)
			r.Post("/roster", h.PostRoster)
			r.Post("/roster/locations", h.PostLocation)
			r.Delete("/roster/locations/{id}", h.DeleteLocation)
		})
	})
}

// NewTokenAuth builds the HS256 verifier shared with the identity provider.
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// DebugToken logs a short lived token for the given email. Only used when
// DEBUG_TOKEN_EMAIL is set.
func DebugToken(tokenAuth *jwtauth.JWTAuth, email string) {
	expirationTime := time.Now().Add(24 * time.Hour).Unix()

	_, tokenString, err := tokenAuth.Encode(map[string]interface{}{
		"email": email,
		"exp":   expirationTime,
	})
	if err != nil {
		log.Errorf("debug token: %v", err)
		return
	}
	log.Infof("DEBUG: JWT for %s : %s", email, tokenString)
}
