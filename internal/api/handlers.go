/**
 * @description
 * HTTP handlers for the condominium API. Every handler resolves the calling
 * Person from the request context and delegates to the application service.
 */
package api

import (
	"log/slog"
	"net/http"

	"github.com/Fblink88/ComunidadElMaiten/internal/app"
	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
)

// WebhookRecorder counts gateway callbacks by outcome.
type WebhookRecorder interface {
	WebhookProcessed(outcome string)
}

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service       app.Service
	logger        *slog.Logger
	webhooks      WebhookRecorder
	webhookSecret string
}

// HandlerOptions carries the optional collaborators of a Handler.
type HandlerOptions struct {
	Logger        *slog.Logger
	Webhooks      WebhookRecorder
	WebhookSecret string
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service app.Service, opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:       service,
		logger:        logger,
		webhooks:      opts.Webhooks,
		webhookSecret: opts.WebhookSecret,
	}
}

// requirePerson loads the Person registered under the token subject. An
// authenticated identity without a Person record gets 404.
func (h *Handler) requirePerson(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			respondWithDetail(w, http.StatusUnauthorized, "Authorization required")
			return
		}

		person, err := h.service.ResolvePerson(r.Context(), identity.Subject)
		if err != nil {
			respondWithError(w, r, h.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withPerson(r.Context(), *person)))
	})
}

func (h *Handler) currentPerson(w http.ResponseWriter, r *http.Request) (domain.Person, bool) {
	person, ok := PersonFromContext(r.Context())
	if !ok {
		respondWithDetail(w, http.StatusUnauthorized, "Authorization required")
	}
	return person, ok
}

type registerRequest struct {
	Name  string `json:"nombre"`
	Email string `json:"email"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		respondWithDetail(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	email := identity.Email
	if email == "" {
		email = req.Email
	} else if req.Email != "" && domain.NormalizeEmail(req.Email) != email {
		respondWithDetail(w, http.StatusBadRequest, "email does not match the authenticated identity")
		return
	}

	person, err := h.service.Register(r.Context(), app.Registration{
		Subject: identity.Subject,
		Email:   email,
		Name:    req.Name,
	})
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, person)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, person)
}

type verifyResponse struct {
	Valid   bool        `json:"valid"`
	UserID  string      `json:"user_id"`
	IsAdmin bool        `json:"es_admin"`
	Role    domain.Role `json:"rol"`
}

func (h *Handler) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	person, ok := h.currentPerson(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, verifyResponse{
		Valid:   true,
		UserID:  person.ID,
		IsAdmin: person.IsAdmin,
		Role:    person.Role,
	})
}
