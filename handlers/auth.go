package handlers

import (
	"net/http"
	"strings"

	"seguimiento/apperr"
	"seguimiento/middleware"
	"seguimiento/models"
	"seguimiento/render"
	"seguimiento/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	store *store.Store
	auth  *middleware.Authenticator
	log   zerolog.Logger
}

func NewAuthHandler(st *store.Store, auth *middleware.Authenticator, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{store: st, auth: auth, log: log}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	p, err := h.store.PersonaByEmail(r.Context(), req.Email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			err = apperr.Unauthenticated("credenciales inválidas")
		}
		render.Error(w, r, err)
		return
	}

	if p.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(req.Password)) != nil {
		render.Error(w, r, apperr.Unauthenticated("credenciales inválidas"))
		return
	}

	token, err := h.auth.GenerateToken(p)
	if err != nil {
		render.Error(w, r, apperr.Internal(err, "no se pudo generar el token"))
		return
	}

	h.log.Info().Str("id_persona", p.ID.String()).Msg("login")
	render.JSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.auth.Expiration().Seconds()),
	})
}

type meResponse struct {
	personaResponse
	Usuario usuarioInfo `json:"usuario"`
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	p := toPersona(&actor.Persona)
	p.Perfil = &actor.Profile
	p.Roles = actor.Roles
	render.JSON(w, http.StatusOK, meResponse{personaResponse: p, Usuario: usuarioOf(actor)})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=5,max=72"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req changePasswordRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(actor.Persona.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		render.Error(w, r, apperr.Unauthenticated("la contraseña actual es incorrecta"))
		return
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if err := h.store.SetPassword(r.Context(), actor.Persona.ID, hash); err != nil {
		render.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Internal(err, "no se pudo cifrar la contraseña")
	}
	return string(hash), nil
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	e := strings.ToLower(strings.TrimSpace(*email))
	if e == "" {
		return nil
	}
	return &e
}

// newPersona builds an unsaved person with the given profile.
func newPersona(nombre, apellido string, email *string, profile int16) *models.Persona {
	return &models.Persona{
		ID:        uuid.New(),
		Nombre:    strings.TrimSpace(nombre),
		Apellido:  strings.TrimSpace(apellido),
		Email:     normalizeEmail(email),
		ProfileID: profile,
	}
}
