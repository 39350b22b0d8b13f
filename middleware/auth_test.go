package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"seguimiento/access"
	"seguimiento/apperr"
	"seguimiento/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	actors map[string]*access.Actor
}

func (s stubResolver) Resolve(_ context.Context, subject string) (*access.Actor, error) {
	if a, ok := s.actors[subject]; ok {
		return a, nil
	}
	return nil, apperr.NotFound("persona no encontrada")
}

func setup() (*Authenticator, *models.Persona, *access.Actor) {
	p := &models.Persona{ID: uuid.New(), AuthUserID: "auth-123"}
	actor := &access.Actor{Persona: *p, Profile: models.Profile{NivelAcceso: 2}, Roles: []int16{models.RolePastor}}
	auth := NewAuthenticator("test-secret", time.Hour, stubResolver{actors: map[string]*access.Actor{"auth-123": actor}})
	return auth, p, actor
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/alumnos", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareResolvesActor(t *testing.T) {
	auth, p, want := setup()
	token, err := auth.GenerateToken(p)
	require.NoError(t, err)

	var got *access.Actor
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorFromContext(r.Context())
	}))

	rec := serve(h, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Same(t, want, got)
}

func TestMiddlewareRejections(t *testing.T) {
	auth, _, _ := setup()

	other := NewAuthenticator("other-secret", time.Hour, nil)
	forged, err := other.GenerateToken(&models.Persona{AuthUserID: "auth-123"})
	require.NoError(t, err)

	expiredAuth := NewAuthenticator("test-secret", time.Hour, nil)
	expiredAuth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredAuth.GenerateToken(&models.Persona{AuthUserID: "auth-123"})
	require.NoError(t, err)

	unknown, err := auth.GenerateToken(&models.Persona{AuthUserID: "nobody"})
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "auth-123"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", forged, http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
		{"alg none", noneToken, http.StatusUnauthorized},
		{"unknown subject", unknown, http.StatusNotFound},
	}

	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(h, tt.token).Code)
		})
	}
}

func TestRequire(t *testing.T) {
	admin := &access.Actor{Profile: models.Profile{NivelAcceso: models.NivelAdministrador}}
	user := &access.Actor{Profile: models.Profile{NivelAcceso: models.NivelUsuario}, Roles: []int16{models.RolePastor}}

	h := Require(access.OpManageBolsas)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name  string
		actor *access.Actor
		want  int
	}{
		{"admin", admin, http.StatusNoContent},
		{"pastor user", user, http.StatusForbidden},
		{"no actor", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/bolsas", nil)
			if tt.actor != nil {
				req = req.WithContext(WithActor(req.Context(), tt.actor))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
