package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"seguimiento/access"
	"seguimiento/apperr"
	"seguimiento/models"
	"seguimiento/render"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const ActorContextKey contextKey = "actor"

// Claims carry the person's auth_user_id as the registered subject.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ActorResolver turns a token subject into a resolved caller.
type ActorResolver interface {
	Resolve(ctx context.Context, subject string) (*access.Actor, error)
}

type Authenticator struct {
	secret     []byte
	expiration time.Duration
	resolver   ActorResolver
	now        func() time.Time
}

func NewAuthenticator(secret string, expiration time.Duration, resolver ActorResolver) *Authenticator {
	return &Authenticator{
		secret:     []byte(secret),
		expiration: expiration,
		resolver:   resolver,
		now:        time.Now,
	}
}

func (a *Authenticator) Expiration() time.Duration { return a.expiration }

func (a *Authenticator) GenerateToken(p *models.Persona) (string, error) {
	now := a.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.AuthUserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if p.Email != nil {
		claims.Email = *p.Email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Subject == "" {
		return nil, errors.New("token without subject")
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Middleware validates the bearer token and resolves the caller. A missing or
// invalid token is 401; a valid token whose subject has no person is 404.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			render.Error(w, r, apperr.Unauthenticated("falta el token de autorización"))
			return
		}

		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			render.Error(w, r, apperr.Wrap(err, apperr.KindUnauthenticated, "token inválido o expirado"))
			return
		}

		actor, err := a.resolver.Resolve(r.Context(), claims.Subject)
		if err != nil {
			render.Error(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), ActorContextKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ActorFromContext(ctx context.Context) *access.Actor {
	actor, ok := ctx.Value(ActorContextKey).(*access.Actor)
	if !ok {
		return nil
	}
	return actor
}

// WithActor is used by tests and by code that resolves callers itself.
func WithActor(ctx context.Context, actor *access.Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey, actor)
}

// Require rejects requests whose caller may not perform op. It covers
// operations that need no target resource.
func Require(op access.Op) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if err := access.Evaluate(actor, op, access.Resource{}).Err(); err != nil {
				render.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
