package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/soaringjerry/Canvass/internal/services"
)

type authCtxKey int

const authKey authCtxKey = 7

type Claims struct {
	UID   string        `json:"uid"`
	Role  services.Role `json:"role"`
	Email string        `json:"email"`
	jwt.RegisteredClaims
}

// Auth signs and verifies HS256 session tokens.
type Auth struct {
	secret []byte
	now    func() time.Time
}

func NewAuth(secret []byte) *Auth {
	return &Auth{secret: secret, now: time.Now}
}

// SignToken has the shape of services.TokenSigner.
func (a *Auth) SignToken(uid string, role services.Role, email string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		UID:   uid,
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Auth) parseToken(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid && c.UID != "" {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// WithAuth attaches claims to the request context when a valid bearer token is present.
// Requests without one pass through anonymously.
func (a *Auth) WithAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if strings.HasPrefix(h, "Bearer ") {
			tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			if c, err := a.parseToken(tok); err == nil {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authKey, c)))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ActorFromContext returns the authenticated caller, or the zero Actor.
func ActorFromContext(ctx context.Context) services.Actor {
	if c, ok := ctx.Value(authKey).(*Claims); ok {
		return services.Actor{ID: c.UID, Role: c.Role}
	}
	return services.Actor{}
}
