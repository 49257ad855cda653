package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"

	"github.com/vanshika/icorewards/internal/config"
)

// DevUserHeader carries the caller id when the development bypass is enabled.
const DevUserHeader = "X-User-ID"

var errUnauthenticated = errors.New("authentication required")

type ctxKey struct{}

// Authenticator verifies HS256 bearer tokens whose subject is the user id.
type Authenticator struct {
	secret         []byte
	issuer         string
	allowDevHeader bool
	nowFn          func() time.Time
}

// NewAuthenticator builds an Authenticator from the auth configuration.
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{
		secret:         []byte(cfg.JWTSecret),
		issuer:         cfg.Issuer,
		allowDevHeader: cfg.AllowDevUserHeader,
		nowFn:          time.Now,
	}
}

// IssueToken signs a token for userID valid for ttl.
func (a *Authenticator) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := a.nowFn()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate resolves the caller of r.
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" && len(a.secret) > 0 {
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return "", errUnauthenticated
		}
		return a.verify(strings.TrimSpace(raw))
	}
	if a.allowDevHeader {
		if id := strings.TrimSpace(r.Header.Get(DevUserHeader)); id != "" {
			return id, nil
		}
	}
	return "", errUnauthenticated
}

func (a *Authenticator) verify(raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.nowFn),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", errUnauthenticated
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errUnauthenticated
	}
	return claims.Subject, nil
}

// Require rejects unauthenticated requests and stores the caller id in the
// request context.
func (a *Authenticator) Require(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		userID, err := a.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)), ps)
	}
}

// callerID returns the authenticated user id stored by Require.
func callerID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
