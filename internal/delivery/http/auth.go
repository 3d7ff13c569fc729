package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/azizikri/deal-claim/internal/domain"
)

// IdentityClaims is the token body handed to us by the auth collaborator.
type IdentityClaims struct {
	Verified bool   `json:"verified"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Mint signs a token for id. Used by tooling and tests; production tokens are
// issued elsewhere with the same secret.
func (a *Authenticator) Mint(id domain.Identity, ttl time.Duration) (string, error) {
	now := a.now()
	claims := IdentityClaims{
		Verified: id.IsVerified,
		Role:     string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Parse(tok string) (domain.Identity, error) {
	claims := &IdentityClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid {
		return domain.Identity{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return domain.Identity{}, errors.New("token has no subject")
	}

	role := domain.RoleUser
	if domain.Role(claims.Role) == domain.RoleAdmin {
		role = domain.RoleAdmin
	}
	return domain.Identity{UserID: claims.Subject, IsVerified: claims.Verified, Role: role}, nil
}

// Middleware attaches the caller's identity to the request context. A missing
// or invalid token leaves the caller anonymous.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := r.Header.Get("Authorization")
		if len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
			id, err := a.Parse(strings.TrimSpace(hdr[7:]))
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("ignoring bearer token")
			} else {
				r = r.WithContext(withIdentity(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

type identityKey struct{}

func withIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller on ctx, or the anonymous identity.
func IdentityFrom(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(identityKey{}).(domain.Identity)
	return id
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFrom(r.Context()).Anonymous() {
			writeError(w, r, domain.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFrom(r.Context())
		switch {
		case id.Anonymous():
			writeError(w, r, domain.ErrUnauthenticated)
		case !id.IsAdmin():
			writeError(w, r, domain.ErrForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
