package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xraph/drip"
	"github.com/xraph/drip/types"
)

// Authenticator verifies HMAC-signed bearer tokens and turns their subject
// into the request's caller identity.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator returns an Authenticator for secret. A non-empty issuer
// is required to match the "iss" claim.
func NewAuthenticator(secret []byte, issuer string) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("api: empty jwt secret")
	}
	return &Authenticator{secret: secret, issuer: issuer}, nil
}

// Issue signs a token for subject valid for ttl.
func (a *Authenticator) Issue(subject types.Identity, ttl time.Duration) (string, error) {
	if err := subject.Validate(); err != nil {
		return "", err
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses token and returns its subject.
func (a *Authenticator) Verify(token string) (types.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", drip.ErrInvalidCredentials
	}

	subject := types.Identity(claims.Subject)
	if subject.Validate() != nil {
		return "", drip.ErrInvalidCredentials
	}
	return subject, nil
}

// Middleware attaches the bearer token's subject as the caller. Requests
// without an Authorization header pass through anonymously.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, drip.ErrInvalidCredentials)
			return
		}

		caller, err := a.Verify(strings.TrimSpace(token))
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(drip.WithCaller(r.Context(), caller)))
	})
}
