package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/warp/textile-ledger/generic"
)

// =============================================================================
// SESSION TOKENS
// =============================================================================

// Claims is the signed session. It satisfies textile.Session so handlers
// pass it straight to textile.NewHeader.
type Claims struct {
	jwtlib.RegisteredClaims
	Tenant generic.TenantID `json:"tenant_id"`
	Branch generic.BranchID `json:"branch_id"`
}

func (c *Claims) TenantID() generic.TenantID { return c.Tenant }
func (c *Claims) BranchID() generic.BranchID { return c.Branch }

var errInvalidToken = errors.New("invalid or expired token")

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token bound to tenant and branch.
func (s *Sessions) Issue(tenant generic.TenantID, branch generic.BranchID) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   string(tenant),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "textile-ledger",
		},
		Tenant: tenant,
		Branch: branch,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Parse verifies signature, algorithm and expiry.
func (s *Sessions) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	if claims.Tenant == "" || claims.Branch == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type sessionKey struct{}

// RequireSession rejects requests without a valid bearer token.
func (s *Sessions) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}
		claims, err := s.Parse(strings.TrimSpace(tokenStr))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error(), nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, claims)))
	})
}

// sessionFrom returns the claims stored by RequireSession.
func sessionFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(sessionKey{}).(*Claims)
	return c
}
