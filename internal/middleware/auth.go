package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stwalsh4118/parcela/internal/models"
)

const identityKey = "identity"

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   models.UserRole
}

// IsAdmin reports whether the caller has staff rights.
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// Claims are the bearer token claims. The subject is the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid bearer token")
)

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator creates an authenticator. An empty issuer is not checked.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Parse validates a raw token and returns the caller it names.
func (a *Authenticator) Parse(raw string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", errInvalidToken)
	}

	role := models.UserRole(claims.Role)
	if role != models.RoleAdmin {
		role = models.RoleUser
	}
	return Identity{UserID: claims.Subject, Role: role}, nil
}

// Issue signs a token for userID. It is used by the seed tool and tests.
func (a *Authenticator) Issue(userID string, role models.UserRole, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// bearer extracts the token from the Authorization header, falling back to
// the access_token query parameter for WebSocket upgrades.
func bearer(c *gin.Context) (string, error) {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", errInvalidToken
		}
		return token, nil
	}
	if token := c.Query("access_token"); token != "" {
		return token, nil
	}
	return "", errMissingToken
}

// OptionalAuth records the caller when a valid token is present and lets
// anonymous requests through. An invalid token is rejected.
func OptionalAuth(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearer(c)
		if errors.Is(err, errMissingToken) {
			c.Next()
			return
		}
		if err == nil {
			var id Identity
			if id, err = a.Parse(raw); err == nil {
				c.Set(identityKey, id)
				c.Next()
				return
			}
		}
		abortJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
	}
}

// RequireAuth rejects requests without a valid token.
func RequireAuth(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearer(c)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		id, err := a.Parse(raw)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		if id.Role != role {
			abortJSON(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the authenticated caller, if any.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	if v, exists := c.Get(identityKey); exists {
		if id, ok := v.(Identity); ok {
			return id, true
		}
	}
	return Identity{}, false
}
