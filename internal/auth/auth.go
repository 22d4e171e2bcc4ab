package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Roles resolved at token-parse time. Administrative operations check the
// role on the Identity they receive, never an email literal.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

const identityKey = "identity"

var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated caller as reported by the identity
// provider's token.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// IsAdmin reports whether the identity carries the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier parses identity-provider tokens into Identities.
type Verifier struct {
	secret      []byte
	adminEmails map[string]bool
}

// NewVerifier creates a Verifier. adminEmails is the fallback for tokens
// issued without a role claim: membership grants RoleAdmin.
func NewVerifier(secret string, adminEmails []string) *Verifier {
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			admins[email] = true
		}
	}
	return &Verifier{secret: []byte(secret), adminEmails: admins}
}

// Verify parses and validates a bearer token and resolves the caller's
// role once, so downstream code never re-derives it.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	role := c.Role
	if role == "" {
		role = RoleCustomer
		if v.adminEmails[strings.ToLower(c.Email)] {
			role = RoleAdmin
		}
	}

	return Identity{UserID: c.Subject, Email: c.Email, Role: role}, nil
}

// Middleware authenticates requests and stores the Identity in the gin
// context for handlers to pick up with FromContext.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization header"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		identity, err := v.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireAdmin rejects requests whose identity lacks the admin role.
// It must run after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := FromContext(c)
		if !ok || !identity.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator access required"})
			return
		}
		c.Next()
	}
}

// FromContext returns the Identity stored by Middleware.
func FromContext(c *gin.Context) (Identity, bool) {
	val, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	identity, ok := val.(Identity)
	return identity, ok
}
