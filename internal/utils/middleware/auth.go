package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/flox/server/internal/shared/response"
	apperrors "github.com/flox/server/internal/utils/errors"
	"github.com/flox/server/internal/utils/requestctx"
)

const (
	// AuthorizationHeader is the header key for authorization.
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens.
	BearerPrefix = "Bearer "
	// UserIDKey is the context key for user ID.
	UserIDKey = "user_id"
	// EmailKey is the context key for email.
	EmailKey = "email"
)

var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidTokenSubject = errors.New("token subject is not a user id")
)

// Claims are the identity claims issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Identity is the verified caller.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// JWTValidator defines the interface for JWT token validation.
type JWTValidator interface {
	ValidateToken(token string) (*Identity, error)
}

// HMACValidator verifies HS256 tokens signed with a shared secret.
type HMACValidator struct {
	secret []byte
	issuer string
}

// NewHMACValidator creates a validator. An empty issuer skips the issuer check.
func NewHMACValidator(secret, issuer string) *HMACValidator {
	return &HMACValidator{secret: []byte(secret), issuer: issuer}
}

// ValidateToken parses the token and maps its subject to a user id.
func (v *HMACValidator) ValidateToken(tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidTokenSubject
	}

	return &Identity{UserID: userID, Email: claims.Email}, nil
}

// Compile-time check
var _ JWTValidator = (*HMACValidator)(nil)

// Auth returns a middleware that validates JWT tokens.
// If the token is valid, it sets user_id and email in the context.
// If optional is true, the middleware will not abort on missing/invalid tokens.
func Auth(validator JWTValidator, optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			if !optional {
				response.Error(c, apperrors.Unauthorized("Authorization header required"))
				return
			}
			c.Next()
			return
		}

		identity, err := validator.ValidateToken(token)
		if err != nil {
			if !optional {
				response.Error(c, apperrors.Unauthorized("Invalid or expired token"))
				return
			}
			c.Next()
			return
		}

		c.Set(UserIDKey, identity.UserID)
		c.Set(EmailKey, identity.Email)
		c.Request = c.Request.WithContext(requestctx.WithUserID(c.Request.Context(), identity.UserID))

		c.Next()
	}
}

// RequireAuth returns a middleware that requires a valid JWT token.
func RequireAuth(validator JWTValidator) gin.HandlerFunc {
	return Auth(validator, false)
}

// OptionalAuth returns a middleware that optionally validates JWT tokens.
func OptionalAuth(validator JWTValidator) gin.HandlerFunc {
	return Auth(validator, true)
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader(AuthorizationHeader)
	if strings.HasPrefix(authHeader, BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	}
	return ""
}

// GetUserID returns the user ID from context.
// Returns uuid.Nil if not found.
func GetUserID(c *gin.Context) uuid.UUID {
	if val, exists := c.Get(UserIDKey); exists {
		if userID, ok := val.(uuid.UUID); ok {
			return userID
		}
	}
	return uuid.Nil
}

// GetEmail returns the email from context.
func GetEmail(c *gin.Context) string {
	return c.GetString(EmailKey)
}
