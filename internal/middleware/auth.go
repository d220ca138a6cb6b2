package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"ai-estimate-backend/internal/config"
	"ai-estimate-backend/internal/models"
)

const (
	UserIDKey = "user_id"
	ClaimsKey = "auth_claims"
	TokenKey  = "auth_token"
)

// Claims is the subset of the identity token the handlers rely on.
type Claims struct {
	Subject  string
	Email    string
	Phone    string
	Name     string
	AuthTime time.Time
}

type supabaseClaims struct {
	jwt.RegisteredClaims
	Email        string                 `json:"email"`
	Phone        string                 `json:"phone"`
	AuthTime     *jwt.NumericDate       `json:"auth_time,omitempty"`
	AMR          []amrEntry             `json:"amr,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

type amrEntry struct {
	Method    string `json:"method"`
	Timestamp int64  `json:"timestamp"`
}

var ErrMissingSubject = errors.New("token has no subject")

// ParseToken verifies an HS256 identity token and extracts its claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	var parsed supabaseClaims
	_, err := jwt.ParseWithClaims(tokenString, &parsed, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if parsed.Subject == "" {
		return nil, ErrMissingSubject
	}

	claims := &Claims{
		Subject:  parsed.Subject,
		Email:    parsed.Email,
		Phone:    parsed.Phone,
		AuthTime: authTime(&parsed),
	}
	for _, key := range []string{"full_name", "name"} {
		if name, ok := parsed.UserMetadata[key].(string); ok && name != "" {
			claims.Name = name
			break
		}
	}
	return claims, nil
}

// authTime prefers an explicit auth_time, then the latest amr sign-in, then iat.
func authTime(c *supabaseClaims) time.Time {
	if c.AuthTime != nil {
		return c.AuthTime.Time
	}
	var latest int64
	for _, entry := range c.AMR {
		if entry.Timestamp > latest {
			latest = entry.Timestamp
		}
	}
	if latest > 0 {
		return time.Unix(latest, 0)
	}
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "missing authorization header"})
			return
		}

		tokenString, ok := bearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid authorization header format"})
			return
		}

		claims, err := ParseToken(tokenString, cfg.SupabaseJWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "invalid token",
				Message: err.Error(),
			})
			return
		}

		c.Set(UserIDKey, claims.Subject)
		c.Set(ClaimsKey, claims)
		c.Set(TokenKey, tokenString)
		c.Next()
	}
}

// RequireRecentAuth rejects tokens whose sign-in is older than window.
func RequireRecentAuth(window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
			return
		}
		if claims.AuthTime.IsZero() || time.Since(claims.AuthTime) > window {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{Error: "re-auth required"})
			return
		}
		c.Next()
	}
}

func ClaimsFromContext(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

func UserID(c *gin.Context) (string, bool) {
	uid := c.GetString(UserIDKey)
	return uid, uid != ""
}
