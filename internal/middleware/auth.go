package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/curricula-backend/internal/platform/logger"
)

// AuthMiddleware protects the management API. Two paths in: a signed JWT
// (service-to-service) or the admin API key checked against its bcrypt hash.
type AuthMiddleware struct {
	log          *logger.Logger
	jwtSecret    []byte
	adminKeyHash []byte
}

func NewAuthMiddleware(log *logger.Logger, jwtSecret string, adminKeyHash string) *AuthMiddleware {
	return &AuthMiddleware{
		log:          log.With("Middleware", "AuthMiddleware"),
		jwtSecret:    []byte(jwtSecret),
		adminKeyHash: []byte(adminKeyHash),
	}
}

// Claims is the accepted token payload.
type Claims struct {
	Subject string `json:"sub_name,omitempty"`
	Admin   bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader("X-Api-Key"); key != "" {
			if am.checkAdminKey(key) {
				c.Set("auth_subject", "admin-key")
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		claims, err := am.parseToken(tokenString)
		if err != nil {
			am.log.Debug("token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("auth_subject", claims.Subject)
		c.Set("auth_admin", claims.Admin)
		c.Next()
	}
}

// RequireAdmin layers on RequireAuth for destructive routes. Admin-key
// callers always qualify; JWT callers need the admin claim.
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("auth_subject") == "admin-key" || c.GetBool("auth_admin") {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
	}
}

func (am *AuthMiddleware) checkAdminKey(key string) bool {
	if len(am.adminKeyHash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(am.adminKeyHash, []byte(key)) == nil
}

func (am *AuthMiddleware) parseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return am.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token invalid")
	}
	return claims, nil
}

// IssueToken mints a short-lived service token. Used by the CLI and tests.
func (am *AuthMiddleware) IssueToken(subject string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: subject,
		Admin:   admin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(am.jwtSecret)
}

func extractToken(c *gin.Context) string {
	// Query token first because EventSource cannot set headers.
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
