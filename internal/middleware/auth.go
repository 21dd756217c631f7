package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/AlphaSudo/HmS2/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Roles recognized by the billing surface. Tokens are issued by the
// identity service; this service only verifies them.
const (
	RoleAdmin        = "ADMIN"
	RoleDoctor       = "DOCTOR"
	RoleBillingClerk = "BILLING_CLERK"
	RolePatient      = "PATIENT"
)

func GetJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "default_super_secret_key" // Development fallback only — DO NOT use in production
	}
	return []byte(secret)
}

// extractToken reads the access token from the cookie or the Authorization
// header, cookie first.
func extractToken(c *gin.Context) (string, bool) {
	tokenString, cookieErr := c.Cookie("access_token")
	if cookieErr == nil && tokenString != "" {
		return tokenString, true
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

func parseClaims(c *gin.Context) (jwt.MapClaims, bool) {
	tokenString, ok := extractToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
		return nil, false
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return GetJWTSecret(), nil
	})
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
		return nil, false
	}
	return claims, true
}

// RequireRole validates the JWT and checks that the caller's role is one of
// allowedRoles.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseClaims(c)
		if !ok {
			return
		}

		userRole, ok := claims["role"].(string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Role not found in token"))
			return
		}

		for _, role := range allowedRoles {
			if userRole == role {
				c.Set("userID", claims["sub"])
				c.Set("userRole", userRole)
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// RequireRoleOrSelf passes callers holding one of allowedRoles, and
// additionally lets any authenticated caller through when the token subject
// matches the ownerParam path segment. Used for patient self-service routes
// like "my invoices".
func RequireRoleOrSelf(ownerParam string, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseClaims(c)
		if !ok {
			return
		}

		userRole, _ := claims["role"].(string)
		c.Set("userID", claims["sub"])
		c.Set("userRole", userRole)

		for _, role := range allowedRoles {
			if userRole == role {
				c.Next()
				return
			}
		}

		if subjectMatches(claims["sub"], c.Param(ownerParam)) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// subjectMatches compares the token subject with a numeric path param. The
// subject arrives as string or float64 depending on the issuer.
func subjectMatches(sub interface{}, param string) bool {
	if param == "" {
		return false
	}
	switch v := sub.(type) {
	case string:
		return v == param
	case float64:
		return strconv.FormatInt(int64(v), 10) == param
	default:
		return fmt.Sprint(sub) == param
	}
}
