package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Clés posées dans le contexte Gin par AuthRequired.
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
)

// AuthRequired valide le jeton Bearer (HMAC) et expose user_id, email et role aux handlers.
func AuthRequired(secret string, logger *slog.Logger) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token manquant"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Debug("❌ Format Authorization invalide", "parts", len(parts))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Format Authorization invalide"})
			return
		}

		// jwt/v5 vérifie exp et nbf lors du parsing.
		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("méthode de signature inattendue: %v", token.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			logger.Debug("❌ Erreur parsing JWT", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token invalide"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token invalide"})
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			logger.Warn("❌ user_id manquant dans les claims")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id manquant"})
			return
		}

		email, _ := claims["email"].(string)
		role, _ := claims["role"].(string)
		c.Set(ContextUserID, userID)
		c.Set(ContextEmail, email)
		c.Set(ContextRole, role)
		c.Next()
	}
}

// UserID retourne l'utilisateur authentifié du contexte.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
