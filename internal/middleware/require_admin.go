package middleware

import (
	"net/http"
	"strings"

	"callastar_back_end/internal/models"

	"github.com/gin-gonic/gin"
)

// RequireAdmin vérifie que l'utilisateur a le rôle ADMIN
func RequireAdmin(c *gin.Context) {
	if !strings.EqualFold(c.GetString(ContextRole), models.RoleAdmin) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Accès réservé aux administrateurs"})
		return
	}
	c.Next()
}
