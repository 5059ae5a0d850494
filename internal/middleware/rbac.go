package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/iufc-admission-api/internal/models"
	appErrors "github.com/noah-isme/iufc-admission-api/pkg/errors"
	"github.com/noah-isme/iufc-admission-api/pkg/response"
)

// RequireRoles lets the request through when the caller holds one of roles.
// Finer scoping (managed trainings, own admissions) is left to the services.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return requireClaims(func(claims *models.JWTClaims) bool {
		_, ok := allowed[claims.Role]
		return ok
	})
}

// RequireStaff admits back-office roles.
func RequireStaff() gin.HandlerFunc {
	return requireClaims(func(claims *models.JWTClaims) bool {
		return claims.Role.IsStaff()
	})
}

// RequireRegistrationValidator admits roles holding the registration validation capability.
func RequireRegistrationValidator() gin.HandlerFunc {
	return requireClaims(func(claims *models.JWTClaims) bool {
		return claims.Role.CanValidateRegistration()
	})
}

func requireClaims(allow func(*models.JWTClaims) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentClaims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !allow(claims) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
