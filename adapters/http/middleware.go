package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	identityUC "github.com/cvlinkhq/cvlink/internal/application/usecase/identity"
	"github.com/cvlinkhq/cvlink/internal/domain/user"
	"github.com/cvlinkhq/cvlink/pkg/apperror"
	"github.com/cvlinkhq/cvlink/pkg/auth"
	"github.com/cvlinkhq/cvlink/pkg/logger"
)

const (
	GinContextKeyUser = "currentUser"
)

// AuthMiddleware validates the identity-provider token and resolves it to a
// local User, creating the row on first authentication.
func AuthMiddleware(jwtSvc *auth.JWTService, authUC *identityUC.AuthenticateUseCase, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			return
		}

		claims, err := jwtSvc.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		output, err := authUC.Execute(c.Request.Context(), identityUC.AuthenticateInput{Claims: claims})
		if err != nil {
			status := apperror.ToHTTPStatus(err)
			c.AbortWithStatusJSON(status, gin.H{"error": "Access denied"})
			return
		}

		c.Set(GinContextKeyUser, output.User)

		c.Next()
	}
}

// AdminMiddleware must run behind AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := GetUserFromGinContext(c)
		if !ok || !u.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// ErrorMiddleware translates errors collected via c.Error into the wire
// shape. Rate-limit errors additionally carry a Retry-After header.
func ErrorMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := apperror.ToHTTPStatus(err)

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			if status >= http.StatusInternalServerError {
				log.Error("Request failed", appErr)
			}
			if appErr.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(appErr.RetryAfter.Seconds())))
			}
			c.JSON(status, appErr.ToJSON())
			return
		}

		log.Error("Unhandled request error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func GetUserFromGinContext(c *gin.Context) (*user.User, bool) {
	v, ok := c.Get(GinContextKeyUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*user.User)
	return u, ok
}
