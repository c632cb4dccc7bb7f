package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/padel-media-backend/internal/auth"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/logger"
	"github.com/lk2023060901/padel-media-backend/internal/pkg/response"
)

// SessionKey gin 上下文中的会话键
const SessionKey = "session"

// JWTAuth JWT 认证中间件
func JWTAuth(jwtManager *auth.JWTManager, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		var err error

		// 优先从 Authorization header 获取 token
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			token, err = auth.ExtractTokenFromHeader(authHeader)
			if err != nil {
				response.Unauthorized(c, "invalid authorization header format")
				c.Abort()
				return
			}
		} else {
			// 如果 header 没有,尝试从查询参数获取 (用于 SSE)
			token = c.Query("token")
			if token == "" {
				response.Unauthorized(c, "missing authorization")
				c.Abort()
				return
			}
		}

		claims, err := jwtManager.VerifyAccessToken(token)
		if err != nil {
			log.Warn("invalid access token",
				zap.Error(err),
				zap.String("ip", c.ClientIP()))
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		// 将会话注入到上下文
		session := claims.Session()
		c.Set(SessionKey, session)
		c.Set("user_id", session.UserID)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), session.UserID))

		c.Next()
	}
}

// RequireCapability 权限校验中间件（需要先经过 JWTAuth）
func RequireCapability(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := GetSession(c).Require(capability); err != nil {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetSession 从上下文获取会话，未认证时返回 nil
func GetSession(c *gin.Context) *auth.Session {
	v, exists := c.Get(SessionKey)
	if !exists {
		return nil
	}
	session, _ := v.(*auth.Session)
	return session
}

// CORS 跨域中间件
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		origin := c.Request.Header.Get("Origin")

		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			c.Header("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
			c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type, X-Request-ID")
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
