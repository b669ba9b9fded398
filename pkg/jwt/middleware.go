package jwt

import (
	"strings"

	"persona-market/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	// ContextUserUUIDKey 用户UUID在gin.Context中的键名
	ContextUserUUIDKey = "user_uuid"
	// ContextUsernameKey 用户名在gin.Context中的键名
	ContextUsernameKey = "username"
	// ContextClaimsKey JWT声明在gin.Context中的键名
	ContextClaimsKey = "jwt_claims"
)

// extractToken 从请求头提取 Bearer token，不存在返回空串
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

// setIdentity 将解析出的用户身份写入gin.Context
func setIdentity(c *gin.Context, claims *CustomClaims) {
	username := ""
	if claims.Data != nil {
		if u, ok := claims.Data["username"].(string); ok {
			username = u
		}
	}
	c.Set(ContextUserUUIDKey, claims.Subject)
	c.Set(ContextUsernameKey, username)
	c.Set(ContextClaimsKey, claims)
}

// AuthMiddleware JWT认证中间件
// 从请求头中提取Authorization: Bearer <token>
// 验证token并将用户信息存入gin.Context，失败返回401
func (s *JWTService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			response.Unauthorized(c, "缺少或格式错误的Authorization请求头")
			c.Abort()
			return
		}

		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "token无效或已过期")
			c.Abort()
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware 可选认证中间件
// 携带有效token则解析出用户身份，未携带或无效则以匿名身份放行
// 用于浏览量统计等允许匿名访问、但需要区分作者本人的接口
func (s *JWTService) OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := extractToken(c); tokenString != "" {
			if claims, err := s.ValidateToken(tokenString); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

// GetUserUUID 从gin.Context中获取用户UUID，匿名请求返回空串
func GetUserUUID(c *gin.Context) string {
	if userUUID, exists := c.Get(ContextUserUUIDKey); exists {
		if id, ok := userUUID.(string); ok {
			return id
		}
	}
	return ""
}

// GetUsername 从gin.Context中获取用户名
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get(ContextUsernameKey); exists {
		if name, ok := username.(string); ok {
			return name
		}
	}
	return ""
}

// GetClaims 从gin.Context中获取JWT声明
func GetClaims(c *gin.Context) *CustomClaims {
	if claims, exists := c.Get(ContextClaimsKey); exists {
		if cc, ok := claims.(*CustomClaims); ok {
			return cc
		}
	}
	return nil
}
