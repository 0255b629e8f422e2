package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"familybudget/config"
	"familybudget/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var jwtSecret []byte

// Claims 会话主体（Principal）：登录时由用户记录（或配置管理员）派生，
// 随 token 在每个请求中传递，角色与家庭ID的所有校验都以它为准
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	FamilyID *int64 `json:"family_id"`
	jwt.RegisteredClaims
}

// InitJWT 初始化 JWT 密钥
func InitJWT(cfg *config.Config) {
	jwtSecret = []byte(cfg.JWT.Secret)
}

// GenerateToken 生成 JWT token
func GenerateToken(userID int64, username, role string, familyID *int64, expire time.Duration) (string, error) {
	claims := Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		FamilyID: familyID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expire)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseToken 解析 JWT token
func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("意外的签名方法")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("无效的 token")
	}
	return claims, nil
}

// JWTAuth 认证中间件：要求携带有效 token，校验通过后把主体放入请求上下文
// 失败返回 401，处理器与数据库访问均不会执行
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "请先登录"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "认证格式错误，应为: Bearer <token>"})
			c.Abort()
			return
		}

		claims, err := ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "无效或过期的 token"})
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		if claims.FamilyID != nil {
			c.Set("familyID", *claims.FamilyID)
		}
		c.Next()
	}
}

// RoleRequired 角色中间件：要求主体角色等于指定值
// 需在 JWTAuth 之后使用；角色不符返回 403（区别于未登录的 401，不做跳转）
func RoleRequired(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetCurrentRole(c) != role {
			c.JSON(http.StatusForbidden, gin.H{"code": 403, "message": "权限不足"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminRequired 管理员中间件：要求已登录且角色为 admin，仅用于后台管理接口
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get("userID"); !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "请先登录"})
			c.Abort()
			return
		}
		if GetCurrentRole(c) != models.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"code": 403, "message": "仅管理员可访问"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetCurrentUserID 从上下文获取当前用户ID，未登录返回 0
func GetCurrentUserID(c *gin.Context) int64 {
	if v, exists := c.Get("userID"); exists {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// GetCurrentUsername 从上下文获取当前用户名
func GetCurrentUsername(c *gin.Context) string {
	if v, exists := c.Get("username"); exists {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return ""
}

// GetCurrentRole 从上下文获取当前角色
func GetCurrentRole(c *gin.Context) string {
	if v, exists := c.Get("role"); exists {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

// GetCurrentFamilyID 从上下文获取当前家庭ID，管理员或未登录返回 nil
func GetCurrentFamilyID(c *gin.Context) *int64 {
	if v, exists := c.Get("familyID"); exists {
		if id, ok := v.(int64); ok {
			return &id
		}
	}
	return nil
}
