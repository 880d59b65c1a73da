package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

// authRequired проверяет bearer-токен и кладёт user_id в контекст запроса.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			respondError(c, http.StatusUnauthorized, "authorization token required")
			c.Abort()
			return
		}

		userID, err := s.verifyToken(token)
		if err != nil || userID == "" {
			respondError(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func (s *Server) verifyToken(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return "", err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenInvalidClaims
	}
	userID, _ := claims[userIDKey].(string)
	return userID, nil
}

// SignUserToken выпускает токен пользователя. Используется локальной
// разработкой и тестами; в бою токены выдаёт сервис авторизации.
func SignUserToken(secret, userID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		userIDKey: userID,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
