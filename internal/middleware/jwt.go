package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/velora-im/velora-chat-api/internal/utils"
)

// Claims carried in a session token. The nickname is the stable user handle;
// the status claim gates chat access and is re-checked against the store on
// session resume rather than trusted indefinitely.
type SessionClaims struct {
	Nickname string `json:"nickname"`
	Status   string `json:"status"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

// IssueToken mints a signed session token for an authenticated user.
func IssueToken(secret, nickname, status string, admin bool, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	claims := SessionClaims{
		Nickname: nickname,
		Status:   status,
		Admin:    admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   nickname,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// JWTProtected returns a middleware that validates bearer session tokens and
// exposes the nickname, status, and admin flag via request locals.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims := &SessionClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		if strings.TrimSpace(claims.Nickname) == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		c.Locals("nickname", claims.Nickname)
		c.Locals("user_status", claims.Status)
		c.Locals("is_admin", claims.Admin)

		return c.Next()
	}
}
