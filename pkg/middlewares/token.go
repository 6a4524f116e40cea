package middlewares

import (
	t_token "campus_chat/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenMemberID get member form token, set c.locals name
	TokenMemberID = "MemberID"
	//TokenRole get role form token, set c.locals name
	TokenRole = "role"
	//TokenClaims full claims, set c.locals name
	TokenClaims = "claims"
)

// JWTMiddleware validates JWT from Authorization header, auth query or auth_token cookie
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, ok := t_token.FromBearer(c.Get(fiber.HeaderAuthorization))

		// 依序嘗試 query / cookie
		if !ok {
			tokenStr = c.Query(QueryToken)
		}
		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}

		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := t_token.ParseJWTFunc(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(TokenMemberID, claims.MemberID)
		c.Locals(TokenRole, claims.Role)
		c.Locals(TokenClaims, claims)

		return c.Next()
	}
}

// ClaimsFrom claims set by JWTMiddleware
func ClaimsFrom(c *fiber.Ctx) (*t_token.Claims, bool) {
	claims, ok := c.Locals(TokenClaims).(*t_token.Claims)
	return claims, ok
}
