package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ManuelReschke/CoachHub/internal/pkg/usercontext"
)

// Claims carried by access tokens. The subject is the numeric user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuth reads an optional "Authorization: Bearer" HS256 token and sets the
// user context. Requests without a token continue anonymously; a present but
// invalid token is rejected.
func JWTAuth(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if header == "" {
			return c.Next()
		}

		tokenString, ok := bearerToken(header)
		if !ok {
			return unauthorized(c, "invalid authorization header format")
		}

		u, err := parseToken(tokenString, secret)
		if err != nil {
			log.Debugf("[Auth] Rejected token: %v", err)
			return unauthorized(c, "invalid token")
		}

		usercontext.Set(c, u)
		return c.Next()
	}
}

func parseToken(tokenString string, secret []byte) (usercontext.UserContext, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return usercontext.UserContext{}, err
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return usercontext.UserContext{}, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	if claims.Role == "" {
		return usercontext.UserContext{}, errors.New("missing role claim")
	}

	return usercontext.UserContext{
		UserID:     uint(id),
		Role:       claims.Role,
		IsLoggedIn: true,
	}, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": msg,
	})
}
