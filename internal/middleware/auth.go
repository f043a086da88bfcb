// Package middleware provides authentication, logging, rate limiting, and
// observability middleware for the application.
package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer and audience stamped into every token this service signs. Tokens
// carrying anything else are rejected regardless of signature validity.
const (
	TokenIssuer   = "parley-api"
	TokenAudience = "parley-client"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns "" when the header is absent or not in Bearer form.
func BearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// ParseToken validates a signed token string and returns its claims. The
// signing method must be HMAC and the issuer and audience must match this
// service; expiry and not-before are enforced by the parser.
func ParseToken(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != TokenIssuer {
		return nil, errors.New("invalid token issuer")
	}
	if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != TokenAudience {
		return nil, errors.New("invalid token audience")
	}

	return claims, nil
}

// UserIDFromClaims extracts the user ID from the subject claim.
func UserIDFromClaims(claims jwt.MapClaims) (uint, error) {
	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, errors.New("missing subject claim")
	}

	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return 0, errors.New("malformed subject claim")
	}
	return uint(userID), nil
}

// JTI returns the token's unique ID, or "" when absent.
func JTI(claims jwt.MapClaims) string {
	jti, _ := claims["jti"].(string)
	return jti
}

// Expiry returns the token's expiration time, or the zero time when absent.
func Expiry(claims jwt.MapClaims) time.Time {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
