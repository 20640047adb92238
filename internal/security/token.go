package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

var ErrInvalidToken = errors.New("invalid token")

// ModeratorClaims identify a reviewer. The subject is the moderator ID.
type ModeratorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c ModeratorClaims) ModeratorID() string {
	return c.Subject
}

func GenerateModeratorToken(secret string, moderatorID string, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ModeratorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   moderatorID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

func ParseModeratorToken(tokenStr string, secret string) (*ModeratorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ModeratorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*ModeratorClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
