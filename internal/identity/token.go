package identity

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the bearer token failed validation.
var ErrInvalidToken = errors.New("identity: invalid token")

// Claims are the token claims the engine cares about. The token protocol
// itself belongs to the surrounding web layer.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ActorFromToken verifies an HS256 bearer token and maps its subject and
// email claims onto an Actor. IP address and user agent come from the
// request, not the token, and stay empty here.
func ActorFromToken(token, secret, issuer string) (Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" || secret == "" {
		return Actor{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Actor{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Actor{}, ErrInvalidToken
	}
	if issuer != "" && claims.Issuer != issuer {
		return Actor{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Actor{}, ErrInvalidToken
	}
	return Actor{ID: claims.Subject, Email: claims.Email}, nil
}
