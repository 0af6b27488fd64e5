package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const issuer = "scriptum"

type Claims struct {
	Client string `json:"client"`
	jwtlib.RegisteredClaims
}

// GenerateToken issues an API token for a named client. A zero ttl yields a token without expiry.
func GenerateToken(client string, secret []byte, ttl time.Duration) (string, error) {
	if client == "" {
		return "", errors.New("client is required")
	}
	now := time.Now()
	claims := Claims{
		Client: client,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:   issuer,
			Subject:  client,
			IssuedAt: jwtlib.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwtlib.NewNumericDate(now.Add(ttl))
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwtlib.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
