package jwt

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
)

const issuer = "supportdesk"

// Claims represents admin API token claims
type Claims struct {
	AdminId int64 `json:"admin_id"`
	jwt.RegisteredClaims
}

// GenerateToken generates a new admin token
func GenerateToken(adminId int64, secret string, expireHours int) (string, error) {
	now := time.Now()
	claims := Claims{
		AdminId: adminId,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(adminId, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken parses and validates an admin token
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))

	if err != nil {
		return nil, errcode.ErrTokenInvalid.Wrap(err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errcode.ErrTokenInvalid
}
