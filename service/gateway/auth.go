package gateway

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"campuschat/tools/errs"
)

// Claims is the identity claim carried by the auth credential. The chat
// gateway only trusts the token, never the identity fields of the auth
// frame on their own.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// VerifyToken parses and validates a signed credential.
func VerifyToken(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.ErrAuth.WrapMsg("unexpected signing method", "alg", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, errs.ErrAuth.WrapMsg(err.Error())
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, errs.ErrAuth.WrapMsg("invalid claims")
	}
	return claims, nil
}

// MintToken issues a credential. The platform's auth service does this in
// production; tests and the dev setup use it directly.
func MintToken(userID, username string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errs.Wrap(err)
	}
	return signed, nil
}
