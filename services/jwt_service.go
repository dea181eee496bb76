package services

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the token payload minted by the account frontend.
// The control API only ever validates tokens; issuance lives with the
// signup service.
type SessionClaims struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secret []byte
}

func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// ValidateToken parses and verifies a bearer token. Only HS256 is
// accepted; a token with any other alg (including "none") is rejected
// before the signature is checked.
func (s *JWTService) ValidateToken(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
