package testutil

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TestToken returns a signed JWT suitable for test mode authentication.
func TestToken(userID string) (string, error) {
	secret := os.Getenv("TEST_JWT_SECRET")
	if secret == "" {
		return "", errors.New("TEST_JWT_SECRET must be set")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	return token.SignedString([]byte(secret))
}
