package dispatch

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const callbackTokenTTL = 24 * time.Hour

// SignCallbackToken mints the bearer token embedded in a callback URL. The
// token is scoped to one activity so a leaked URL cannot complete others.
func SignCallbackToken(secret, activityID string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   activityID,
		Issuer:    "ai-activity-tracker",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(callbackTokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyCallbackToken checks a token and that it is scoped to activityID.
func VerifyCallbackToken(secret, token, activityID string) error {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("invalid callback token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject != activityID {
		return fmt.Errorf("callback token not valid for activity %s", activityID)
	}
	return nil
}
