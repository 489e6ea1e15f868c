package uploader

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSessionProvider derives the session from a bearer token issued by the
// server. The signature is checked by the server, not here; the claims only
// supply the owner id and expiry.
type TokenSessionProvider struct {
	Token string
	Now   func() time.Time
}

func (p TokenSessionProvider) Session(_ context.Context) (*AuthSession, error) {
	if p.Token == "" {
		return nil, ErrNoSession
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(p.Token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSession, err)
	}

	userID, _ := claims.GetSubject()
	if userID == "" {
		userID, _ = claims["user_id"].(string)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrNoSession)
	}

	session := &AuthSession{UserID: userID, AccessToken: p.Token}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		if !exp.After(now()) {
			return nil, fmt.Errorf("%w: token expired at %s", ErrNoSession, exp.Format(time.RFC3339))
		}
		session.ExpiresAt = exp.Time
	}
	return session, nil
}
