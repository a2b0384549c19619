package backend

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/common"
)

// accessClaims are the access-token claims the client reads. Signatures
// are the backend's business; the client never verifies them.
type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func parseAccessToken(token string) (*accessClaims, error) {
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	return &claims, nil
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	ExpiresAt    int64       `json:"expires_at"`
	User         models.User `json:"user"`
}

// session builds a Session, filling expiry and identity from the token
// claims when the response leaves them out.
func (t tokenResponse) session(now time.Time) (*models.Session, error) {
	if t.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", common.ErrInvalidToken)
	}
	s := &models.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		User:         t.User,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}

	if s.ExpiresAt.IsZero() || s.User.ID == "" || s.User.Email == "" {
		claims, err := parseAccessToken(t.AccessToken)
		if err != nil {
			return nil, err
		}
		if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
			s.ExpiresAt = claims.ExpiresAt.Time.UTC()
		}
		if s.User.ID == "" {
			s.User.ID = claims.Subject
		}
		if s.User.Email == "" {
			s.User.Email = claims.Email
		}
	}
	return s, nil
}
