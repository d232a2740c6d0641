package authstate

import "time"

// Session is the authenticated user's identity and credentials. It is treated
// as an opaque, atomically replaced value: exactly one session exists at a
// time and it is never partially written.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Validate reports whether the session carries the minimum fields required to
// act on behalf of a user.
func (s Session) Validate() error {
	if s.UserID == "" {
		return ErrMissingUserID
	}
	if s.AccessToken == "" {
		return ErrMissingAccessToken
	}
	return nil
}

// IsExpired reports whether the access token has passed its expiry. An
// expired session is still a session: the refresh token may renew it, so
// expiry does not by itself sign the user out.
func (s Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Equal reports whether two sessions are the same value. Used to suppress
// duplicate notifications under at-least-once delivery.
func (s Session) Equal(other Session) bool {
	return s.UserID == other.UserID &&
		s.Email == other.Email &&
		s.AccessToken == other.AccessToken &&
		s.RefreshToken == other.RefreshToken &&
		s.ExpiresAt.Equal(other.ExpiresAt)
}
