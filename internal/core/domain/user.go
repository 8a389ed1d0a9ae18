package domain

import "time"

type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	FullName           string     `json:"full_name"`
	PrivacyConsent     bool       `json:"privacy_consent"`
	PrivacyConsentDate *time.Time `json:"privacy_consent_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Session is the explicit authenticated context passed to every operation
// that needs the current user; there is no ambient global.
type Session struct {
	User User
}

// RequireConsent gates record-touching operations on the privacy consent flag.
func (s Session) RequireConsent() error {
	if !s.User.PrivacyConsent {
		return ErrConsentRequired
	}
	return nil
}
