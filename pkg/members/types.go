package members

import "time"

// Member represents a registered forum member
type Member struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose hash
	Active       bool       `json:"active"`
	Admin        bool       `json:"admin"`
	WarningCount int        `json:"warning_count"`
	Banned       bool       `json:"banned"`
	BanReason    string     `json:"ban_reason,omitempty"`
	BanExpiresAt *time.Time `json:"ban_expires_at,omitempty"`
	Roles        []string   `json:"roles"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// BanActive reports whether the member is banned and the ban has not
// yet expired at the given instant. A ban without an expiry is permanent.
func (m *Member) BanActive(now time.Time) bool {
	if !m.Banned {
		return false
	}
	if m.BanExpiresAt == nil {
		return true
	}
	return now.Before(*m.BanExpiresAt)
}
