package resource

// SessionStatus is the backend-reported state of a session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionEnded     SessionStatus = "ended"
	SessionExpired   SessionStatus = "expired"
	SessionRemoved   SessionStatus = "removed"
	SessionAbandoned SessionStatus = "abandoned"
	SessionRevoked   SessionStatus = "revoked"
)

// Session is an authenticated context for a signed-in user. Sessions are
// replaced wholesale on every Client refresh.
type Session struct {
	ID              string        `json:"id"`
	Status          SessionStatus `json:"status"`
	UserID          string        `json:"user_id,omitempty"`
	User            *User         `json:"user,omitempty"`
	LastActiveToken *Token        `json:"last_active_token,omitempty"`
	LastActiveAt    int64         `json:"last_active_at,omitempty"`
	ExpireAt        int64         `json:"expire_at,omitempty"`
	AbandonAt       int64         `json:"abandon_at,omitempty"`
	CreatedAt       int64         `json:"created_at,omitempty"`
	UpdatedAt       int64         `json:"updated_at,omitempty"`
}

// Token is a session JWT as returned by the tokens endpoint.
type Token struct {
	JWT string `json:"jwt"`
}

// SubjectID returns the user id from the embedded user, falling back to
// the flat user_id field.
func (s *Session) SubjectID() string {
	if s == nil {
		return ""
	}
	if s.User != nil && s.User.ID != "" {
		return s.User.ID
	}
	return s.UserID
}

func (s Session) clone() Session {
	out := s
	if s.User != nil {
		u := s.User.clone()
		out.User = &u
	}
	if s.LastActiveToken != nil {
		t := *s.LastActiveToken
		out.LastActiveToken = &t
	}
	return out
}
