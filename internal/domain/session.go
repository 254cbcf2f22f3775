package domain

// User is the identity supplied by the identity provider. This service only reads it.
type User struct {
	ID    UserID
	Email string
}

// Session is the authenticated identity resolved for a single request.
type Session struct {
	UserID UserID
	Email  string
}

// DisplayName is the value recorded in activity payloads for this session's user.
func (s Session) DisplayName() string {
	if s.Email != "" {
		return s.Email
	}
	return "A traveler"
}
