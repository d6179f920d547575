package model

// Session identifies one unit of work for logging: a chat user, optionally
// narrowed to one of their accounts, inside a single run.
type Session struct {
	UserID  string
	Account string
	RunID   string
	Parent  *Session
}

func (s *Session) LoggingSession() *Session {
	if s == nil {
		return nil
	}
	if s.Parent != nil && s.Account == "" {
		return s.Parent.LoggingSession()
	}
	return s
}

// ForAccount derives a child session scoped to one account.
func (s *Session) ForAccount(name string) *Session {
	if s == nil {
		return &Session{Account: name}
	}
	return &Session{UserID: s.UserID, Account: name, RunID: s.RunID, Parent: s}
}

func (s *Session) Label() string {
	if s == nil {
		return ""
	}
	label := "user " + s.UserID
	if s.Account != "" {
		label += "/" + s.Account
	}
	if s.RunID != "" {
		label += " #" + shortID(s.RunID)
	}
	return label
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
