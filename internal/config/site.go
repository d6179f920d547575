package config

import "strings"

// Site describes the forum endpoints the bot talks to.
type Site struct {
	Name             string
	BaseURL          string
	LoginPage        string
	SignInAPI        string
	AttendanceAPI    string
	CreditAPI        string
	BoardPage        string
	ProfilePage      string
	TurnstileSiteKey string
	ImportantCookies []string
}

var NodeSeek = Site{
	Name:             "NodeSeek",
	BaseURL:          "https://www.nodeseek.com",
	LoginPage:        "https://www.nodeseek.com/signIn.html",
	SignInAPI:        "https://www.nodeseek.com/api/account/signIn",
	AttendanceAPI:    "https://www.nodeseek.com/api/attendance",
	CreditAPI:        "https://www.nodeseek.com/api/account/credit",
	BoardPage:        "https://www.nodeseek.com/board",
	ProfilePage:      "https://www.nodeseek.com/user/profile",
	TurnstileSiteKey: "0x4AAAAAAAaNy7leGjewpVyR",
	ImportantCookies: []string{"session", "smac", "cf_clearance", "fog"},
}

// WithBaseURL rebases every endpoint onto base. Used to point the client at a
// mirror or a local test server.
func (s Site) WithBaseURL(base string) Site {
	if base == "" || base == s.BaseURL {
		return s
	}
	old := s.BaseURL
	swap := func(v string) string {
		if rest, ok := strings.CutPrefix(v, old); ok {
			return base + rest
		}
		return v
	}
	s.LoginPage = swap(s.LoginPage)
	s.SignInAPI = swap(s.SignInAPI)
	s.AttendanceAPI = swap(s.AttendanceAPI)
	s.CreditAPI = swap(s.CreditAPI)
	s.BoardPage = swap(s.BoardPage)
	s.ProfilePage = swap(s.ProfilePage)
	s.BaseURL = base
	return s
}
