package model

import "sort"

const (
	DefaultSignHour   = 0
	DefaultSignMinute = 0
)

type Account struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Cookie   string `json:"cookie"`
}

// User is one chat identity with its forum accounts. Mode true selects the
// random-reward attendance variant.
type User struct {
	Accounts   map[string]Account `json:"accounts"`
	Mode       bool               `json:"mode"`
	TgUsername string             `json:"tgUsername"`
	SignHour   int                `json:"sign_hour"`
	SignMinute int                `json:"sign_minute"`
}

func (u *User) HasAccounts() bool {
	return u != nil && len(u.Accounts) > 0
}

// AccountNames returns account names in a stable order.
func (u *User) AccountNames() []string {
	if u == nil {
		return nil
	}
	names := make([]string, 0, len(u.Accounts))
	for name := range u.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DisplayName prefers the Telegram username and falls back to the chat id.
func (u *User) DisplayName(uid string) string {
	if u == nil || u.TgUsername == "" {
		return uid
	}
	return u.TgUsername
}

type Data struct {
	Users map[string]*User `json:"users"`
}

func NewData() *Data {
	return &Data{Users: map[string]*User{}}
}

// UserIDs returns user ids in a stable order.
func (d *Data) UserIDs() []string {
	ids := make([]string, 0, len(d.Users))
	for id := range d.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Data) User(uid string) (*User, bool) {
	if d == nil || d.Users == nil {
		return nil, false
	}
	u, ok := d.Users[uid]
	return u, ok && u != nil
}
