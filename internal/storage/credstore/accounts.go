package credstore

import (
	"fmt"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
)

// User returns a copy of one user's record.
func (s *Store) User(uid string) (model.User, bool, error) {
	data, err := s.Load()
	if err != nil {
		return model.User{}, false, err
	}
	u, ok := data.User(uid)
	if !ok {
		return model.User{}, false, nil
	}
	return *u, true, nil
}

// AddAccount stores or replaces an account, creating the user with defaults
// when needed. first reports whether the user had no accounts before.
func (s *Store) AddAccount(uid, tgUsername string, acc model.Account) (first bool, err error) {
	err = s.Update(func(d *model.Data) error {
		u, ok := d.User(uid)
		if !ok {
			u = &model.User{
				Accounts:   map[string]model.Account{},
				SignHour:   model.DefaultSignHour,
				SignMinute: model.DefaultSignMinute,
			}
			d.Users[uid] = u
		}
		first = !u.HasAccounts()
		u.TgUsername = tgUsername
		u.Accounts[acc.Username] = acc
		return nil
	})
	return first, err
}

// DeleteAccount removes one account. A user left without accounts is
// removed entirely and userRemoved is set.
func (s *Store) DeleteAccount(uid, name string) (userRemoved bool, err error) {
	err = s.Update(func(d *model.Data) error {
		u, ok := d.User(uid)
		if !ok {
			return ErrUserNotFound
		}
		if _, ok := u.Accounts[name]; !ok {
			return ErrAccountNotFound
		}
		delete(u.Accounts, name)
		if len(u.Accounts) == 0 {
			delete(d.Users, uid)
			userRemoved = true
		}
		return nil
	})
	return userRemoved, err
}

// DeleteAccountAnywhere removes the first account with this name, scanning
// users in id order.
func (s *Store) DeleteAccountAnywhere(name string) (uid string, userRemoved bool, err error) {
	err = s.Update(func(d *model.Data) error {
		for _, id := range d.UserIDs() {
			u := d.Users[id]
			if _, ok := u.Accounts[name]; !ok {
				continue
			}
			delete(u.Accounts, name)
			uid = id
			if len(u.Accounts) == 0 {
				delete(d.Users, id)
				userRemoved = true
			}
			return nil
		}
		return ErrAccountNotFound
	})
	return uid, userRemoved, err
}

// DeleteUser removes a user and returns the names of the removed accounts.
func (s *Store) DeleteUser(uid string) (names []string, err error) {
	err = s.Update(func(d *model.Data) error {
		u, ok := d.User(uid)
		if !ok {
			return ErrUserNotFound
		}
		names = u.AccountNames()
		delete(d.Users, uid)
		return nil
	})
	return names, err
}

func (s *Store) SetCookie(uid, name, cookie string) error {
	return s.Update(func(d *model.Data) error {
		u, ok := d.User(uid)
		if !ok {
			return ErrUserNotFound
		}
		acc, ok := u.Accounts[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, name)
		}
		acc.Cookie = cookie
		u.Accounts[name] = acc
		return nil
	})
}

func (s *Store) SetMode(uid string, mode bool) error {
	return s.Update(func(d *model.Data) error {
		u, ok := d.User(uid)
		if !ok {
			return ErrUserNotFound
		}
		u.Mode = mode
		return nil
	})
}

func (s *Store) SetSchedule(uid string, hour, minute int) error {
	return s.Update(func(d *model.Data) error {
		u, ok := d.User(uid)
		if !ok {
			return ErrUserNotFound
		}
		u.SignHour = hour
		u.SignMinute = minute
		return nil
	})
}
