package credstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrAccountNotFound = errors.New("account not found")
)

var userFields = []string{"accounts", "mode", "tgUsername", "sign_hour", "sign_minute"}

// Store keeps all users and their forum credentials in one JSON document.
// Every mutation is a full load-modify-save under the store mutex; writes
// go to a temp file that is renamed over the target.
type Store struct {
	path string
	mu   sync.Mutex
	log  *logger.ClassLogger
}

func New(path string) *Store {
	s := &Store{path: path}
	s.log = logger.NewLogger(s, nil)
	return s
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load() (*model.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) Save(data *model.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(data)
}

// Update loads the document, applies fn and saves the result. Nothing is
// written when fn returns an error.
func (s *Store) Update(fn func(*model.Data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return s.save(data)
}

func (s *Store) load() (*model.Data, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.NewData(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	data, changed, err := decode(raw)
	if err != nil {
		s.log.Warn(fmt.Sprintf("%s is corrupt (%v), resetting to empty", s.path, err))
		data = model.NewData()
		if err := s.save(data); err != nil {
			return nil, err
		}
		return data, nil
	}
	if changed {
		s.log.Log(fmt.Sprintf("Filled missing user fields in %s", s.path))
		if err := s.save(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// decode parses the document and fills defaults for users missing any field.
// Users left without accounts are dropped.
func decode(raw []byte) (*model.Data, bool, error) {
	var shape struct {
		Users map[string]map[string]json.RawMessage `json:"users"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, false, err
	}
	data := model.NewData()
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, false, err
	}

	changed := shape.Users == nil
	if data.Users == nil {
		data.Users = map[string]*model.User{}
	}
	for uid, fields := range shape.Users {
		for _, key := range userFields {
			if v, ok := fields[key]; !ok || string(v) == "null" {
				changed = true
			}
		}
		u := data.Users[uid]
		if u == nil {
			u = &model.User{SignHour: model.DefaultSignHour, SignMinute: model.DefaultSignMinute}
			data.Users[uid] = u
		}
		if len(u.Accounts) == 0 {
			delete(data.Users, uid)
			changed = true
		}
	}
	return data, changed, nil
}

func (s *Store) save(data *model.Data) error {
	if data == nil {
		data = model.NewData()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".data-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
