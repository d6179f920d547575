package signlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
)

const dateLayout = "2006-01-02"

// Store is the per-user check-in activity log. Only the newest retention
// entries per user are kept.
type Store struct {
	db        *sql.DB
	retention int
	loc       *time.Location
}

func NewStore(dbPath string, retention int, loc *time.Location) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if retention <= 0 {
		retention = 30
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &Store{db: db, retention: retention, loc: loc}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) init() error {
	createStmt := `CREATE TABLE IF NOT EXISTS checkin_logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        account TEXT NOT NULL,
        result TEXT NOT NULL,
        source TEXT NOT NULL,
        log_date TEXT NOT NULL,
        logged_at INTEGER NOT NULL
    )`
	if _, err := s.db.Exec(createStmt); err != nil {
		return err
	}
	if err := s.ensureColumns(); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_checkin_logs_user ON checkin_logs(user_id, id)`)
	return err
}

func (s *Store) ensureColumns() error {
	columns := map[string]bool{}
	rows, err := s.db.Query(`PRAGMA table_info(checkin_logs)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		columns[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	alterStatements := []string{}
	addColumn := func(name, definition string) {
		if !columns[name] {
			alterStatements = append(alterStatements, definition)
		}
	}

	addColumn("actor", `ALTER TABLE checkin_logs ADD COLUMN actor TEXT NOT NULL DEFAULT 'system'`)
	addColumn("cookie_refreshed", `ALTER TABLE checkin_logs ADD COLUMN cookie_refreshed INTEGER NOT NULL DEFAULT 0`)
	addColumn("run_id", `ALTER TABLE checkin_logs ADD COLUMN run_id TEXT`)

	for _, stmt := range alterStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records one entry and trims the user's history to the retention
// limit.
func (s *Store) Append(e model.LogEntry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	uid := normalizeID(e.UserID)
	refreshed := 0
	if e.CookieRefreshed {
		refreshed = 1
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO checkin_logs(user_id, account, result, source, actor, cookie_refreshed, run_id, log_date, logged_at)
    VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uid, e.Name, e.Result, string(e.Source), string(e.Actor), refreshed, e.RunID,
		e.Time.In(s.loc).Format(dateLayout), e.Time.Unix()); err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM checkin_logs
    WHERE user_id = ? AND id NOT IN (
        SELECT id FROM checkin_logs WHERE user_id = ? ORDER BY id DESC LIMIT ?
    )`, uid, uid, s.retention); err != nil {
		return fmt.Errorf("failed to trim log entries: %w", err)
	}
	return tx.Commit()
}

// Recent returns up to limit of the user's newest entries, oldest first.
func (s *Store) Recent(userID string, limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		limit = s.retention
	}
	entries, err := s.query(`SELECT id, user_id, account, result, source, actor, cookie_refreshed, run_id, logged_at
    FROM checkin_logs WHERE user_id = ? ORDER BY id DESC LIMIT ?`, normalizeID(userID), limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// ForDay returns every user's entries logged on day's calendar date in the
// store's timezone, ordered by user then time.
func (s *Store) ForDay(day time.Time) ([]model.LogEntry, error) {
	return s.query(`SELECT id, user_id, account, result, source, actor, cookie_refreshed, run_id, logged_at
    FROM checkin_logs WHERE log_date = ? ORDER BY user_id, id`, day.In(s.loc).Format(dateLayout))
}

func (s *Store) DeleteUser(userID string) error {
	_, err := s.db.Exec(`DELETE FROM checkin_logs WHERE user_id = ?`, normalizeID(userID))
	return err
}

func (s *Store) query(stmt string, args ...interface{}) ([]model.LogEntry, error) {
	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var (
			e         model.LogEntry
			source    string
			actor     string
			refreshed int
			runID     sql.NullString
			loggedAt  int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &e.Result, &source, &actor, &refreshed, &runID, &loggedAt); err != nil {
			return nil, err
		}
		e.Source = model.Source(source)
		e.Actor = model.Actor(actor)
		e.CookieRefreshed = refreshed == 1
		if runID.Valid {
			e.RunID = runID.String
		}
		e.Time = time.Unix(loggedAt, 0).In(s.loc)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}
