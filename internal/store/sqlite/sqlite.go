package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chainhabit/chainhabit/internal/auth"
	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/store"
)

// Open opens (or creates) a SQLite database at the given path with WAL
// journal mode, verifies connectivity and ensures the schema exists.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            user_id            TEXT PRIMARY KEY,
            username           TEXT NOT NULL UNIQUE,
            email              TEXT NOT NULL UNIQUE,
            password_hash      TEXT NOT NULL,
            role               TEXT NOT NULL DEFAULT 'user',
            is_active          INTEGER NOT NULL DEFAULT 1,
            reset_otp          TEXT,
            reset_otp_expires  TIMESTAMP,
            last_reminder_sent TIMESTAMP,
            creation_time      TIMESTAMP NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS habits (
            habit_id        TEXT PRIMARY KEY,
            user_id         TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            title           TEXT NOT NULL,
            target          INTEGER NOT NULL DEFAULT 10,
            completed_dates TEXT NOT NULL DEFAULT '[]',
            streak          INTEGER NOT NULL DEFAULT 0,
            is_archived     INTEGER NOT NULL DEFAULT 0,
            creation_time   TIMESTAMP NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS activity_logs (
            log_id           TEXT PRIMARY KEY,
            user_id          TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            type             TEXT NOT NULL,
            details          TEXT NOT NULL DEFAULT '',
            duration_minutes INTEGER,
            metadata         TEXT,
            creation_time    TIMESTAMP NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS access_tokens (
            token_hash    TEXT PRIMARY KEY,
            user_id       TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            expires_at    TIMESTAMP NOT NULL,
            creation_time TIMESTAMP NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_habits_user ON habits(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_user_time ON activity_logs(user_id, creation_time DESC)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// NewWithDB constructs a SQLite store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &liteStore{db: db} }

type liteStore struct{ db *sql.DB }

func (s *liteStore) Users() store.Users       { return &users{db: s.db} }
func (s *liteStore) Habits() store.Habits     { return &habits{db: s.db} }
func (s *liteStore) Activity() store.Activity { return &activity{db: s.db} }
func (s *liteStore) Tokens() store.Tokens     { return &tokens{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *liteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

// --- Users ---

type users struct{ db *sql.DB }

const userColumns = `user_id, username, email, password_hash, role, is_active,
    reset_otp, reset_otp_expires, last_reminder_sent, creation_time`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	var out model.User
	if err := row.Scan(&out.UserID, &out.Username, &out.Email, &out.PasswordHash,
		&out.Role, &out.IsActive, &out.ResetOTP, &out.ResetOTPExpires,
		&out.LastReminderSent, &out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	id := m.UserID
	if id == "" {
		id = uuid.New().String()
	}
	role := m.Role
	if role == "" {
		role = model.RoleUser
	}
	now := time.Now().UTC()
	_, err := u.db.ExecContext(ctx, `
        INSERT INTO users (user_id, username, email, password_hash, role, is_active, creation_time)
        VALUES (?,?,?,?,?,1,?)
    `, id, m.Username, m.Email, m.PasswordHash, role, now)
	if err != nil {
		return nil, err
	}
	out := *m
	out.UserID = id
	out.Role = role
	out.IsActive = true
	out.CreationTime = now
	return &out, nil
}

func (u *users) GetByID(ctx context.Context, userID string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=?`, userID)
	out, err := scanUser(row)
	return out, mapNoRows(err)
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, email)
	out, err := scanUser(row)
	return out, mapNoRows(err)
}

func (u *users) List(ctx context.Context) ([]*model.User, error) {
	return u.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY creation_time`)
}

func (u *users) FindActive(ctx context.Context) ([]*model.User, error) {
	return u.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE is_active=1 ORDER BY creation_time`)
}

func (u *users) queryUsers(ctx context.Context, query string) ([]*model.User, error) {
	rows, err := u.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.User
	for rows.Next() {
		one, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, one)
	}
	return res, rows.Err()
}

func (u *users) Update(ctx context.Context, m *model.User) (*model.User, error) {
	res, err := u.db.ExecContext(ctx, `
        UPDATE users SET username=?, email=?, password_hash=?, role=?,
            is_active=?, reset_otp=?, reset_otp_expires=?, last_reminder_sent=?
        WHERE user_id=?
    `, m.Username, m.Email, m.PasswordHash, m.Role,
		m.IsActive, m.ResetOTP, m.ResetOTPExpires, m.LastReminderSent, m.UserID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, model.ErrNotFound
	}
	return m, nil
}

func (u *users) Delete(ctx context.Context, userID string) error {
	res, err := u.db.ExecContext(ctx, `DELETE FROM users WHERE user_id=?`, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Habits ---

type habits struct{ db *sql.DB }

const habitColumns = `habit_id, user_id, title, target, completed_dates, streak, is_archived, creation_time`

func scanHabit(row interface{ Scan(...interface{}) error }) (*model.Habit, error) {
	var out model.Habit
	var rawDates string
	if err := row.Scan(&out.HabitID, &out.UserID, &out.Title, &out.Target,
		&rawDates, &out.Streak, &out.IsArchived, &out.CreationTime); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rawDates), &out.CompletedDates); err != nil {
		return nil, fmt.Errorf("decode completed_dates: %w", err)
	}
	return &out, nil
}

func (h *habits) Create(ctx context.Context, m *model.Habit) (*model.Habit, error) {
	id := m.HabitID
	if id == "" {
		id = uuid.New().String()
	}
	target := m.Target
	if target == 0 {
		target = 10
	}
	dates, err := json.Marshal(emptyIfNil(m.CompletedDates))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = h.db.ExecContext(ctx, `
        INSERT INTO habits (habit_id, user_id, title, target, completed_dates, streak, is_archived, creation_time)
        VALUES (?,?,?,?,?,?,?,?)
    `, id, m.UserID, m.Title, target, string(dates), len(m.CompletedDates), m.IsArchived, now)
	if err != nil {
		return nil, err
	}
	out := *m
	out.HabitID = id
	out.Target = target
	out.Streak = len(m.CompletedDates)
	out.CreationTime = now
	return &out, nil
}

func (h *habits) GetByID(ctx context.Context, userID, habitID string) (*model.Habit, error) {
	row := h.db.QueryRowContext(ctx, `
        SELECT `+habitColumns+` FROM habits WHERE user_id=? AND habit_id=?
    `, userID, habitID)
	out, err := scanHabit(row)
	return out, mapNoRows(err)
}

func (h *habits) ListByUser(ctx context.Context, userID string, includeArchived bool) ([]*model.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE user_id=?`
	if !includeArchived {
		query += ` AND is_archived=0`
	}
	query += ` ORDER BY creation_time`
	rows, err := h.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.Habit
	for rows.Next() {
		one, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, one)
	}
	return res, rows.Err()
}

func (h *habits) Update(ctx context.Context, m *model.Habit) (*model.Habit, error) {
	dates, err := json.Marshal(emptyIfNil(m.CompletedDates))
	if err != nil {
		return nil, err
	}
	res, err := h.db.ExecContext(ctx, `
        UPDATE habits SET title=?, target=?, completed_dates=?, streak=?, is_archived=?
        WHERE user_id=? AND habit_id=?
    `, m.Title, m.Target, string(dates), len(m.CompletedDates), m.IsArchived, m.UserID, m.HabitID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, model.ErrNotFound
	}
	out := *m
	out.Streak = len(m.CompletedDates)
	return &out, nil
}

func (h *habits) Delete(ctx context.Context, userID, habitID string) error {
	res, err := h.db.ExecContext(ctx, `DELETE FROM habits WHERE user_id=? AND habit_id=?`, userID, habitID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func emptyIfNil(dates []string) []string {
	if dates == nil {
		return []string{}
	}
	return dates
}

// --- Activity ---

type activity struct{ db *sql.DB }

func (a *activity) Create(ctx context.Context, e *model.ActivityLog) (*model.ActivityLog, error) {
	id := e.LogID
	if id == "" {
		id = uuid.New().String()
	}
	var meta interface{}
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, err
		}
		meta = string(b)
	}
	now := time.Now().UTC()
	_, err := a.db.ExecContext(ctx, `
        INSERT INTO activity_logs (log_id, user_id, type, details, duration_minutes, metadata, creation_time)
        VALUES (?,?,?,?,?,?,?)
    `, id, e.UserID, e.Type, e.Details, e.DurationMinutes, meta, now)
	if err != nil {
		return nil, err
	}
	out := *e
	out.LogID = id
	out.CreationTime = now
	return &out, nil
}

func (a *activity) ListByUser(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
	// log_id as secondary sort keeps ordering stable for rows created within
	// the same timestamp granularity.
	query := `
        SELECT log_id, user_id, type, details, duration_minutes, metadata, creation_time
        FROM activity_logs WHERE user_id=? ORDER BY creation_time DESC, log_id DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.ActivityLog
	for rows.Next() {
		var e model.ActivityLog
		var meta *string
		if err := rows.Scan(&e.LogID, &e.UserID, &e.Type, &e.Details,
			&e.DurationMinutes, &meta, &e.CreationTime); err != nil {
			return nil, err
		}
		if meta != nil && *meta != "" {
			var d model.ActivityDevice
			if err := json.Unmarshal([]byte(*meta), &d); err == nil {
				e.Metadata = &d
			}
		}
		res = append(res, &e)
	}
	return res, rows.Err()
}

func (a *activity) SumDurationByTypes(ctx context.Context, userID string, types ...string) (int, error) {
	if len(types) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(types)), ",")
	args := []interface{}{userID}
	for _, t := range types {
		args = append(args, t)
	}
	query := `
        SELECT COALESCE(SUM(duration_minutes), 0)
        FROM activity_logs WHERE user_id=? AND type IN (` + placeholders + `)`
	var total int
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// --- Tokens ---

type tokens struct{ db *sql.DB }

func (t *tokens) Create(ctx context.Context, userID string, expiresAt time.Time) (string, error) {
	plain, err := auth.NewPlainToken()
	if err != nil {
		return "", err
	}
	_, err = t.db.ExecContext(ctx, `
        INSERT INTO access_tokens (token_hash, user_id, expires_at, creation_time)
        VALUES (?,?,?,?)
    `, auth.HashToken(plain), userID, expiresAt.UTC(), time.Now().UTC())
	if err != nil {
		return "", err
	}
	return plain, nil
}

func (t *tokens) Validate(ctx context.Context, token string) (*model.User, error) {
	row := t.db.QueryRowContext(ctx, `
        SELECT u.user_id, u.username, u.email, u.password_hash, u.role, u.is_active,
            u.reset_otp, u.reset_otp_expires, u.last_reminder_sent, u.creation_time
        FROM access_tokens a
        JOIN users u ON u.user_id = a.user_id
        WHERE a.token_hash=? AND a.expires_at > ?
    `, auth.HashToken(token), time.Now().UTC())
	out, err := scanUser(row)
	return out, mapNoRows(err)
}

func (t *tokens) DeleteForUser(ctx context.Context, userID string) error {
	_, err := t.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE user_id=?`, userID)
	return err
}
