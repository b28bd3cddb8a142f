package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chainhabit/chainhabit/internal/auth"
	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver, verifies
// connectivity and ensures the schema exists.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
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
            is_active          BOOLEAN NOT NULL DEFAULT TRUE,
            reset_otp          TEXT,
            reset_otp_expires  TIMESTAMPTZ,
            last_reminder_sent TIMESTAMPTZ,
            creation_time      TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS habits (
            habit_id        TEXT PRIMARY KEY,
            user_id         TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            title           TEXT NOT NULL,
            target          INTEGER NOT NULL DEFAULT 10,
            completed_dates JSONB NOT NULL DEFAULT '[]',
            streak          INTEGER NOT NULL DEFAULT 0,
            is_archived     BOOLEAN NOT NULL DEFAULT FALSE,
            creation_time   TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS activity_logs (
            log_id           TEXT PRIMARY KEY,
            user_id          TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            type             TEXT NOT NULL,
            details          TEXT NOT NULL DEFAULT '',
            duration_minutes INTEGER,
            metadata         JSONB,
            creation_time    TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS access_tokens (
            token_hash    TEXT PRIMARY KEY,
            user_id       TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
            expires_at    TIMESTAMPTZ NOT NULL,
            creation_time TIMESTAMPTZ NOT NULL DEFAULT now()
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

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users       { return &users{db: s.db} }
func (s *pgStore) Habits() store.Habits     { return &habits{db: s.db} }
func (s *pgStore) Activity() store.Activity { return &activity{db: s.db} }
func (s *pgStore) Tokens() store.Tokens     { return &tokens{db: s.db} }

// HealthPing implements health.HealthPinger for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
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
	var created time.Time
	row := u.db.QueryRowContext(ctx, `
        INSERT INTO users (user_id, username, email, password_hash, role, is_active)
        VALUES ($1,$2,$3,$4,$5,TRUE)
        RETURNING creation_time
    `, id, m.Username, m.Email, m.PasswordHash, role)
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out := *m
	out.UserID = id
	out.Role = role
	out.IsActive = true
	out.CreationTime = created
	return &out, nil
}

func (u *users) GetByID(ctx context.Context, userID string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=$1`, userID)
	out, err := scanUser(row)
	return out, mapNoRows(err)
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	out, err := scanUser(row)
	return out, mapNoRows(err)
}

func (u *users) List(ctx context.Context) ([]*model.User, error) {
	return u.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY creation_time`)
}

func (u *users) FindActive(ctx context.Context) ([]*model.User, error) {
	return u.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE is_active ORDER BY creation_time`)
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
        UPDATE users SET username=$2, email=$3, password_hash=$4, role=$5,
            is_active=$6, reset_otp=$7, reset_otp_expires=$8, last_reminder_sent=$9
        WHERE user_id=$1
    `, m.UserID, m.Username, m.Email, m.PasswordHash, m.Role,
		m.IsActive, m.ResetOTP, m.ResetOTPExpires, m.LastReminderSent)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, model.ErrNotFound
	}
	return m, nil
}

func (u *users) Delete(ctx context.Context, userID string) error {
	res, err := u.db.ExecContext(ctx, `DELETE FROM users WHERE user_id=$1`, userID)
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
	var created time.Time
	row := h.db.QueryRowContext(ctx, `
        INSERT INTO habits (habit_id, user_id, title, target, completed_dates, streak, is_archived)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING creation_time
    `, id, m.UserID, m.Title, target, dates, len(m.CompletedDates), m.IsArchived)
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out := *m
	out.HabitID = id
	out.Target = target
	out.Streak = len(m.CompletedDates)
	out.CreationTime = created
	return &out, nil
}

func scanHabit(row interface{ Scan(...interface{}) error }) (*model.Habit, error) {
	var out model.Habit
	var rawDates []byte
	if err := row.Scan(&out.HabitID, &out.UserID, &out.Title, &out.Target,
		&rawDates, &out.Streak, &out.IsArchived, &out.CreationTime); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawDates, &out.CompletedDates); err != nil {
		return nil, fmt.Errorf("decode completed_dates: %w", err)
	}
	return &out, nil
}

const habitColumns = `habit_id, user_id, title, target, completed_dates, streak, is_archived, creation_time`

func (h *habits) GetByID(ctx context.Context, userID, habitID string) (*model.Habit, error) {
	row := h.db.QueryRowContext(ctx, `
        SELECT `+habitColumns+` FROM habits WHERE user_id=$1 AND habit_id=$2
    `, userID, habitID)
	out, err := scanHabit(row)
	return out, mapNoRows(err)
}

func (h *habits) ListByUser(ctx context.Context, userID string, includeArchived bool) ([]*model.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE user_id=$1`
	if !includeArchived {
		query += ` AND NOT is_archived`
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
        UPDATE habits SET title=$3, target=$4, completed_dates=$5, streak=$6, is_archived=$7
        WHERE user_id=$1 AND habit_id=$2
    `, m.UserID, m.HabitID, m.Title, m.Target, dates, len(m.CompletedDates), m.IsArchived)
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
	res, err := h.db.ExecContext(ctx, `DELETE FROM habits WHERE user_id=$1 AND habit_id=$2`, userID, habitID)
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
		meta = b
	}
	var created time.Time
	row := a.db.QueryRowContext(ctx, `
        INSERT INTO activity_logs (log_id, user_id, type, details, duration_minutes, metadata)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING creation_time
    `, id, e.UserID, e.Type, e.Details, e.DurationMinutes, meta)
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out := *e
	out.LogID = id
	out.CreationTime = created
	return &out, nil
}

func (a *activity) ListByUser(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
	query := `
        SELECT log_id, user_id, type, details, duration_minutes, metadata, creation_time
        FROM activity_logs WHERE user_id=$1 ORDER BY creation_time DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
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
		var meta []byte
		if err := rows.Scan(&e.LogID, &e.UserID, &e.Type, &e.Details,
			&e.DurationMinutes, &meta, &e.CreationTime); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			var d model.ActivityDevice
			if err := json.Unmarshal(meta, &d); err == nil {
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
	query := `
        SELECT COALESCE(SUM(duration_minutes), 0)
        FROM activity_logs WHERE user_id=$1 AND type = ANY($2)`
	var total int
	// pgx binds []string to a text array parameter.
	if err := a.db.QueryRowContext(ctx, query, userID, types).Scan(&total); err != nil {
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
        INSERT INTO access_tokens (token_hash, user_id, expires_at)
        VALUES ($1,$2,$3)
    `, auth.HashToken(plain), userID, expiresAt)
	if err != nil {
		return "", err
	}
	return plain, nil
}

func (t *tokens) Validate(ctx context.Context, token string) (*model.User, error) {
	row := t.db.QueryRowContext(ctx, `
        SELECT `+prefixedUserColumns("u")+`
        FROM access_tokens a
        JOIN users u ON u.user_id = a.user_id
        WHERE a.token_hash=$1 AND a.expires_at > now()
    `, auth.HashToken(token))
	out, err := scanUser(row)
	return out, mapNoRows(err)
}

func (t *tokens) DeleteForUser(ctx context.Context, userID string) error {
	_, err := t.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE user_id=$1`, userID)
	return err
}

func prefixedUserColumns(alias string) string {
	return alias + `.user_id, ` + alias + `.username, ` + alias + `.email, ` +
		alias + `.password_hash, ` + alias + `.role, ` + alias + `.is_active, ` +
		alias + `.reset_otp, ` + alias + `.reset_otp_expires, ` +
		alias + `.last_reminder_sent, ` + alias + `.creation_time`
}
