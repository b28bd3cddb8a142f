package store

import (
	"context"
	"time"

	"github.com/chainhabit/chainhabit/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Users() Users
	Habits() Habits
	Activity() Activity
	Tokens() Tokens
}

type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	// FindActive returns users whose IsActive flag is set.
	FindActive(ctx context.Context) ([]*model.User, error)
	Update(ctx context.Context, u *model.User) (*model.User, error)
	Delete(ctx context.Context, userID string) error
}

type Habits interface {
	Create(ctx context.Context, h *model.Habit) (*model.Habit, error)
	GetByID(ctx context.Context, userID, habitID string) (*model.Habit, error)
	ListByUser(ctx context.Context, userID string, includeArchived bool) ([]*model.Habit, error)
	Update(ctx context.Context, h *model.Habit) (*model.Habit, error)
	Delete(ctx context.Context, userID, habitID string) error
}

type Activity interface {
	Create(ctx context.Context, e *model.ActivityLog) (*model.ActivityLog, error)
	// ListByUser returns up to limit entries, newest first. limit <= 0 means no cap.
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error)
	// SumDurationByTypes aggregates DurationMinutes across all entries of the
	// given types for the user. Entries with no duration count as zero.
	SumDurationByTypes(ctx context.Context, userID string, types ...string) (int, error)
}

// Tokens issues and validates opaque bearer tokens. The plain token is
// returned once at creation; only a sha256 digest is kept at rest.
type Tokens interface {
	Create(ctx context.Context, userID string, expiresAt time.Time) (string, error)
	// Validate resolves a plain token to its user, or model.ErrNotFound when
	// the token is unknown or expired.
	Validate(ctx context.Context, token string) (*model.User, error)
	DeleteForUser(ctx context.Context, userID string) error
}
