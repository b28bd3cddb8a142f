package model

import "time"

// Roles assignable to a user account.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Activity log entry types.
const (
	ActivityLogin           = "login"
	ActivityLogout          = "logout"
	ActivityHabitCreate     = "habit_create"
	ActivityHabitToggle     = "habit_toggle"
	ActivityHabitArchive    = "habit_archive"
	ActivitySessionDuration = "session_duration"
)

// DateLayout is the calendar-date format used for completion markers.
// Fixed-width and zero-padded, so lexicographic order equals date order.
const DateLayout = "2006-01-02"

// User represents an account in the system.
type User struct {
	UserID           string     `json:"userId"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Role             string     `json:"role"`
	IsActive         bool       `json:"isActive"`
	ResetOTP         *string    `json:"-"`
	ResetOTPExpires  *time.Time `json:"-"`
	LastReminderSent *time.Time `json:"lastReminderSent,omitempty"`
	CreationTime     time.Time  `json:"creationTime"`
}

// Habit belongs to exactly one user. CompletedDates holds calendar-date
// strings (YYYY-MM-DD) with set semantics: a date appears at most once.
// Streak is the marker count, not a consecutive-day streak.
type Habit struct {
	HabitID        string    `json:"habitId"`
	UserID         string    `json:"userId"`
	Title          string    `json:"title"`
	Target         int       `json:"target"`
	CompletedDates []string  `json:"completedDates"`
	Streak         int       `json:"streak"`
	IsArchived     bool      `json:"isArchived"`
	CreationTime   time.Time `json:"creationTime"`
}

// ActivityLog is an immutable record of a user event.
type ActivityLog struct {
	LogID           string          `json:"logId"`
	UserID          string          `json:"userId"`
	Type            string          `json:"type"`
	Details         string          `json:"details,omitempty"`
	DurationMinutes *int            `json:"durationMinutes,omitempty"`
	Metadata        *ActivityDevice `json:"metadata,omitempty"`
	CreationTime    time.Time       `json:"creationTime"`
}

// ActivityDevice captures device details attached to login events.
type ActivityDevice struct {
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
	IP      string `json:"ip,omitempty"`
}

// UserInsight is the computed behavioral snapshot for a single user.
// Produced fresh on each request, never persisted.
type UserInsight struct {
	MarkedToday        bool       `json:"markedToday"`
	MonthlyPerformance int        `json:"monthlyPerformance"`
	DaysSinceLastMark  *int       `json:"daysSinceLastMark"`
	LastEmailSent      *time.Time `json:"lastEmailSent,omitempty"`
}

// UserIntelligence bundles the insight with the raw data it was derived
// from, as returned by the admin intelligence endpoint.
type UserIntelligence struct {
	User           *User          `json:"user"`
	Habits         []*Habit       `json:"habits"`
	Logs           []*ActivityLog `json:"logs"`
	TotalTimeSpent int            `json:"totalTimeSpent"`
	Insight        UserInsight    `json:"intelligence"`
}
