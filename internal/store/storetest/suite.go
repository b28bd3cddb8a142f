package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/store"
)

// Run exercises a minimal compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store and return it from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	// Unique test identifiers
	suffix := uuid.New().String()[:8]
	email := "u-" + suffix + "@example.test"

	// Users
	u, err := s.Users().Create(ctx, &model.User{
		Username:     "u-" + suffix,
		Email:        email,
		PasswordHash: "$2a$04$notarealhash",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.UserID == "" || u.Role != model.RoleUser || !u.IsActive {
		t.Fatalf("CreateUser defaults: %+v", u)
	}
	if got, err := s.Users().GetByID(ctx, u.UserID); err != nil || got.Email != email {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got, err := s.Users().GetByEmail(ctx, email); err != nil || got.UserID != u.UserID {
		t.Fatalf("GetByEmail: got=%v err=%v", got, err)
	}
	if _, err := s.Users().GetByID(ctx, "missing-"+suffix); err != model.ErrNotFound {
		t.Fatalf("GetByID missing: want ErrNotFound, got %v", err)
	}

	// Update with a reminder timestamp round-trips
	sent := time.Now().UTC().Truncate(time.Second)
	u.LastReminderSent = &sent
	if _, err := s.Users().Update(ctx, u); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got, err := s.Users().GetByID(ctx, u.UserID); err != nil || got.LastReminderSent == nil {
		t.Fatalf("GetByID after update: got=%v err=%v", got, err)
	}

	// FindActive excludes deactivated users
	u2, err := s.Users().Create(ctx, &model.User{
		Username: "u2-" + suffix, Email: "u2-" + suffix + "@example.test", PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("CreateUser u2: %v", err)
	}
	u2.IsActive = false
	if _, err := s.Users().Update(ctx, u2); err != nil {
		t.Fatalf("deactivate u2: %v", err)
	}
	active, err := s.Users().FindActive(ctx)
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	for _, a := range active {
		if a.UserID == u2.UserID {
			t.Fatalf("FindActive returned deactivated user")
		}
	}

	// Habits
	h, err := s.Habits().Create(ctx, &model.Habit{UserID: u.UserID, Title: "read"})
	if err != nil {
		t.Fatalf("CreateHabit: %v", err)
	}
	if h.HabitID == "" || h.Target != 10 || h.Streak != 0 {
		t.Fatalf("CreateHabit defaults: %+v", h)
	}
	h.CompletedDates = []string{"2026-08-01", "2026-08-02"}
	updated, err := s.Habits().Update(ctx, h)
	if err != nil {
		t.Fatalf("UpdateHabit: %v", err)
	}
	if updated.Streak != 2 {
		t.Fatalf("UpdateHabit streak: got %d", updated.Streak)
	}
	if got, err := s.Habits().GetByID(ctx, u.UserID, h.HabitID); err != nil || len(got.CompletedDates) != 2 {
		t.Fatalf("GetHabit: got=%v err=%v", got, err)
	}
	// Habits are scoped per user
	if _, err := s.Habits().GetByID(ctx, u2.UserID, h.HabitID); err != model.ErrNotFound {
		t.Fatalf("GetHabit cross-user: want ErrNotFound, got %v", err)
	}

	// Archived habits are hidden unless requested
	h2, err := s.Habits().Create(ctx, &model.Habit{UserID: u.UserID, Title: "run", IsArchived: true})
	if err != nil {
		t.Fatalf("CreateHabit h2: %v", err)
	}
	if lst, err := s.Habits().ListByUser(ctx, u.UserID, false); err != nil || len(lst) != 1 {
		t.Fatalf("ListByUser unarchived: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Habits().ListByUser(ctx, u.UserID, true); err != nil || len(lst) != 2 {
		t.Fatalf("ListByUser all: n=%d err=%v", len(lst), err)
	}
	if err := s.Habits().Delete(ctx, u.UserID, h2.HabitID); err != nil {
		t.Fatalf("DeleteHabit: %v", err)
	}

	// Activity
	dur := 25
	if _, err := s.Activity().Create(ctx, &model.ActivityLog{
		UserID: u.UserID, Type: model.ActivityLogin, Details: "login", DurationMinutes: &dur,
	}); err != nil {
		t.Fatalf("CreateActivity login: %v", err)
	}
	dur2 := 40
	if _, err := s.Activity().Create(ctx, &model.ActivityLog{
		UserID: u.UserID, Type: model.ActivityLogout, DurationMinutes: &dur2,
	}); err != nil {
		t.Fatalf("CreateActivity logout: %v", err)
	}
	dur3 := 15
	if _, err := s.Activity().Create(ctx, &model.ActivityLog{
		UserID: u.UserID, Type: model.ActivitySessionDuration, DurationMinutes: &dur3,
	}); err != nil {
		t.Fatalf("CreateActivity pulse: %v", err)
	}

	logs, err := s.Activity().ListByUser(ctx, u.UserID, 2)
	if err != nil || len(logs) != 2 {
		t.Fatalf("ListActivity limit: n=%d err=%v", len(logs), err)
	}
	// Newest first
	if !logs[0].CreationTime.Before(time.Now().Add(time.Minute)) || logs[0].CreationTime.Before(logs[1].CreationTime) {
		t.Fatalf("ListActivity ordering: %v then %v", logs[0].CreationTime, logs[1].CreationTime)
	}

	// Only logout + session_duration contribute, login's duration excluded
	total, err := s.Activity().SumDurationByTypes(ctx, u.UserID, model.ActivityLogout, model.ActivitySessionDuration)
	if err != nil || total != 55 {
		t.Fatalf("SumDurationByTypes: got=%d err=%v", total, err)
	}

	// Tokens
	plain, err := s.Tokens().Create(ctx, u.UserID, time.Now().Add(time.Hour))
	if err != nil || plain == "" {
		t.Fatalf("CreateToken: token=%q err=%v", plain, err)
	}
	if got, err := s.Tokens().Validate(ctx, plain); err != nil || got.UserID != u.UserID {
		t.Fatalf("ValidateToken: got=%v err=%v", got, err)
	}
	if _, err := s.Tokens().Validate(ctx, "bogus"); err != model.ErrNotFound {
		t.Fatalf("ValidateToken bogus: want ErrNotFound, got %v", err)
	}
	expired, err := s.Tokens().Create(ctx, u.UserID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CreateToken expired: %v", err)
	}
	if _, err := s.Tokens().Validate(ctx, expired); err != model.ErrNotFound {
		t.Fatalf("ValidateToken expired: want ErrNotFound, got %v", err)
	}
	if err := s.Tokens().DeleteForUser(ctx, u.UserID); err != nil {
		t.Fatalf("DeleteForUser: %v", err)
	}
	if _, err := s.Tokens().Validate(ctx, plain); err != model.ErrNotFound {
		t.Fatalf("ValidateToken after revoke: want ErrNotFound, got %v", err)
	}

	// Deleting the user cascades
	if err := s.Users().Delete(ctx, u.UserID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.Habits().GetByID(ctx, u.UserID, h.HabitID); err != model.ErrNotFound {
		t.Fatalf("habit survived user delete: %v", err)
	}
}
