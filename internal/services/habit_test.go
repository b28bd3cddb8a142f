package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/store/storetest"
)

func newHabitFixture(t *testing.T) (*HabitService, *storetest.Fake, string) {
	t.Helper()
	s := storetest.NewFake()
	u, err := s.Users().Create(context.Background(), &model.User{
		Username: "jordan",
		Email:    "jordan@example.com",
	})
	require.NoError(t, err)
	return NewHabitService(s, zerolog.Nop()), s, u.UserID
}

func TestCreateHabitRequiresTitle(t *testing.T) {
	svc, _, userID := newHabitFixture(t)
	_, err := svc.CreateHabit(context.Background(), userID, "", 5)
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestCreateHabitRecordsActivity(t *testing.T) {
	svc, s, userID := newHabitFixture(t)
	ctx := context.Background()

	h, err := svc.CreateHabit(ctx, userID, "Morning run", 20)
	require.NoError(t, err)
	require.Equal(t, "Morning run", h.Title)
	require.Equal(t, 20, h.Target)
	require.Empty(t, h.CompletedDates)

	logs, err := s.Activity().ListByUser(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, model.ActivityHabitCreate, logs[0].Type)
	require.Equal(t, "Created new habit: Morning run", logs[0].Details)
}

func TestToggleDateRoundTrip(t *testing.T) {
	svc, s, userID := newHabitFixture(t)
	ctx := context.Background()
	h, err := svc.CreateHabit(ctx, userID, "Read", 0)
	require.NoError(t, err)

	marked, err := svc.ToggleDate(ctx, userID, h.HabitID, "2026-03-15")
	require.NoError(t, err)
	require.Equal(t, []string{"2026-03-15"}, marked.CompletedDates)
	require.Equal(t, 1, marked.Streak)

	unmarked, err := svc.ToggleDate(ctx, userID, h.HabitID, "2026-03-15")
	require.NoError(t, err)
	require.Empty(t, unmarked.CompletedDates)
	require.Equal(t, 0, unmarked.Streak)

	logs, err := s.Activity().ListByUser(ctx, userID, 0)
	require.NoError(t, err)
	// create + two toggles, newest first
	require.Len(t, logs, 3)
	require.Equal(t, "User unmarked Read for 2026-03-15", logs[0].Details)
	require.Equal(t, "User marked Read for 2026-03-15", logs[1].Details)
}

func TestToggleDateRejectsBadDate(t *testing.T) {
	svc, _, userID := newHabitFixture(t)
	ctx := context.Background()
	h, err := svc.CreateHabit(ctx, userID, "Read", 0)
	require.NoError(t, err)

	for _, bad := range []string{"15-03-2026", "2026/03/15", "2026-3-15", "not-a-date"} {
		_, err := svc.ToggleDate(ctx, userID, h.HabitID, bad)
		require.ErrorIs(t, err, model.ErrValidation, "date %q", bad)
	}
}

func TestToggleDateScopedToOwner(t *testing.T) {
	svc, s, userID := newHabitFixture(t)
	ctx := context.Background()
	other, err := s.Users().Create(ctx, &model.User{Username: "sam", Email: "sam@example.com"})
	require.NoError(t, err)
	h, err := svc.CreateHabit(ctx, userID, "Read", 0)
	require.NoError(t, err)

	_, err = svc.ToggleDate(ctx, other.UserID, h.HabitID, "2026-03-15")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateHabitPartialFields(t *testing.T) {
	svc, _, userID := newHabitFixture(t)
	ctx := context.Background()
	h, err := svc.CreateHabit(ctx, userID, "Read", 15)
	require.NoError(t, err)

	got, err := svc.UpdateHabit(ctx, userID, h.HabitID, "Read more", 0)
	require.NoError(t, err)
	require.Equal(t, "Read more", got.Title)
	require.Equal(t, 15, got.Target)

	got, err = svc.UpdateHabit(ctx, userID, h.HabitID, "", 25)
	require.NoError(t, err)
	require.Equal(t, "Read more", got.Title)
	require.Equal(t, 25, got.Target)
}

func TestArchiveAndRestoreHabit(t *testing.T) {
	svc, s, userID := newHabitFixture(t)
	ctx := context.Background()
	h, err := svc.CreateHabit(ctx, userID, "Read", 0)
	require.NoError(t, err)

	archived, err := svc.ArchiveHabit(ctx, userID, h.HabitID, true)
	require.NoError(t, err)
	require.True(t, archived.IsArchived)

	restored, err := svc.ArchiveHabit(ctx, userID, h.HabitID, false)
	require.NoError(t, err)
	require.False(t, restored.IsArchived)

	logs, err := s.Activity().ListByUser(ctx, userID, 0)
	require.NoError(t, err)
	require.Equal(t, "Restored habit: Read", logs[0].Details)
	require.Equal(t, "Archived habit: Read", logs[1].Details)
}

func TestListHabitsIncludesArchived(t *testing.T) {
	svc, _, userID := newHabitFixture(t)
	ctx := context.Background()
	h1, err := svc.CreateHabit(ctx, userID, "Keep", 0)
	require.NoError(t, err)
	h2, err := svc.CreateHabit(ctx, userID, "Shelve", 0)
	require.NoError(t, err)
	_, err = svc.ArchiveHabit(ctx, userID, h2.HabitID, true)
	require.NoError(t, err)

	habits, err := svc.ListHabits(ctx, userID)
	require.NoError(t, err)
	require.Len(t, habits, 2)
	ids := []string{habits[0].HabitID, habits[1].HabitID}
	require.Contains(t, ids, h1.HabitID)
	require.Contains(t, ids, h2.HabitID)
}

func TestDeleteHabit(t *testing.T) {
	svc, _, userID := newHabitFixture(t)
	ctx := context.Background()
	h, err := svc.CreateHabit(ctx, userID, "Read", 0)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteHabit(ctx, userID, h.HabitID))
	require.ErrorIs(t, svc.DeleteHabit(ctx, userID, h.HabitID), model.ErrNotFound)
}
