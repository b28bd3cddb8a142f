package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/store"
)

// HabitService handles habit CRUD and completion toggling. Every mutation
// appends an activity log entry; log write failures are logged but never
// fail the habit operation itself.
type HabitService struct {
	store store.Store
	log   zerolog.Logger
}

func NewHabitService(s store.Store, log zerolog.Logger) *HabitService {
	return &HabitService{store: s, log: log}
}

// ListHabits returns all of the user's habits, archived included; clients
// filter on the archived flag.
func (s *HabitService) ListHabits(ctx context.Context, userID string) ([]*model.Habit, error) {
	return s.store.Habits().ListByUser(ctx, userID, true)
}

func (s *HabitService) CreateHabit(ctx context.Context, userID, title string, target int) (*model.Habit, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	h, err := s.store.Habits().Create(ctx, &model.Habit{
		UserID: userID,
		Title:  title,
		Target: target,
	})
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, userID, model.ActivityHabitCreate,
		fmt.Sprintf("Created new habit: %s", title))
	return h, nil
}

// ToggleDate flips the completion marker for the given calendar date:
// present markers are removed, absent markers added. Streak is recomputed
// as the marker count.
func (s *HabitService) ToggleDate(ctx context.Context, userID, habitID, date string) (*model.Habit, error) {
	if _, err := time.ParseInLocation(model.DateLayout, date, time.UTC); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", model.ErrValidation)
	}

	h, err := s.store.Habits().GetByID(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	action := "marked"
	idx := -1
	for i, d := range h.CompletedDates {
		if d == date {
			idx = i
			break
		}
	}
	if idx >= 0 {
		h.CompletedDates = append(h.CompletedDates[:idx], h.CompletedDates[idx+1:]...)
		action = "unmarked"
	} else {
		h.CompletedDates = append(h.CompletedDates, date)
	}
	h.Streak = len(h.CompletedDates)

	updated, err := s.store.Habits().Update(ctx, h)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, userID, model.ActivityHabitToggle,
		fmt.Sprintf("User %s %s for %s", action, h.Title, date))
	return updated, nil
}

func (s *HabitService) UpdateHabit(ctx context.Context, userID, habitID, title string, target int) (*model.Habit, error) {
	h, err := s.store.Habits().GetByID(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	if title != "" {
		h.Title = title
	}
	if target > 0 {
		h.Target = target
	}
	return s.store.Habits().Update(ctx, h)
}

// ArchiveHabit sets the archived flag in either direction.
func (s *HabitService) ArchiveHabit(ctx context.Context, userID, habitID string, archived bool) (*model.Habit, error) {
	h, err := s.store.Habits().GetByID(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	h.IsArchived = archived
	updated, err := s.store.Habits().Update(ctx, h)
	if err != nil {
		return nil, err
	}

	verb := "Archived"
	if !archived {
		verb = "Restored"
	}
	s.recordActivity(ctx, userID, model.ActivityHabitArchive,
		fmt.Sprintf("%s habit: %s", verb, h.Title))
	return updated, nil
}

func (s *HabitService) DeleteHabit(ctx context.Context, userID, habitID string) error {
	return s.store.Habits().Delete(ctx, userID, habitID)
}

func (s *HabitService) recordActivity(ctx context.Context, userID, typ, details string) {
	if _, err := s.store.Activity().Create(ctx, &model.ActivityLog{
		UserID:  userID,
		Type:    typ,
		Details: details,
	}); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("type", typ).
			Msg("failed to record activity")
	}
}
