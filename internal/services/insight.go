package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/store"
)

// recentLogLimit caps the raw log list returned with the intelligence view.
// The time-spent aggregation is NOT subject to this cap.
const recentLogLimit = 100

// monthlyDenominatorPerHabit is the fixed per-habit monthly denominator used
// for the performance ratio. Deliberately not calendar-accurate.
const monthlyDenominatorPerHabit = 30

// InsightService computes the behavioral intelligence snapshot for a user.
// Read-only; all analytics derive from habit completion markers and the
// activity log.
type InsightService struct {
	store store.Store
	now   func() time.Time
}

func NewInsightService(s store.Store) *InsightService {
	return &InsightService{store: s, now: time.Now}
}

// NewInsightServiceAt injects a clock, for tests.
func NewInsightServiceAt(s store.Store, now func() time.Time) *InsightService {
	return &InsightService{store: s, now: now}
}

// UserIntelligence produces the admin-facing intelligence view: the user,
// their full habit list, the most recent activity logs and the computed
// insight snapshot. Returns model.ErrNotFound for unknown users.
func (s *InsightService) UserIntelligence(ctx context.Context, userID string) (*model.UserIntelligence, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	habits, err := s.store.Habits().ListByUser(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	logs, err := s.store.Activity().ListByUser(ctx, userID, recentLogLimit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	// Date strings are written in UTC on the toggle path, so "today" must be
	// computed in UTC here as well.
	now := s.now().UTC()
	today := now.Format(model.DateLayout)
	monthPrefix := today[:7]

	markedToday := false
	totalMonthlyDone := 0
	lastMark := ""
	for _, h := range habits {
		for _, d := range h.CompletedDates {
			if d == today {
				markedToday = true
			}
			if len(d) >= 7 && d[:7] == monthPrefix {
				totalMonthlyDone++
			}
			// Lexicographic max is the latest date: markers are fixed-width
			// zero-padded YYYY-MM-DD.
			if d > lastMark {
				lastMark = d
			}
		}
	}

	totalMonthlyPossible := monthlyDenominatorPerHabit * len(habits)
	monthlyPerformance := 0
	if totalMonthlyPossible > 0 {
		monthlyPerformance = int(math.Round(float64(totalMonthlyDone) / float64(totalMonthlyPossible) * 100))
	}

	var daysSinceLastMark *int
	if lastMark != "" {
		if t, err := time.ParseInLocation(model.DateLayout, lastMark, time.UTC); err == nil {
			days := int(now.Sub(t).Hours() / 24)
			if days < 0 {
				days = 0
			}
			daysSinceLastMark = &days
		}
	}

	totalTimeSpent, err := s.store.Activity().SumDurationByTypes(ctx, userID,
		model.ActivityLogout, model.ActivitySessionDuration)
	if err != nil {
		return nil, fmt.Errorf("sum session durations: %w", err)
	}

	return &model.UserIntelligence{
		User:           user,
		Habits:         habits,
		Logs:           logs,
		TotalTimeSpent: totalTimeSpent,
		Insight: model.UserInsight{
			MarkedToday:        markedToday,
			MonthlyPerformance: monthlyPerformance,
			DaysSinceLastMark:  daysSinceLastMark,
			LastEmailSent:      user.LastReminderSent,
		},
	}, nil
}
