// Package reminder implements the daily inactivity scan: users whose
// habits show no recent completion markers receive a nudge email, subject
// to a per-user cooldown.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainhabit/chainhabit/internal/mailer"
	"github.com/chainhabit/chainhabit/internal/metrics"
	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/store"
)

const (
	// cooldownDays is the minimum whole-day gap between reminder emails to
	// the same user.
	cooldownDays = 3
	// inactivityWindowDays is the trailing window: a marker dated within the
	// last N days (inclusive) keeps a user active.
	inactivityWindowDays = 2
)

// Config controls the scan schedule and email content.
type Config struct {
	Hour        int // UTC hour of day the scan fires
	FrontendURL string
}

// Worker runs the inactivity scan once per day at a fixed hour.
//
// Invariant (per-user reminder atomicity): the read-decide-send-write
// sequence for one user always executes under that user's lock, so no two
// evaluations of the same user can both decide to send before either
// records the cooldown timestamp. Runs themselves are single-flight: the
// schedule loop invokes ScanOnce synchronously, so a run can never overlap
// the previous one.
type Worker struct {
	store    store.Store
	notifier mailer.Notifier
	log      zerolog.Logger
	met      *metrics.Metrics
	cfg      Config
	now      func() time.Time

	userLocks sync.Map // userID -> *sync.Mutex
}

// NewWorker constructs a Worker from dependencies. met may be nil.
func NewWorker(s store.Store, n mailer.Notifier, met *metrics.Metrics, cfg Config, log zerolog.Logger) *Worker {
	return &Worker{store: s, notifier: n, met: met, cfg: cfg, log: log, now: time.Now}
}

// Run blocks until ctx is canceled, firing ScanOnce at the configured hour
// each day.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Int("hour_utc", w.cfg.Hour).Msg("inactivity reminder worker starting")
	for {
		next := w.nextFireTime()
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info().Msg("inactivity reminder worker stopping")
			return ctx.Err()
		case <-timer.C:
			if err := w.ScanOnce(ctx); err != nil {
				// Per-user failures are already isolated; this only fires
				// when the user listing itself failed.
				w.log.Error().Err(err).Msg("inactivity scan failed")
			}
		}
	}
}

// nextFireTime returns the next occurrence of the configured UTC hour.
func (w *Worker) nextFireTime() time.Time {
	now := w.now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), w.cfg.Hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// ScanOnce evaluates every active user. An error evaluating or notifying
// one user never affects the others.
func (w *Worker) ScanOnce(ctx context.Context) error {
	w.log.Info().Msg("running inactivity scan")

	users, err := w.store.Users().FindActive(ctx)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}

	sent := 0
	for _, u := range users {
		if w.met != nil {
			w.met.ReminderUsersEvaluated.Inc()
		}
		didSend, err := w.evaluateUser(ctx, u)
		if err != nil {
			w.log.Error().Err(err).Str("user_id", u.UserID).Msg("skipping user this run")
			continue
		}
		if didSend {
			sent++
		}
	}

	w.log.Info().Int("users", len(users)).Int("reminders_sent", sent).Msg("inactivity scan complete")
	return nil
}

// evaluateUser runs the read-decide-send-write sequence for a single user
// under that user's lock. The bool reports whether a reminder went out.
func (w *Worker) evaluateUser(ctx context.Context, u *model.User) (bool, error) {
	mu := w.lockFor(u.UserID)
	mu.Lock()
	defer mu.Unlock()

	habits, err := w.store.Habits().ListByUser(ctx, u.UserID, false)
	if err != nil {
		return false, fmt.Errorf("list habits: %w", err)
	}
	if len(habits) == 0 {
		return false, nil
	}

	now := w.now().UTC()
	if u.LastReminderSent != nil {
		if wholeDaysBetween(*u.LastReminderSent, now) < cooldownDays {
			return false, nil
		}
	}

	if !isInactive(habits, now) {
		return false, nil
	}

	w.log.Info().Str("user_id", u.UserID).Str("email", u.Email).Msg("sending inactivity nudge")
	body := mailer.ReminderBody(u.Username, w.cfg.FrontendURL)
	if err := w.notifier.Send(ctx, u.Email, mailer.SubjectReminder, body); err != nil {
		// Never propagated and never retried within this run; the next scan
		// re-evaluates the user because no cooldown timestamp was written.
		if w.met != nil {
			w.met.ReminderSendFailures.Inc()
		}
		w.log.Error().Err(err).Str("user_id", u.UserID).Msg("reminder email failed")
		return false, nil
	}
	if w.met != nil {
		w.met.RemindersSent.Inc()
	}

	sentAt := w.now()
	u.LastReminderSent = &sentAt
	if _, err := w.store.Users().Update(ctx, u); err != nil {
		return true, fmt.Errorf("record reminder timestamp: %w", err)
	}
	return true, nil
}

// isInactive reports whether none of the habits has a completion marker
// within the trailing inactivity window. Short-circuits on the first
// qualifying marker.
func isInactive(habits []*model.Habit, now time.Time) bool {
	threshold := now.AddDate(0, 0, -inactivityWindowDays).Format(model.DateLayout)
	for _, h := range habits {
		for _, d := range h.CompletedDates {
			// String comparison is date comparison for fixed-width YYYY-MM-DD.
			if d >= threshold {
				return false
			}
		}
	}
	return true
}

// wholeDaysBetween returns the difference in calendar days between two
// instants, comparing UTC dates.
func wholeDaysBetween(earlier, later time.Time) int {
	e := earlier.UTC()
	l := later.UTC()
	eDate := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC)
	lDate := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
	return int(lDate.Sub(eDate).Hours() / 24)
}

func (w *Worker) lockFor(userID string) *sync.Mutex {
	v, _ := w.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
