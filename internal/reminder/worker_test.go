package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/store/storetest"
)

// fixedNow is the clock every test runs at: 10:00 UTC on 2026-03-15.
var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type captureNotifier struct {
	mu   sync.Mutex
	sent []string // recipient addresses, in order
	fail error
}

func (n *captureNotifier) Send(_ context.Context, to, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, to)
	return nil
}

func (n *captureNotifier) recipients() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

func newTestWorker(s *storetest.Fake, n *captureNotifier) *Worker {
	w := NewWorker(s, n, nil, Config{Hour: 10, FrontendURL: "http://localhost:5173"}, zerolog.Nop())
	w.now = func() time.Time { return fixedNow }
	return w
}

func seedUser(t *testing.T, s *storetest.Fake, email string) *model.User {
	t.Helper()
	u, err := s.Users().Create(context.Background(), &model.User{
		Username: "u-" + email,
		Email:    email,
	})
	require.NoError(t, err)
	return u
}

func seedHabit(t *testing.T, s *storetest.Fake, userID string, dates ...string) *model.Habit {
	t.Helper()
	h, err := s.Habits().Create(context.Background(), &model.Habit{
		UserID:         userID,
		Title:          "Read",
		CompletedDates: dates,
	})
	require.NoError(t, err)
	return h
}

func TestScanSkipsUserWithoutHabits(t *testing.T) {
	s := storetest.NewFake()
	n := &captureNotifier{}
	seedUser(t, s, "idle@example.com")

	require.NoError(t, newTestWorker(s, n).ScanOnce(context.Background()))
	require.Empty(t, n.recipients())
}

func TestScanSkipsRecentlyActiveUser(t *testing.T) {
	s := storetest.NewFake()
	n := &captureNotifier{}
	u := seedUser(t, s, "active@example.com")
	// Marker two days back is still inside the activity window.
	seedHabit(t, s, u.UserID, "2026-03-13")

	require.NoError(t, newTestWorker(s, n).ScanOnce(context.Background()))
	require.Empty(t, n.recipients())
}

func TestScanSendsToInactiveUser(t *testing.T) {
	s := storetest.NewFake()
	n := &captureNotifier{}
	u := seedUser(t, s, "inactive@example.com")
	seedHabit(t, s, u.UserID, "2026-03-12")

	require.NoError(t, newTestWorker(s, n).ScanOnce(context.Background()))
	require.Equal(t, []string{"inactive@example.com"}, n.recipients())

	got, err := s.Users().GetByID(context.Background(), u.UserID)
	require.NoError(t, err)
	require.NotNil(t, got.LastReminderSent)
	require.Equal(t, fixedNow, got.LastReminderSent.UTC())
}

func TestScanHonorsCooldown(t *testing.T) {
	s := storetest.NewFake()
	n := &captureNotifier{}
	u := seedUser(t, s, "cooldown@example.com")
	seedHabit(t, s, u.UserID, "2026-03-01")
	last := fixedNow.AddDate(0, 0, -1)
	u.LastReminderSent = &last
	_, err := s.Users().Update(context.Background(), u)
	require.NoError(t, err)

	require.NoError(t, newTestWorker(s, n).ScanOnce(context.Background()))
	require.Empty(t, n.recipients())
}

func TestScanSendsAgainAfterCooldownExpires(t *testing.T) {
	s := storetest.NewFake()
	n := &captureNotifier{}
	u := seedUser(t, s, "stale@example.com")
	seedHabit(t, s, u.UserID, "2026-03-01")
	last := fixedNow.AddDate(0, 0, -3)
	u.LastReminderSent = &last
	_, err := s.Users().Update(context.Background(), u)
	require.NoError(t, err)

	require.NoError(t, newTestWorker(s, n).ScanOnce(context.Background()))
	require.Equal(t, []string{"stale@example.com"}, n.recipients())
}

func TestScanIsIdempotentWithinCooldown(t *testing.T) {
	s := storetest.NewFake()
	n := &captureNotifier{}
	u := seedUser(t, s, "once@example.com")
	seedHabit(t, s, u.UserID, "2026-03-10")

	w := newTestWorker(s, n)
	require.NoError(t, w.ScanOnce(context.Background()))
	require.NoError(t, w.ScanOnce(context.Background()))
	require.Equal(t, []string{"once@example.com"}, n.recipients())
}

func TestScanIgnoresArchivedHabitMarkers(t *testing.T) {
	s := storetest.NewFake()
	n := &captureNotifier{}
	u := seedUser(t, s, "archived@example.com")
	// The only recent marker sits on an archived habit, so the user counts
	// as inactive; the old marker on the live habit does not save them.
	h := seedHabit(t, s, u.UserID, "2026-03-15")
	h.IsArchived = true
	_, err := s.Habits().Update(context.Background(), h)
	require.NoError(t, err)
	seedHabit(t, s, u.UserID, "2026-02-01")

	require.NoError(t, newTestWorker(s, n).ScanOnce(context.Background()))
	require.Equal(t, []string{"archived@example.com"}, n.recipients())
}

func TestScanNotifierFailureLeavesCooldownUnset(t *testing.T) {
	s := storetest.NewFake()
	n := &captureNotifier{fail: errors.New("smtp down")}
	u := seedUser(t, s, "flaky@example.com")
	seedHabit(t, s, u.UserID, "2026-03-01")

	require.NoError(t, newTestWorker(s, n).ScanOnce(context.Background()))

	// No timestamp written, so the next scan retries this user.
	got, err := s.Users().GetByID(context.Background(), u.UserID)
	require.NoError(t, err)
	require.Nil(t, got.LastReminderSent)

	n.fail = nil
	require.NoError(t, newTestWorker(s, n).ScanOnce(context.Background()))
	require.Equal(t, []string{"flaky@example.com"}, n.recipients())
}

func TestScanIsolatesPerUserStorageErrors(t *testing.T) {
	s := storetest.NewFake()
	n := &captureNotifier{}
	broken := seedUser(t, s, "broken@example.com")
	healthy := seedUser(t, s, "healthy@example.com")
	seedHabit(t, s, broken.UserID, "2026-03-01")
	seedHabit(t, s, healthy.UserID, "2026-03-01")
	s.HabitsListErr = map[string]error{broken.UserID: errors.New("connection reset")}

	require.NoError(t, newTestWorker(s, n).ScanOnce(context.Background()))
	require.Equal(t, []string{"healthy@example.com"}, n.recipients())
}

func TestScanSkipsDeactivatedUsers(t *testing.T) {
	s := storetest.NewFake()
	n := &captureNotifier{}
	u := seedUser(t, s, "disabled@example.com")
	seedHabit(t, s, u.UserID, "2026-03-01")
	u.IsActive = false
	_, err := s.Users().Update(context.Background(), u)
	require.NoError(t, err)

	require.NoError(t, newTestWorker(s, n).ScanOnce(context.Background()))
	require.Empty(t, n.recipients())
}

func TestNextFireTime(t *testing.T) {
	w := newTestWorker(storetest.NewFake(), &captureNotifier{})

	// At exactly 10:00 the next fire is tomorrow.
	require.Equal(t, time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC), w.nextFireTime())

	w.now = func() time.Time { return time.Date(2026, 3, 15, 9, 59, 0, 0, time.UTC) }
	require.Equal(t, time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC), w.nextFireTime())
}
