package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/store"
)

// Fake is an in-memory store.Store for unit tests of the layers above
// persistence. Driver fidelity is covered by Run; Fake trades that for
// per-user error injection hooks.
type Fake struct {
	mu     sync.Mutex
	users  map[string]*model.User
	habits map[string]*model.Habit
	logs   []*model.ActivityLog
	tokens map[string]fakeToken

	// Error hooks, keyed by user ID. A nil map injects nothing.
	HabitsListErr map[string]error
	UserUpdateErr map[string]error
}

type fakeToken struct {
	userID    string
	expiresAt time.Time
}

func NewFake() *Fake {
	return &Fake{
		users:  make(map[string]*model.User),
		habits: make(map[string]*model.Habit),
		tokens: make(map[string]fakeToken),
	}
}

func (f *Fake) Users() store.Users       { return fakeUsers{f} }
func (f *Fake) Habits() store.Habits     { return fakeHabits{f} }
func (f *Fake) Activity() store.Activity { return fakeActivity{f} }
func (f *Fake) Tokens() store.Tokens     { return fakeTokens{f} }

func cloneUser(u *model.User) *model.User {
	c := *u
	return &c
}

func cloneHabit(h *model.Habit) *model.Habit {
	c := *h
	c.CompletedDates = append([]string(nil), h.CompletedDates...)
	return &c
}

type fakeUsers struct{ f *Fake }

func (s fakeUsers) Create(_ context.Context, u *model.User) (*model.User, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	c := cloneUser(u)
	if c.UserID == "" {
		c.UserID = uuid.NewString()
	}
	if c.Role == "" {
		c.Role = model.RoleUser
	}
	c.IsActive = true
	c.CreationTime = time.Now().UTC()
	s.f.users[c.UserID] = c
	return cloneUser(c), nil
}

func (s fakeUsers) GetByID(_ context.Context, userID string) (*model.User, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	u, ok := s.f.users[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	for _, u := range s.f.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, model.ErrNotFound
}

func (s fakeUsers) List(_ context.Context) ([]*model.User, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	out := make([]*model.User, 0, len(s.f.users))
	for _, u := range s.f.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s fakeUsers) FindActive(ctx context.Context) ([]*model.User, error) {
	all, _ := s.List(ctx)
	out := all[:0]
	for _, u := range all {
		if u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s fakeUsers) Update(_ context.Context, u *model.User) (*model.User, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if err := s.f.UserUpdateErr[u.UserID]; err != nil {
		return nil, err
	}
	if _, ok := s.f.users[u.UserID]; !ok {
		return nil, model.ErrNotFound
	}
	s.f.users[u.UserID] = cloneUser(u)
	return cloneUser(u), nil
}

func (s fakeUsers) Delete(_ context.Context, userID string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if _, ok := s.f.users[userID]; !ok {
		return model.ErrNotFound
	}
	delete(s.f.users, userID)
	for id, h := range s.f.habits {
		if h.UserID == userID {
			delete(s.f.habits, id)
		}
	}
	return nil
}

type fakeHabits struct{ f *Fake }

func (s fakeHabits) Create(_ context.Context, h *model.Habit) (*model.Habit, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	c := cloneHabit(h)
	if c.HabitID == "" {
		c.HabitID = uuid.NewString()
	}
	if c.Target <= 0 {
		c.Target = 10
	}
	c.CreationTime = time.Now().UTC()
	s.f.habits[c.HabitID] = c
	return cloneHabit(c), nil
}

func (s fakeHabits) GetByID(_ context.Context, userID, habitID string) (*model.Habit, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	h, ok := s.f.habits[habitID]
	if !ok || h.UserID != userID {
		return nil, model.ErrNotFound
	}
	return cloneHabit(h), nil
}

func (s fakeHabits) ListByUser(_ context.Context, userID string, includeArchived bool) ([]*model.Habit, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if err := s.f.HabitsListErr[userID]; err != nil {
		return nil, err
	}
	var out []*model.Habit
	for _, h := range s.f.habits {
		if h.UserID != userID {
			continue
		}
		if h.IsArchived && !includeArchived {
			continue
		}
		out = append(out, cloneHabit(h))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HabitID < out[j].HabitID })
	return out, nil
}

func (s fakeHabits) Update(_ context.Context, h *model.Habit) (*model.Habit, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	cur, ok := s.f.habits[h.HabitID]
	if !ok || cur.UserID != h.UserID {
		return nil, model.ErrNotFound
	}
	s.f.habits[h.HabitID] = cloneHabit(h)
	return cloneHabit(h), nil
}

func (s fakeHabits) Delete(_ context.Context, userID, habitID string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	h, ok := s.f.habits[habitID]
	if !ok || h.UserID != userID {
		return model.ErrNotFound
	}
	delete(s.f.habits, habitID)
	return nil
}

type fakeActivity struct{ f *Fake }

func (s fakeActivity) Create(_ context.Context, e *model.ActivityLog) (*model.ActivityLog, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	c := *e
	if c.LogID == "" {
		c.LogID = uuid.NewString()
	}
	c.CreationTime = time.Now().UTC()
	s.f.logs = append(s.f.logs, &c)
	out := c
	return &out, nil
}

func (s fakeActivity) ListByUser(_ context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	var out []*model.ActivityLog
	for i := len(s.f.logs) - 1; i >= 0; i-- {
		if s.f.logs[i].UserID != userID {
			continue
		}
		c := *s.f.logs[i]
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s fakeActivity) SumDurationByTypes(_ context.Context, userID string, types ...string) (int, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	total := 0
	for _, e := range s.f.logs {
		if e.UserID != userID || e.DurationMinutes == nil {
			continue
		}
		for _, t := range types {
			if e.Type == t {
				total += *e.DurationMinutes
				break
			}
		}
	}
	return total, nil
}

type fakeTokens struct{ f *Fake }

func (s fakeTokens) Create(_ context.Context, userID string, expiresAt time.Time) (string, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	plain := uuid.NewString()
	s.f.tokens[plain] = fakeToken{userID: userID, expiresAt: expiresAt}
	return plain, nil
}

func (s fakeTokens) Validate(ctx context.Context, token string) (*model.User, error) {
	s.f.mu.Lock()
	t, ok := s.f.tokens[token]
	s.f.mu.Unlock()
	if !ok || time.Now().After(t.expiresAt) {
		return nil, model.ErrNotFound
	}
	return fakeUsers{s.f}.GetByID(ctx, t.userID)
}

func (s fakeTokens) DeleteForUser(_ context.Context, userID string) error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	for plain, t := range s.f.tokens {
		if t.userID == userID {
			delete(s.f.tokens, plain)
		}
	}
	return nil
}
