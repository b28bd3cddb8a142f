package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chainhabit/chainhabit/internal/auth"
	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/store/storetest"
)

// testBcryptCost keeps password hashing fast in tests.
const testBcryptCost = 4

type sentMail struct {
	to      string
	subject string
	body    string
}

type mailSpy struct {
	mu   sync.Mutex
	mail []sentMail
}

func (m *mailSpy) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mail = append(m.mail, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *mailSpy) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mail)
}

func newUserFixture(t *testing.T) (*UserService, *storetest.Fake, *mailSpy) {
	t.Helper()
	s := storetest.NewFake()
	a := auth.NewAuthorizer(s, time.Hour)
	spy := &mailSpy{}
	svc := NewUserService(s, a, spy, zerolog.Nop(), testBcryptCost, "http://localhost:5173")
	return svc, s, spy
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	ctx := context.Background()

	u, token, err := svc.Register(ctx, "casey", "Casey@Example.com", "hunter22")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "casey@example.com", u.Email)
	require.Equal(t, model.RoleUser, u.Role)
	require.True(t, u.IsActive)

	got, token2, err := svc.Login(ctx, "casey@example.com", "hunter22", nil)
	require.NoError(t, err)
	require.Equal(t, u.UserID, got.UserID)
	require.NotEmpty(t, token2)
	require.NotEqual(t, token, token2)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	ctx := context.Background()
	_, _, err := svc.Register(ctx, "casey", "casey@example.com", "hunter22")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "other", "casey@example.com", "hunter22")
	require.ErrorIs(t, err, model.ErrConflict)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	ctx := context.Background()
	_, _, err := svc.Register(ctx, "casey", "casey@example.com", "hunter22")
	require.NoError(t, err)

	// Unknown email and wrong password look identical to the caller.
	_, _, err = svc.Login(ctx, "nobody@example.com", "hunter22", nil)
	require.ErrorIs(t, err, model.ErrUnauthorized)
	_, _, err = svc.Login(ctx, "casey@example.com", "wrong", nil)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	svc, s, _ := newUserFixture(t)
	ctx := context.Background()
	u, _, err := svc.Register(ctx, "casey", "casey@example.com", "hunter22")
	require.NoError(t, err)
	u.IsActive = false
	_, err = s.Users().Update(ctx, u)
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "casey@example.com", "hunter22", nil)
	require.ErrorIs(t, err, model.ErrForbidden)
}

func TestLoginRecordsDeviceActivity(t *testing.T) {
	svc, s, _ := newUserFixture(t)
	ctx := context.Background()
	u, _, err := svc.Register(ctx, "casey", "casey@example.com", "hunter22")
	require.NoError(t, err)

	device := &model.ActivityDevice{Browser: "Firefox", OS: "Linux", IP: "203.0.113.9"}
	_, _, err = svc.Login(ctx, "casey@example.com", "hunter22", device)
	require.NoError(t, err)

	logs, err := s.Activity().ListByUser(ctx, u.UserID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, model.ActivityLogin, logs[0].Type)
	require.Equal(t, "User logged in from Linux", logs[0].Details)
	require.Equal(t, device, logs[0].Metadata)
}

func TestLogoutAndPulseFeedTimeSpent(t *testing.T) {
	svc, s, _ := newUserFixture(t)
	ctx := context.Background()
	u, _, err := svc.Register(ctx, "casey", "casey@example.com", "hunter22")
	require.NoError(t, err)

	require.NoError(t, svc.RecordSessionPulse(ctx, u.UserID, 25))
	require.NoError(t, svc.Logout(ctx, u.UserID, 30))

	total, err := s.Activity().SumDurationByTypes(ctx, u.UserID,
		model.ActivityLogout, model.ActivitySessionDuration)
	require.NoError(t, err)
	require.Equal(t, 55, total)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, s, spy := newUserFixture(t)
	ctx := context.Background()
	u, _, err := svc.Register(ctx, "casey", "casey@example.com", "hunter22")
	require.NoError(t, err)

	require.NoError(t, svc.ForgotPassword(ctx, "casey@example.com"))
	require.Equal(t, 1, spy.count())

	stored, err := s.Users().GetByID(ctx, u.UserID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetOTP)
	require.Len(t, *stored.ResetOTP, 6)

	require.NoError(t, svc.ResetPassword(ctx, "casey@example.com", *stored.ResetOTP, "newpass99"))

	// OTP is single-use and the new password takes effect.
	err = svc.ResetPassword(ctx, "casey@example.com", *stored.ResetOTP, "again")
	require.ErrorIs(t, err, model.ErrValidation)
	_, _, err = svc.Login(ctx, "casey@example.com", "hunter22", nil)
	require.ErrorIs(t, err, model.ErrUnauthorized)
	_, _, err = svc.Login(ctx, "casey@example.com", "newpass99", nil)
	require.NoError(t, err)
}

func TestResetPasswordRejectsWrongOTP(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	ctx := context.Background()
	_, _, err := svc.Register(ctx, "casey", "casey@example.com", "hunter22")
	require.NoError(t, err)
	require.NoError(t, svc.ForgotPassword(ctx, "casey@example.com"))

	err = svc.ResetPassword(ctx, "casey@example.com", "000000", "newpass99")
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestAdminCreateUserValidatesRole(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	ctx := context.Background()

	_, err := svc.AdminCreateUser(ctx, "casey", "casey@example.com", "hunter22", "superuser")
	require.ErrorIs(t, err, model.ErrValidation)

	u, err := svc.AdminCreateUser(ctx, "casey", "casey@example.com", "hunter22", "")
	require.NoError(t, err)
	require.Equal(t, model.RoleUser, u.Role)

	_, err = svc.AdminCreateUser(ctx, "dup", "casey@example.com", "hunter22", model.RoleAdmin)
	require.ErrorIs(t, err, model.ErrConflict)
}

func TestUpdateUserPartialFields(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	ctx := context.Background()
	u, _, err := svc.Register(ctx, "casey", "casey@example.com", "hunter22")
	require.NoError(t, err)

	role := model.RoleAdmin
	inactive := false
	got, err := svc.UpdateUser(ctx, u.UserID, UpdateUserParams{Role: &role, IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, model.RoleAdmin, got.Role)
	require.False(t, got.IsActive)
	require.Equal(t, "casey", got.Username)

	bad := "owner"
	_, err = svc.UpdateUser(ctx, u.UserID, UpdateUserParams{Role: &bad})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestDeleteUserProtectsAdmins(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	ctx := context.Background()
	admin, err := svc.AdminCreateUser(ctx, "root", "root@example.com", "hunter22", model.RoleAdmin)
	require.NoError(t, err)
	member, err := svc.AdminCreateUser(ctx, "casey", "casey@example.com", "hunter22", model.RoleUser)
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteUser(ctx, admin.UserID), model.ErrForbidden)
	require.NoError(t, svc.DeleteUser(ctx, member.UserID))
	_, err = svc.GetUser(ctx, member.UserID)
	require.ErrorIs(t, err, model.ErrNotFound)
}
