package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chainhabit/chainhabit/internal/auth"
	"github.com/chainhabit/chainhabit/internal/mailer"
	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/services"
	"github.com/chainhabit/chainhabit/internal/store/storetest"
)

type testAPI struct {
	router *mux.Router
	store  *storetest.Fake
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	s := storetest.NewFake()
	a := auth.NewAuthorizer(s, time.Hour)
	notifier := mailer.New(mailer.Config{}, zerolog.Nop())
	users := services.NewUserService(s, a, notifier, zerolog.Nop(), 4, "http://localhost:5173")
	router := NewRouter(Deps{
		Users:      users,
		Habits:     services.NewHabitService(s, zerolog.Nop()),
		Insights:   services.NewInsightService(s),
		Authorizer: a,
		IsHealthy:  func() bool { return true },
		Log:        zerolog.Nop(),
	})
	return &testAPI{router: router, store: s}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// registerUser creates an account through the API and returns its token and id.
func (a *testAPI) registerUser(t *testing.T, username, email string) (token, userID string) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	user := body["user"].(map[string]interface{})
	return body["token"].(string), user["userId"].(string)
}

// promoteToAdmin flips the role directly in the store.
func (a *testAPI) promoteToAdmin(t *testing.T, userID string) {
	t.Helper()
	u, err := a.store.Users().GetByID(context.Background(), userID)
	require.NoError(t, err)
	u.Role = model.RoleAdmin
	_, err = a.store.Users().Update(context.Background(), u)
	require.NoError(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/api/no-such-route", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "casey",
		"email":    "not-an-email",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "casey",
		"email":    "casey@example.com",
		"password": "tiny",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterHidesPasswordHash(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "casey",
		"email":    "casey@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decodeBody(t, rec)["user"].(map[string]interface{})
	require.NotContains(t, user, "passwordHash")
	require.NotContains(t, user, "password")
}

func TestLoginWrongPassword(t *testing.T) {
	api := newTestAPI(t)
	api.registerUser(t, "casey", "casey@example.com")

	rec := api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "casey@example.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHabitsRequireAuth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/api/habits", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/habits", "bogus-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHabitLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.registerUser(t, "casey", "casey@example.com")

	rec := api.do(t, http.MethodPost, "/api/habits", token, map[string]interface{}{
		"title": "Morning run", "target": 20,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	habitID := decodeBody(t, rec)["habitId"].(string)

	rec = api.do(t, http.MethodPatch, "/api/habits/"+habitID+"/toggle", token, map[string]string{
		"date": "2026-03-15",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, []interface{}{"2026-03-15"}, body["completedDates"])
	require.Equal(t, float64(1), body["streak"])

	rec = api.do(t, http.MethodPut, "/api/habits/"+habitID, token, map[string]interface{}{
		"title": "Evening run",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Evening run", decodeBody(t, rec)["title"])

	rec = api.do(t, http.MethodPatch, "/api/habits/"+habitID+"/archive", token, map[string]bool{
		"archived": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["isArchived"])

	rec = api.do(t, http.MethodGet, "/api/habits", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var habits []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &habits))
	require.Len(t, habits, 1)

	rec = api.do(t, http.MethodDelete, "/api/habits/"+habitID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodDelete, "/api/habits/"+habitID, token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleRejectsMalformedDate(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.registerUser(t, "casey", "casey@example.com")
	rec := api.do(t, http.MethodPost, "/api/habits", token, map[string]string{"title": "Read"})
	require.Equal(t, http.StatusCreated, rec.Code)
	habitID := decodeBody(t, rec)["habitId"].(string)

	rec = api.do(t, http.MethodPatch, "/api/habits/"+habitID+"/toggle", token, map[string]string{
		"date": "15-03-2026",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHabitsAreScopedToOwner(t *testing.T) {
	api := newTestAPI(t)
	tokenA, _ := api.registerUser(t, "casey", "casey@example.com")
	tokenB, _ := api.registerUser(t, "sam", "sam@example.com")

	rec := api.do(t, http.MethodPost, "/api/habits", tokenA, map[string]string{"title": "Read"})
	require.Equal(t, http.StatusCreated, rec.Code)
	habitID := decodeBody(t, rec)["habitId"].(string)

	rec = api.do(t, http.MethodDelete, "/api/habits/"+habitID, tokenB, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminSubtreeRequiresAdminRole(t *testing.T) {
	api := newTestAPI(t)
	token, userID := api.registerUser(t, "casey", "casey@example.com")

	rec := api.do(t, http.MethodGet, "/api/admin/users", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	api.promoteToAdmin(t, userID)
	// Existing token now resolves to an admin account.
	rec = api.do(t, http.MethodGet, "/api/admin/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminUserManagement(t *testing.T) {
	api := newTestAPI(t)
	token, adminID := api.registerUser(t, "root", "root@example.com")
	api.promoteToAdmin(t, adminID)

	rec := api.do(t, http.MethodPost, "/api/admin/create-user", token, map[string]string{
		"username": "casey", "email": "casey@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	newID := decodeBody(t, rec)["userId"].(string)

	rec = api.do(t, http.MethodPut, "/api/admin/users/"+newID, token, map[string]interface{}{
		"isActive": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, decodeBody(t, rec)["isActive"])

	rec = api.do(t, http.MethodDelete, "/api/admin/users/"+newID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Admin accounts themselves cannot be deleted.
	rec = api.do(t, http.MethodDelete, "/api/admin/users/"+adminID, token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserIntelligenceEndpoint(t *testing.T) {
	api := newTestAPI(t)
	adminToken, adminID := api.registerUser(t, "root", "root@example.com")
	api.promoteToAdmin(t, adminID)
	userToken, userID := api.registerUser(t, "casey", "casey@example.com")

	rec := api.do(t, http.MethodPost, "/api/habits", userToken, map[string]string{"title": "Read"})
	require.Equal(t, http.StatusCreated, rec.Code)
	habitID := decodeBody(t, rec)["habitId"].(string)
	today := time.Now().UTC().Format(model.DateLayout)
	rec = api.do(t, http.MethodPatch, "/api/habits/"+habitID+"/toggle", userToken, map[string]string{
		"date": today,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/admin/user-intelligence/"+userID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	insight := body["intelligence"].(map[string]interface{})
	require.Equal(t, true, insight["markedToday"])
	require.NotEmpty(t, body["habits"])
	require.NotEmpty(t, body["logs"])

	rec = api.do(t, http.MethodGet, "/api/admin/user-intelligence/no-such-user", adminToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeactivatedAccountTokenRejected(t *testing.T) {
	api := newTestAPI(t)
	adminToken, adminID := api.registerUser(t, "root", "root@example.com")
	api.promoteToAdmin(t, adminID)
	userToken, userID := api.registerUser(t, "casey", "casey@example.com")

	rec := api.do(t, http.MethodPut, "/api/admin/users/"+userID, adminToken, map[string]interface{}{
		"isActive": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/habits", userToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.registerUser(t, "casey", "casey@example.com")

	rec := api.do(t, http.MethodPost, "/api/auth/logout", token, map[string]int{"durationMinutes": 42})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/habits", token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
