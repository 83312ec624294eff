package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"quill/internal/auth"
	"quill/internal/config"
	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-that-is-long-enough-123"

type testEnv struct {
	db     *gorm.DB
	srv    *Server
	super  *models.User
	admin  *models.User
	member *models.User
}

// newTestEnv builds a server on SQLite without Redis or SMTP. Email notifications
// are switched off so submissions succeed without a degraded warning.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	cfg := &config.Config{
		Env:          "test",
		JWTSecret:    testSecret,
		FeatureFlags: "status_request_email=off,status_request_inapp=on",
	}
	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)

	return &testEnv{
		db:     db,
		srv:    srv,
		super:  testutil.CreateUser(t, db, models.RoleSuperAdmin),
		admin:  testutil.CreateUser(t, db, models.RoleAdmin),
		member: testutil.CreateUser(t, db, models.RoleRegular),
	}
}

func (e *testEnv) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, u.ID, u.Username, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path string, as *models.User, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, as))
	}

	resp, err := e.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (e *testEnv) doList(t *testing.T, path string, as *models.User) (*http.Response, []map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+e.token(t, as))
	resp, err := e.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []map[string]any
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (e *testEnv) reloadUser(t *testing.T, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, e.db.First(&u, id).Error)
	return u
}

func requestID(t *testing.T, body map[string]any) uint {
	t.Helper()
	req, ok := body["request"].(map[string]any)
	require.True(t, ok, "response has no request: %v", body)
	return uint(req["id"].(float64))
}

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "up", body["status"])

	resp, body = env.do(t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unavailable", checks["redis"])
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing token", func(t *testing.T) {
		resp, body := env.do(t, http.MethodGet, "/api/admin/my-status-change-requests", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, models.CodeUnauthorized, body["code"])
	})

	t.Run("bad signature", func(t *testing.T) {
		tok, err := auth.IssueToken("another-secret-that-is-long-enough-xx", env.member.ID, env.member.Username, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/admin/my-status-change-requests", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := env.srv.App().Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("deleted user", func(t *testing.T) {
		gone := testutil.CreateUser(t, env.db, models.RoleAdmin)
		tok := env.token(t, gone)
		require.NoError(t, env.db.Delete(&models.User{}, gone.ID).Error)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/my-status-change-requests", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := env.srv.App().Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestSetAdminStatus(t *testing.T) {
	t.Run("super admin applies immediately", func(t *testing.T) {
		env := newTestEnv(t)

		resp, body := env.do(t, http.MethodPost, "/api/admin/set-admin", env.super,
			map[string]any{"user_id": env.member.ID, "admin": true})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "applied", body["outcome"])
		user := body["user"].(map[string]any)
		assert.Equal(t, true, user["is_admin"])
		assert.True(t, env.reloadUser(t, env.member.ID).IsAdmin)
	})

	t.Run("admin files a pending request", func(t *testing.T) {
		env := newTestEnv(t)

		resp, body := env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin,
			map[string]any{"user_id": env.member.ID, "action": "promote", "reason": "helps moderate"})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "pending", body["outcome"])
		assert.Equal(t, "Request created. Awaiting super admin approval.", body["message"])
		assert.NotContains(t, body, "warning")
		assert.False(t, env.reloadUser(t, env.member.ID).IsAdmin)

		var inApp int64
		require.NoError(t, env.db.Model(&models.Notification{}).Where("notification_for_id = ?", env.super.ID).Count(&inApp).Error)
		assert.Equal(t, int64(1), inApp)
	})

	t.Run("legacy userId field", func(t *testing.T) {
		env := newTestEnv(t)

		resp, body := env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin,
			map[string]any{"userId": env.member.ID, "admin": true})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "pending", body["outcome"])
	})

	t.Run("duplicate pending request conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		payload := map[string]any{"user_id": env.member.ID, "action": "promote"}

		resp, _ := env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin, payload)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		resp, body := env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin, payload)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, models.CodeConflict, body["code"])
	})

	t.Run("missing action and admin", func(t *testing.T) {
		env := newTestEnv(t)

		resp, body := env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin,
			map[string]any{"user_id": env.member.ID})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeValidation, body["code"])
	})

	t.Run("unknown target", func(t *testing.T) {
		env := newTestEnv(t)

		resp, body := env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin,
			map[string]any{"user_id": 999999, "admin": true})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, models.CodeNotFound, body["code"])
	})

	t.Run("super admin cannot demote self", func(t *testing.T) {
		env := newTestEnv(t)

		resp, body := env.do(t, http.MethodPost, "/api/admin/set-admin", env.super,
			map[string]any{"user_id": env.super.ID, "admin": false})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeSelfDemotion, body["code"])
		assert.True(t, env.reloadUser(t, env.super.ID).IsAdmin)
	})
}

func TestSetAdminStatus_DefaultConfigDuplicateConflicts(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "test")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("SMTP_HOST", "")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 1, cfg.StatusChangeRateLimit)

	db := testutil.NewTestDB(t)
	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)
	env := &testEnv{
		db:     db,
		srv:    srv,
		super:  testutil.CreateUser(t, db, models.RoleSuperAdmin),
		admin:  testutil.CreateUser(t, db, models.RoleAdmin),
		member: testutil.CreateUser(t, db, models.RoleRegular),
	}
	payload := map[string]any{"user_id": env.member.ID, "action": "promote"}

	resp, _ := env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin, payload)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin, payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeConflict, body["code"])

	resp, body = env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin,
		map[string]any{"user_id": env.member.ID, "action": "demote"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, models.CodeRateLimited, body["code"])
}

func TestSetAdminStatusDegradedWhenMailUnconfigured(t *testing.T) {
	db := testutil.NewTestDB(t)
	srv, err := NewServerWithDeps(&config.Config{JWTSecret: testSecret}, db, nil)
	require.NoError(t, err)
	env := &testEnv{
		db:     db,
		srv:    srv,
		super:  testutil.CreateUser(t, db, models.RoleSuperAdmin),
		admin:  testutil.CreateUser(t, db, models.RoleAdmin),
		member: testutil.CreateUser(t, db, models.RoleRegular),
	}

	resp, body := env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin,
		map[string]any{"user_id": env.member.ID, "admin": true})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "pending", body["outcome"])
	assert.Equal(t, models.CodeNotificationFailed, body["code"])
	assert.NotEmpty(t, body["warning"])

	var req models.AdminStatusChangeRequest
	require.NoError(t, db.First(&req, requestID(t, body)).Error)
	assert.Equal(t, models.StatusChangeStatusPending, req.Status)
	assert.Contains(t, req.Notes, "mail transport is not configured")
}

func TestReviewFlow(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin,
		map[string]any{"user_id": env.member.ID, "action": "promote"})
	id := requestID(t, body)

	t.Run("pending list is super admin only", func(t *testing.T) {
		resp, _ := env.doList(t, "/api/admin/status-change-requests", env.admin)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, list := env.doList(t, "/api/admin/status-change-requests", env.super)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, list, 1)
		assert.Equal(t, "pending", list[0]["status"])
	})

	t.Run("admin cannot approve", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/api/admin/status-change-requests/"+itoa(id)+"/approve", env.admin, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, models.CodeForbidden, body["code"])
		assert.False(t, env.reloadUser(t, env.member.ID).IsAdmin)
	})

	t.Run("super admin approves", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/api/admin/status-change-requests/"+itoa(id)+"/approve", env.super, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		req := body["request"].(map[string]any)
		assert.Equal(t, "approved", req["status"])
		assert.Equal(t, float64(env.super.ID), req["reviewed_by_user_id"])
		assert.True(t, env.reloadUser(t, env.member.ID).IsAdmin)
	})

	t.Run("second resolution is rejected", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/api/admin/status-change-requests/"+itoa(id)+"/reject", env.super,
			map[string]any{"notes": "too late"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Request not found or already processed", body["error"])
	})

	t.Run("status filter", func(t *testing.T) {
		resp, list := env.doList(t, "/api/admin/status-change-requests?status=approved", env.super)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, list, 1)

		resp, list = env.doList(t, "/api/admin/status-change-requests", env.super)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, list)
	})
}

func TestRejectWithoutBody(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin,
		map[string]any{"user_id": env.member.ID, "action": "promote"})
	id := requestID(t, body)

	resp, body := env.do(t, http.MethodPost, "/api/admin/status-change-requests/"+itoa(id)+"/reject", env.super, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	req := body["request"].(map[string]any)
	assert.Equal(t, "rejected", req["status"])
	assert.False(t, env.reloadUser(t, env.member.ID).IsAdmin)
}

func TestInvalidRequestID(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/admin/status-change-requests/abc/approve", env.super, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid ID", body["error"])
}

func TestMyRequestsAndDelete(t *testing.T) {
	env := newTestEnv(t)
	other := testutil.CreateUser(t, env.db, models.RoleAdmin)

	_, body := env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin,
		map[string]any{"user_id": env.member.ID, "action": "promote"})
	id := requestID(t, body)

	resp, list := env.doList(t, "/api/admin/my-status-change-requests", env.admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)

	resp, list = env.doList(t, "/api/admin/my-status-change-requests", other)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, list)

	resp, body = env.do(t, http.MethodDelete, "/api/admin/status-change-requests/"+itoa(id), other, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeForbidden, body["code"])

	resp, _ = env.do(t, http.MethodDelete, "/api/admin/delete-status-change-request/"+itoa(id), env.admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodDelete, "/api/admin/status-change-requests/"+itoa(id), env.admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, body["code"])
}

func TestGetAllUsers(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/admin/users", env.member, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/admin/users?page=1&limit=2", env.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), body["total_users"])
	assert.Equal(t, float64(2), body["limit"])
	assert.Len(t, body["users"], 2)

	resp, body = env.do(t, http.MethodGet, "/api/admin/users?q="+url.QueryEscape(env.member.Username), env.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total_users"])
}

func TestSearchUsersEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/admin/search-users", env.super,
		map[string]any{"query": env.member.Email})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := body["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, float64(env.member.ID), users[0].(map[string]any)["id"])

	resp, body = env.do(t, http.MethodPost, "/api/admin/search-users", env.admin,
		map[string]any{"query": ""})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["users"])

	resp, _ = env.do(t, http.MethodPost, "/api/admin/search-users", env.member,
		map[string]any{"query": env.admin.Username})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBulkUserAction(t *testing.T) {
	env := newTestEnv(t)
	second := testutil.CreateUser(t, env.db, models.RoleRegular)

	resp, _ := env.do(t, http.MethodPost, "/api/admin/bulk-user-action", env.admin,
		map[string]any{"user_ids": []uint{env.member.ID}, "action": "promote"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/admin/bulk-user-action", env.super,
		map[string]any{"userIds": []uint{env.member.ID, second.ID, 424242}, "action": "promote"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["succeeded"])
	assert.Equal(t, float64(1), body["failed"])
	assert.True(t, env.reloadUser(t, second.ID).IsAdmin)

	resp, body = env.do(t, http.MethodPost, "/api/admin/bulk-user-action", env.super,
		map[string]any{"user_ids": []uint{env.member.ID}, "action": "explode"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, body["code"])
}

func TestNotificationsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	_, _ = env.do(t, http.MethodPost, "/api/admin/set-admin", env.admin,
		map[string]any{"user_id": env.member.ID, "action": "promote"})

	resp, list := env.doList(t, "/api/admin/notifications", env.super)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	id := uint(list[0]["id"].(float64))

	resp, body := env.do(t, http.MethodPost, "/api/admin/notifications/seen", env.super,
		map[string]any{"ids": []uint{id}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["updated"])

	resp, _ = env.doList(t, "/api/admin/notifications", env.member)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestFeatureFlagsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/admin/feature-flags", env.super, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	flags := body["flags"].([]any)
	require.Len(t, flags, 2)

	email := flags[0].(map[string]any)
	assert.Equal(t, "status_request_email", email["name"])
	assert.Equal(t, "off", email["rule"])
	assert.Equal(t, false, email["enabled"])

	inApp := flags[1].(map[string]any)
	assert.Equal(t, "status_request_inapp", inApp["name"])
	assert.Equal(t, true, inApp["enabled"])

	resp, _ = env.do(t, http.MethodGet, "/api/admin/feature-flags", env.admin, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
