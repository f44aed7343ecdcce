package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/bugsage-dev/bugsage/internal/api/http"
	"github.com/bugsage-dev/bugsage/internal/api/http/handlers"
	"github.com/bugsage-dev/bugsage/internal/auth"
	"github.com/bugsage-dev/bugsage/internal/auth/authtest"
	"github.com/bugsage-dev/bugsage/internal/config"
	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/events"
	"github.com/bugsage-dev/bugsage/internal/observability"
	"github.com/bugsage-dev/bugsage/internal/repository/repotest"
	"github.com/bugsage-dev/bugsage/internal/service"
	"github.com/bugsage-dev/bugsage/internal/worker"
)

const cookieName = "bugsage_session"

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	app      *fiber.App
	store    *repotest.Store
	sessions *auth.SessionManager
	metrics  *observability.Metrics
}

func newTestEnv(t *testing.T, deps map[string]handlers.Pinger) *testEnv {
	t.Helper()
	store := repotest.NewStore()
	metrics := observability.NewMetrics()
	sessions := auth.NewSessionManager(auth.NewTokenManager("router-secret", time.Hour), authtest.NewSessionStore())
	dispatcher := events.NewInMemoryDispatcher(nil, metrics)

	notifications := service.NewNotificationService(store.Notifications(), dispatcher, nil)
	worker.StartNotificationWorker(notifications, nil)
	bugs := service.NewBugService(service.BugDependencies{
		BugRepo:        store.Bugs(),
		CommentRepo:    store.Comments(),
		AttachmentRepo: store.Attachments(),
		HistoryRepo:    store.History(),
		ProjectRepo:    store.Projects(),
		UserRepo:       store.Users(),
		Transactor:     store,
		Dispatcher:     dispatcher,
		Config:         config.BugsConfig{PerPage: 20, MaxPerPage: 100, DuplicateLimit: 5, SearchLimit: 20},
	})
	authService := service.NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, service.AuthDependencies{
		UserRepo: store.Users(),
		Sessions: sessions,
	})
	attachments := service.NewAttachmentService(store.Attachments(), store.Bugs(), config.UploadsConfig{
		Dir:               t.TempDir(),
		MaxBytes:          1024,
		AllowedExtensions: []string{"txt", "png"},
	}, nil)
	reports := service.NewReportService(service.ReportDependencies{ReportRepo: store.Reports(), BugRepo: store.Bugs()})

	app := httptransport.NewApp(httptransport.AppOptions{
		Name:           "bugsage-test",
		RequestTimeout: 5 * time.Second,
		Metrics:        metrics,
	}, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("bugsage", "test", deps),
		Auth:           handlers.NewAuthHandler(authService, handlers.CookieSettings{Name: cookieName}),
		Bugs:           handlers.NewBugsHandler(bugs),
		Attachments:    handlers.NewAttachmentsHandler(attachments),
		Admin:          handlers.NewAdminHandler(service.NewProjectService(store.Projects(), nil), service.NewUserService(store.Users(), nil)),
		Dashboard:      handlers.NewDashboardHandler(reports),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		AuthMiddleware: auth.NewAuthMiddleware(sessions, cookieName),
	})
	return &testEnv{app: app, store: store, sessions: sessions, metrics: metrics}
}

// login seeds a user and returns a bearer token for it.
func (e *testEnv) login(t *testing.T, name string, role domain.UserRole) (string, domain.User) {
	t.Helper()
	user := e.store.AddUser(name, strings.ToLower(name)+"@example.com", role)
	token, _, _, err := e.sessions.Start(context.Background(), user)
	require.NoError(t, err)
	return token, user
}

func (e *testEnv) do(t *testing.T, req *nethttp.Request, token string) (int, map[string]any) {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func jsonRequest(method, target string, payload any) *nethttp.Request {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

func formRequest(method, target string, values url.Values) *nethttp.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}

func TestAPI_RequiresSession(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.do(t, httptest.NewRequest(nethttp.MethodGet, "/api/bugs", nil), "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	status, _ = env.do(t, httptest.NewRequest(nethttp.MethodGet, "/api/bugs", nil), "garbage")
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	token, _ := env.login(t, "Rita", domain.UserRoleTester)
	require.NoError(t, env.sessions.End(context.Background(), token))
	status, _ = env.do(t, httptest.NewRequest(nethttp.MethodGet, "/api/bugs", nil), token)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.do(t, jsonRequest(nethttp.MethodPost, "/auth/register", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "secret1",
	}), "")
	require.Equal(t, nethttp.StatusCreated, status, body)
	assert.Equal(t, "Developer", body["user"].(map[string]any)["role"])

	status, body = env.do(t, jsonRequest(nethttp.MethodPost, "/auth/register", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "secret1",
	}), "")
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "Email already exists", body["error"])

	status, body = env.do(t, formRequest(nethttp.MethodPost, "/auth/login", url.Values{
		"email": {"alice@example.com"}, "password": {"wrong"},
	}), "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["error"])

	req := jsonRequest(nethttp.MethodPost, "/auth/login", map[string]string{"email": "alice@example.com", "password": "secret1"})
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	var session *nethttp.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == cookieName {
			session = cookie
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	check := httptest.NewRequest(nethttp.MethodGet, "/auth/check", nil)
	check.AddCookie(session)
	status, body = env.do(t, check, "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, true, body["authenticated"])

	logout := httptest.NewRequest(nethttp.MethodPost, "/auth/logout", nil)
	logout.AddCookie(session)
	status, _ = env.do(t, logout, "")
	assert.Equal(t, nethttp.StatusOK, status)

	check = httptest.NewRequest(nethttp.MethodGet, "/auth/check", nil)
	check.AddCookie(session)
	_, body = env.do(t, check, "")
	assert.Equal(t, false, body["authenticated"])
}

func TestBugLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.login(t, "Rita", domain.UserRoleTester)
	_, dev := env.login(t, "Dan", domain.UserRoleDeveloper)

	status, body := env.do(t, jsonRequest(nethttp.MethodPost, "/api/bugs", map[string]any{
		"title": "Login crashes", "description": "Steps", "priority": "High",
	}), token)
	require.Equal(t, nethttp.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	bugID := int64(body["bug_id"].(float64))

	status, body = env.do(t, jsonRequest(nethttp.MethodPost, "/api/bugs", map[string]any{
		"title": "login", "description": "again",
	}), token)
	require.Equal(t, nethttp.StatusOK, status)
	assert.NotEmpty(t, body["warning"])
	duplicates := body["duplicates"].([]any)
	require.Len(t, duplicates, 1)
	assert.Equal(t, float64(bugID), duplicates[0].(map[string]any)["bug_id"])

	status, body = env.do(t, formRequest(nethttp.MethodPost, "/api/bugs", url.Values{
		"title": {"login"}, "description": {"again"}, "project_id": {""}, "force_create": {"1"},
	}), token)
	require.Equal(t, nethttp.StatusOK, status, body)
	assert.Equal(t, true, body["success"])

	status, body = env.do(t, jsonRequest(nethttp.MethodPost, "/api/bugs", map[string]any{
		"title": "x", "description": "y", "project_id": 999999, "force_create": true,
	}), token)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "Invalid project", body["error"])
	assert.Equal(t, "project", body["details"].(map[string]any)["field"])

	target := "/api/bugs/" + itoa(bugID)
	status, body = env.do(t, jsonRequest(nethttp.MethodPut, target, map[string]any{
		"priority": "Critical", "assignee_id": dev.ID,
	}), token)
	require.Equal(t, nethttp.StatusOK, status, body)

	status, body = env.do(t, jsonRequest(nethttp.MethodPost, target+"/status", map[string]string{"status": "Resolved"}), token)
	require.Equal(t, nethttp.StatusOK, status, body)
	assert.Equal(t, "Status updated", body["message"])

	status, body = env.do(t, jsonRequest(nethttp.MethodPost, target+"/status", map[string]string{"status": "Resolved"}), token)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "Status unchanged", body["message"])

	status, _ = env.do(t, jsonRequest(nethttp.MethodPost, target+"/comments", map[string]string{"comment": "done"}), token)
	require.Equal(t, nethttp.StatusOK, status)

	status, body = env.do(t, httptest.NewRequest(nethttp.MethodGet, target, nil), token)
	require.Equal(t, nethttp.StatusOK, status)
	bug := body["bug"].(map[string]any)
	assert.Equal(t, "Resolved", bug["status"])
	assert.Equal(t, "Critical", bug["priority"])
	assert.Equal(t, "Dan", bug["assignee_name"])
	assert.Len(t, body["comments"].([]any), 1)

	status, body = env.do(t, httptest.NewRequest(nethttp.MethodGet, target+"/history", nil), token)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, body["history"].([]any), 3)

	status, body = env.do(t, jsonRequest(nethttp.MethodPut, target, map[string]any{"assignee_id": nil}), token)
	require.Equal(t, nethttp.StatusOK, status, body)
	stored, _ := env.store.Bug(bugID)
	assert.Nil(t, stored.AssigneeID)

	status, body = env.do(t, jsonRequest(nethttp.MethodPut, target, map[string]any{"unknown": 1}), token)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "no fields to update", body["error"])

	status, body = env.do(t, httptest.NewRequest(nethttp.MethodGet, "/api/bugs/search?q=LOGIN", nil), token)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, body["results"].([]any), 2)

	status, body = env.do(t, httptest.NewRequest(nethttp.MethodGet, "/api/bugs?status=Resolved", nil), token)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, body["bugs"].([]any), 1)
	assert.Equal(t, float64(1), body["pagination"].(map[string]any)["total_bugs"])
}

func TestBugNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.login(t, "Rita", domain.UserRoleTester)

	for _, target := range []string{"/api/bugs/424242", "/api/bugs/abc"} {
		status, body := env.do(t, httptest.NewRequest(nethttp.MethodGet, target, nil), token)
		assert.Equal(t, nethttp.StatusNotFound, status)
		assert.Equal(t, "Bug not found", body["error"])
		assert.Equal(t, "NOT_FOUND", body["code"])
	}

	for _, patch := range []map[string]any{{}, {"assignee_id": 777}, {"title": nil}} {
		status, body := env.do(t, jsonRequest(nethttp.MethodPut, "/api/bugs/9999", patch), token)
		assert.Equal(t, nethttp.StatusNotFound, status, patch)
		assert.Equal(t, "Bug not found", body["error"])
	}
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	devToken, dev := env.login(t, "Dan", domain.UserRoleDeveloper)
	adminToken, _ := env.login(t, "Ada", domain.UserRoleAdmin)

	status, _ := env.do(t, jsonRequest(nethttp.MethodPost, "/api/projects", map[string]string{"name": "Mobile"}), devToken)
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, body := env.do(t, jsonRequest(nethttp.MethodPost, "/api/projects", map[string]string{"name": "Mobile"}), adminToken)
	require.Equal(t, nethttp.StatusOK, status, body)
	assert.NotZero(t, body["project_id"])

	status, body = env.do(t, httptest.NewRequest(nethttp.MethodGet, "/api/projects", nil), devToken)
	require.Equal(t, nethttp.StatusOK, status)
	projects := body["projects"].([]any)
	require.Len(t, projects, 1)
	assert.Equal(t, float64(0), projects[0].(map[string]any)["bug_count"])

	target := "/api/users/" + itoa(dev.ID) + "/role"
	status, _ = env.do(t, jsonRequest(nethttp.MethodPut, target, map[string]string{"role": "Admin"}), devToken)
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, _ = env.do(t, jsonRequest(nethttp.MethodPut, target, map[string]string{"role": "Tester"}), adminToken)
	assert.Equal(t, nethttp.StatusOK, status)

	status, _ = env.do(t, jsonRequest(nethttp.MethodPut, "/api/users/9999/role", map[string]string{"role": "Tester"}), adminToken)
	assert.Equal(t, nethttp.StatusNotFound, status)
}

func TestDashboardAndNotifications(t *testing.T) {
	env := newTestEnv(t, nil)
	token, _ := env.login(t, "Rita", domain.UserRoleTester)
	devToken, dev := env.login(t, "Dan", domain.UserRoleDeveloper)

	status, body := env.do(t, httptest.NewRequest(nethttp.MethodGet, "/api/dashboard/stats", nil), token)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, body["status_counts"].(map[string]any), 4)
	assert.Len(t, body["priority_counts"].(map[string]any), 4)

	status, body = env.do(t, httptest.NewRequest(nethttp.MethodGet, "/api/dashboard/charts", nil), token)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, body["bugs_over_time"].([]any), 7)

	status, _ = env.do(t, jsonRequest(nethttp.MethodPost, "/api/bugs", map[string]any{
		"title": "T", "description": "D", "assignee_id": dev.ID,
	}), token)
	require.Equal(t, nethttp.StatusOK, status)

	status, body = env.do(t, httptest.NewRequest(nethttp.MethodGet, "/api/notifications", nil), devToken)
	require.Equal(t, nethttp.StatusOK, status)
	items := body["notifications"].([]any)
	require.Len(t, items, 1)
	id := int64(items[0].(map[string]any)["id"].(float64))

	status, _ = env.do(t, httptest.NewRequest(nethttp.MethodPost, "/api/notifications/"+itoa(id)+"/read", nil), token)
	assert.Equal(t, nethttp.StatusNotFound, status)
	status, _ = env.do(t, httptest.NewRequest(nethttp.MethodPost, "/api/notifications/"+itoa(id)+"/read", nil), devToken)
	assert.Equal(t, nethttp.StatusOK, status)
}

func TestAttachmentsUploadAndDownload(t *testing.T) {
	env := newTestEnv(t, nil)
	token, user := env.login(t, "Rita", domain.UserRoleTester)
	bug := env.store.PutBug(domain.Bug{Title: "T", Description: "D", Priority: domain.BugPriorityLow, Status: domain.BugStatusNew, ReporterID: user.ID})

	upload := func(name, content string) (int, map[string]any) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("file", name)
		require.NoError(t, err)
		_, _ = part.Write([]byte(content))
		require.NoError(t, writer.Close())
		req := httptest.NewRequest(nethttp.MethodPost, "/api/bugs/"+itoa(bug.ID)+"/attachments", &buf)
		req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
		return env.do(t, req, token)
	}

	status, body := upload("virus.exe", "x")
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "file type not allowed", body["error"])

	status, body = upload("notes.txt", "hello world")
	require.Equal(t, nethttp.StatusOK, status, body)
	id := int64(body["attachment_id"].(float64))

	req := httptest.NewRequest(nethttp.MethodGet, "/api/attachments/"+itoa(id), nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello world", string(raw))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "notes.txt")
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, map[string]handlers.Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
		"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	status, body := env.do(t, httptest.NewRequest(nethttp.MethodGet, "/health/live", nil), "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = env.do(t, httptest.NewRequest(nethttp.MethodGet, "/health/ready", nil), "")
	assert.Equal(t, nethttp.StatusServiceUnavailable, status)
	assert.Equal(t, "ok", body["details"].(map[string]any)["postgres"])

	req := httptest.NewRequest(nethttp.MethodGet, "/metrics", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "bugsage_http_requests_total")
}

func TestUnknownRouteRendersErrorBody(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.do(t, httptest.NewRequest(nethttp.MethodGet, "/nowhere", nil), "")

	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
