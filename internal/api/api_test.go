package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
	"github.com/joescharf/issuetracker/internal/tracker"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestServer(t *testing.T, opts Options) http.Handler {
	t.Helper()
	opts.Logger = quietLogger()
	svc := tracker.New(store.NewMemoryStore(), opts.Logger)
	return NewServer(svc, opts).Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doForm(t *testing.T, router http.Handler, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeIssue(t *testing.T, w *httptest.ResponseRecorder) models.Issue {
	t.Helper()
	var issue models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issue))
	return issue
}

func decodeIssues(t *testing.T, w *httptest.ResponseRecorder) []models.Issue {
	t.Helper()
	var issues []models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issues))
	return issues
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var res map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func createIssue(t *testing.T, router http.Handler, project string, body map[string]any) models.Issue {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/issues/"+project, body)
	require.Equal(t, http.StatusOK, w.Code)
	issue := decodeIssue(t, w)
	require.NotEmpty(t, issue.ID)
	return issue
}

// --- Create ---

func TestCreateIssue_EveryField(t *testing.T) {
	router := setupTestServer(t, Options{})

	w := doJSON(t, router, "POST", "/api/issues/test", map[string]any{
		"issue_title": "Test Title",
		"issue_text":  "Test Text",
		"created_by":  "Tester",
		"assigned_to": "Chai",
		"status_text": "In Progress",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	issue := decodeIssue(t, w)
	assert.NotEmpty(t, issue.ID)
	assert.Equal(t, "Test Title", issue.Title)
	assert.Equal(t, "Test Text", issue.Text)
	assert.Equal(t, "Tester", issue.CreatedBy)
	assert.Equal(t, "Chai", issue.AssignedTo)
	assert.Equal(t, "In Progress", issue.StatusText)
	assert.True(t, issue.Open)
	assert.False(t, issue.CreatedOn.IsZero())
	assert.Equal(t, issue.CreatedOn, issue.UpdatedOn)
}

func TestCreateIssue_RequiredFieldsOnly_Form(t *testing.T) {
	router := setupTestServer(t, Options{})

	w := doForm(t, router, "POST", "/api/issues/test", url.Values{
		"issue_title": {"Required Fields Only"},
		"issue_text":  {"Only required"},
		"created_by":  {"Tester"},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	raw := decodeResult(t, w)
	for _, key := range []string{"_id", "issue_title", "issue_text", "created_by", "assigned_to", "status_text", "created_on", "updated_on", "open"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "", raw["assigned_to"])
	assert.Equal(t, "", raw["status_text"])
	assert.Equal(t, true, raw["open"])
}

func TestCreateIssue_Multipart(t *testing.T) {
	router := setupTestServer(t, Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("issue_title", "T"))
	require.NoError(t, mw.WriteField("issue_text", "X"))
	require.NoError(t, mw.WriteField("created_by", "A"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/issues/test", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "T", decodeIssue(t, w).Title)
}

func TestCreateIssue_MissingRequiredFields(t *testing.T) {
	router := setupTestServer(t, Options{})

	for _, body := range []map[string]any{
		{},
		{"issue_title": "T", "issue_text": "X"},
		{"issue_title": "T", "created_by": "A"},
		{"issue_text": "X", "created_by": "A"},
		{"issue_title": "", "issue_text": "X", "created_by": "A"},
	} {
		w := doJSON(t, router, "POST", "/api/issues/test", body)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"error":"required field(s) missing"}`, w.Body.String())
	}

	w := doJSON(t, router, "GET", "/api/issues/test", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCreateIssue_InvalidJSON(t *testing.T) {
	router := setupTestServer(t, Options{})

	req := httptest.NewRequest("POST", "/api/issues/test", strings.NewReader(`{"issue_title":`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", decodeResult(t, w)["error"])
}

// --- List ---

func TestListIssues_EmptyProject(t *testing.T) {
	router := setupTestServer(t, Options{})

	w := doJSON(t, router, "GET", "/api/issues/nothing", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())
}

func TestListIssues_Filters(t *testing.T) {
	router := setupTestServer(t, Options{})

	a := createIssue(t, router, "test", map[string]any{"issue_title": "a", "issue_text": "x", "created_by": "Tester"})
	createIssue(t, router, "test", map[string]any{"issue_title": "b", "issue_text": "x", "created_by": "Other"})
	c := createIssue(t, router, "test", map[string]any{"issue_title": "c", "issue_text": "x", "created_by": "Tester"})
	createIssue(t, router, "elsewhere", map[string]any{"issue_title": "d", "issue_text": "x", "created_by": "Tester"})

	w := doJSON(t, router, "PUT", "/api/issues/test", map[string]any{"_id": c.ID, "open": "false"})
	require.Equal(t, ResultUpdated, decodeResult(t, w)["result"])

	t.Run("one filter", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/issues/test?created_by=Tester", nil)
		issues := decodeIssues(t, w)
		require.Len(t, issues, 2)
		for _, issue := range issues {
			assert.Equal(t, "Tester", issue.CreatedBy)
		}
	})

	t.Run("multiple filters", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/issues/test?created_by=Tester&open=true", nil)
		issues := decodeIssues(t, w)
		require.Len(t, issues, 1)
		assert.Equal(t, a.ID, issues[0].ID)
		assert.True(t, issues[0].Open)
	})

	t.Run("open other than true", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/issues/test?open=nope", nil)
		issues := decodeIssues(t, w)
		require.Len(t, issues, 1)
		assert.Equal(t, c.ID, issues[0].ID)
	})

	t.Run("empty value is not a filter", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/issues/test?assigned_to=&open=", nil)
		assert.Len(t, decodeIssues(t, w), 3)
	})

	t.Run("no match", func(t *testing.T) {
		w := doJSON(t, router, "GET", "/api/issues/test?created_by=Tester&issue_title=b", nil)
		assert.Equal(t, "[]\n", w.Body.String())
	})
}

// --- Update ---

func TestUpdateIssue(t *testing.T) {
	router := setupTestServer(t, Options{})
	issue := createIssue(t, router, "test", map[string]any{"issue_title": "T", "issue_text": "X", "created_by": "A"})
	time.Sleep(2 * time.Millisecond)

	w := doJSON(t, router, "PUT", "/api/issues/test", map[string]any{
		"_id":         issue.ID,
		"issue_title": "Updated",
		"assigned_to": "B",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":"successfully updated","_id":"`+issue.ID+`"}`, w.Body.String())

	w = doJSON(t, router, "GET", "/api/issues/test?_id="+issue.ID, nil)
	issues := decodeIssues(t, w)
	require.Len(t, issues, 1)
	got := issues[0]
	assert.Equal(t, "Updated", got.Title)
	assert.Equal(t, "B", got.AssignedTo)
	assert.Equal(t, "X", got.Text)
	assert.Equal(t, "A", got.CreatedBy)
	assert.True(t, got.Open)
	assert.True(t, got.UpdatedOn.After(issue.UpdatedOn))
	assert.Equal(t, issue.CreatedOn, got.CreatedOn)
}

func TestUpdateIssue_JSONBooleanOpen(t *testing.T) {
	router := setupTestServer(t, Options{})
	issue := createIssue(t, router, "test", map[string]any{"issue_title": "T", "issue_text": "X", "created_by": "A"})

	w := doJSON(t, router, "PUT", "/api/issues/test", map[string]any{"_id": issue.ID, "open": false})
	require.Equal(t, ResultUpdated, decodeResult(t, w)["result"])
	w = doJSON(t, router, "GET", "/api/issues/test", nil)
	assert.False(t, decodeIssues(t, w)[0].Open)

	w = doJSON(t, router, "PUT", "/api/issues/test", map[string]any{"_id": issue.ID, "open": true})
	require.Equal(t, ResultUpdated, decodeResult(t, w)["result"])
	w = doJSON(t, router, "GET", "/api/issues/test", nil)
	assert.True(t, decodeIssues(t, w)[0].Open)
}

func TestUpdateIssue_MissingID(t *testing.T) {
	router := setupTestServer(t, Options{})

	w := doJSON(t, router, "PUT", "/api/issues/test", map[string]any{"issue_title": "x", "open": "false"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"error":"missing _id"}`, w.Body.String())

	w = doJSON(t, router, "PUT", "/api/issues/test", map[string]any{"_id": "", "issue_title": "x"})
	assert.JSONEq(t, `{"error":"missing _id"}`, w.Body.String())
}

func TestUpdateIssue_NoFields(t *testing.T) {
	router := setupTestServer(t, Options{})
	issue := createIssue(t, router, "test", map[string]any{"issue_title": "T", "issue_text": "X", "created_by": "A"})

	w := doJSON(t, router, "PUT", "/api/issues/test", map[string]any{"_id": issue.ID})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"error":"no update field(s) sent","_id":"`+issue.ID+`"}`, w.Body.String())

	w = doJSON(t, router, "GET", "/api/issues/test", nil)
	issues := decodeIssues(t, w)
	require.Len(t, issues, 1)
	assert.Equal(t, issue, issues[0])
}

func TestUpdateIssue_InvalidID(t *testing.T) {
	router := setupTestServer(t, Options{})
	createIssue(t, router, "test", map[string]any{"issue_title": "T", "issue_text": "X", "created_by": "A"})

	w := doJSON(t, router, "PUT", "/api/issues/test", map[string]any{"_id": "invalid", "issue_title": "x"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"error":"could not update","_id":"invalid"}`, w.Body.String())

	w = doJSON(t, router, "PUT", "/api/issues/unknown-project", map[string]any{"_id": "invalid", "issue_title": "x"})
	assert.JSONEq(t, `{"error":"could not update","_id":"invalid"}`, w.Body.String())
}

func TestUpdateIssue_EmptyStringClearsOptionalField(t *testing.T) {
	router := setupTestServer(t, Options{})
	issue := createIssue(t, router, "test", map[string]any{
		"issue_title": "T", "issue_text": "X", "created_by": "A", "status_text": "doing",
	})

	w := doForm(t, router, "PUT", "/api/issues/test", url.Values{"_id": {issue.ID}, "status_text": {""}})
	require.Equal(t, ResultUpdated, decodeResult(t, w)["result"])

	w = doJSON(t, router, "GET", "/api/issues/test", nil)
	assert.Equal(t, "", decodeIssues(t, w)[0].StatusText)
}

// --- Delete ---

func TestDeleteIssue(t *testing.T) {
	router := setupTestServer(t, Options{})
	a := createIssue(t, router, "test", map[string]any{"issue_title": "a", "issue_text": "X", "created_by": "A"})
	b := createIssue(t, router, "test", map[string]any{"issue_title": "b", "issue_text": "X", "created_by": "A"})

	w := doJSON(t, router, "DELETE", "/api/issues/test", map[string]any{"_id": a.ID})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":"successfully deleted","_id":"`+a.ID+`"}`, w.Body.String())

	w = doJSON(t, router, "GET", "/api/issues/test?_id="+a.ID, nil)
	assert.Equal(t, "[]\n", w.Body.String())

	w = doJSON(t, router, "GET", "/api/issues/test", nil)
	issues := decodeIssues(t, w)
	require.Len(t, issues, 1)
	assert.Equal(t, b.ID, issues[0].ID)

	w = doJSON(t, router, "DELETE", "/api/issues/test", map[string]any{"_id": a.ID})
	assert.JSONEq(t, `{"error":"could not delete","_id":"`+a.ID+`"}`, w.Body.String())
}

func TestDeleteIssue_FormBody(t *testing.T) {
	router := setupTestServer(t, Options{})
	issue := createIssue(t, router, "test", map[string]any{"issue_title": "a", "issue_text": "X", "created_by": "A"})

	w := doForm(t, router, "DELETE", "/api/issues/test", url.Values{"_id": {issue.ID}})
	assert.JSONEq(t, `{"result":"successfully deleted","_id":"`+issue.ID+`"}`, w.Body.String())
}

func TestDeleteIssue_MissingID(t *testing.T) {
	router := setupTestServer(t, Options{})

	w := doJSON(t, router, "DELETE", "/api/issues/test", map[string]any{"issue_title": "x"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"error":"missing _id"}`, w.Body.String())
}

func TestDeleteIssue_UnknownProject(t *testing.T) {
	router := setupTestServer(t, Options{})

	w := doJSON(t, router, "DELETE", "/api/issues/nobody", map[string]any{"_id": "abc"})
	assert.JSONEq(t, `{"error":"could not delete","_id":"abc"}`, w.Body.String())
}

// --- Scenario ---

func TestIssueLifecycle(t *testing.T) {
	router := setupTestServer(t, Options{})

	w := doJSON(t, router, "POST", "/api/issues/p", map[string]any{"issue_title": "T", "issue_text": "X", "created_by": "A"})
	require.Equal(t, http.StatusOK, w.Code)
	created := decodeIssue(t, w)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Open)
	assert.Equal(t, "", created.AssignedTo)
	assert.Equal(t, "", created.StatusText)

	w = doJSON(t, router, "GET", "/api/issues/p?created_by=A", nil)
	assert.Contains(t, decodeIssues(t, w), created)

	w = doJSON(t, router, "PUT", "/api/issues/p", map[string]any{"_id": created.ID, "status_text": "done"})
	assert.JSONEq(t, `{"result":"successfully updated","_id":"`+created.ID+`"}`, w.Body.String())

	w = doJSON(t, router, "GET", "/api/issues/p", nil)
	issues := decodeIssues(t, w)
	require.Len(t, issues, 1)
	assert.Equal(t, "done", issues[0].StatusText)
	assert.Equal(t, "T", issues[0].Title)

	w = doJSON(t, router, "DELETE", "/api/issues/p", map[string]any{"_id": created.ID})
	assert.JSONEq(t, `{"result":"successfully deleted","_id":"`+created.ID+`"}`, w.Body.String())

	w = doJSON(t, router, "GET", "/api/issues/p", nil)
	assert.Empty(t, decodeIssues(t, w))

	w = doJSON(t, router, "GET", "/api/projects", nil)
	assert.JSONEq(t, `["p"]`, w.Body.String())
}

// --- Response modes and middleware ---

func TestStrictStatus(t *testing.T) {
	router := setupTestServer(t, Options{StrictStatus: true})

	w := doJSON(t, router, "POST", "/api/issues/test", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "required field(s) missing", decodeResult(t, w)["error"])

	w = doJSON(t, router, "PUT", "/api/issues/test", map[string]any{"_id": "x", "issue_title": "y"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "could not update", decodeResult(t, w)["error"])

	w = doJSON(t, router, "DELETE", "/api/issues/test", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	issue := createIssue(t, router, "test", map[string]any{"issue_title": "T", "issue_text": "X", "created_by": "A"})
	w = doJSON(t, router, "DELETE", "/api/issues/test", map[string]any{"_id": issue.ID})
	assert.Equal(t, http.StatusOK, w.Code)
}

// failingStore fails every call.
type failingStore struct{ store.MemoryStore }

var errDisk = errors.New("disk on fire")

func (*failingStore) ListIssues(context.Context, string, store.IssueFilter) ([]*models.Issue, error) {
	return nil, errDisk
}

func (*failingStore) CreateIssue(context.Context, string, *models.Issue) error { return errDisk }

func TestStoreFailure_IsInternalError(t *testing.T) {
	svc := tracker.New(&failingStore{}, quietLogger())
	router := NewServer(svc, Options{Logger: quietLogger()}).Router()

	w := doJSON(t, router, "GET", "/api/issues/test", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeResult(t, w)["error"], "disk on fire")

	w = doJSON(t, router, "POST", "/api/issues/test", map[string]any{"issue_title": "T", "issue_text": "X", "created_by": "A"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestID(t *testing.T) {
	router := setupTestServer(t, Options{})

	w := doJSON(t, router, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	router := setupTestServer(t, Options{CORS: true})

	req := httptest.NewRequest("OPTIONS", "/api/issues/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	router = setupTestServer(t, Options{})
	w = doJSON(t, router, "GET", "/api/issues/test", nil)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticHandler(t *testing.T) {
	static := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "landing")
	})
	router := setupTestServer(t, Options{Static: static})

	w := doJSON(t, router, "GET", "/", nil)
	assert.Equal(t, "landing", w.Body.String())

	w = doJSON(t, router, "GET", "/api/issues/test", nil)
	assert.Equal(t, "[]\n", w.Body.String())
}

// --- Projects & health ---

func TestListProjects(t *testing.T) {
	router := setupTestServer(t, Options{})

	w := doJSON(t, router, "GET", "/api/projects", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	fields := map[string]any{"issue_title": "t", "issue_text": "x", "created_by": "a"}
	createIssue(t, router, "web", fields)
	createIssue(t, router, "api", fields)

	w = doJSON(t, router, "GET", "/api/projects", nil)
	assert.JSONEq(t, `["api","web"]`, w.Body.String())
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	svc := tracker.New(store.NewMemoryStore(), log)
	router := NewServer(svc, Options{Logger: log}).Router()

	req := httptest.NewRequest("GET", "/api/issues/web?open=true", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	router.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	assert.Contains(t, line, "msg=request")
	assert.Contains(t, line, "method=GET")
	assert.Contains(t, line, "path=/api/issues/web")
	assert.Contains(t, line, "status=200")
	assert.Contains(t, line, "request_id=req-1")
}
