package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var boundEnv = []string{
	"TOKEN", "JIRA_PROJECT_KEY", "JIRA_HOSTNAME", "JIRA_TRANSITION_ID",
	"GITHUB_HEAD_REF", "GITHUB_REF", "JIRA_FIX_VERSION", "LOG_LEVEL",
	"LOG_FORMAT", "SENTRY_DSN", "ENVIRONMENT", "JIRA_TIMEOUT",
	"JIRA_MAX_RETRIES", "JIRA_USE_KEYRING", "JIRA_DRY_RUN",
}

// jiraStub counts requests and answers the three calls of a run.
type jiraStub struct {
	mu               sync.Mutex
	calls            []string
	rejectTransition bool
}

func (s *jiraStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls = append(s.calls, r.Method+" "+r.URL.Path)
	reject := s.rejectTransition
	s.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/rest/api/2/issue/PROJ-1234":
		_, _ = w.Write([]byte(`{"id":"10042","key":"PROJ-1234"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/rest/api/2/issue/10042/transitions":
		if reject {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPut && r.URL.Path == "/rest/api/2/issue/10042":
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && r.URL.Path == "/rest/api/2/myself":
		_, _ = w.Write([]byte(`{"displayName":"CI Bot"}`))
	default:
		http.NotFound(w, r)
	}
}

func (s *jiraStub) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func setupEnv(t *testing.T) (*jiraStub, *httptest.Server) {
	t.Helper()

	for _, env := range boundEnv {
		t.Setenv(env, "")
	}

	stub := &jiraStub{}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	t.Setenv("TOKEN", "secret")
	t.Setenv("JIRA_PROJECT_KEY", "PROJ")
	t.Setenv("JIRA_HOSTNAME", server.URL)
	t.Setenv("JIRA_TRANSITION_ID", "31")
	t.Setenv("GITHUB_HEAD_REF", "feature/PROJ-1234-fix-login")
	return stub, server
}

func testDeps() deps {
	return deps{
		tokenLookup: func() (string, error) { return "", errors.New("no keyring in tests") },
		storeToken:  func(string) error { return nil },
		deleteToken: func() error { return nil },
		promptToken: func() (string, error) { return "", errors.New("no terminal in tests") },
	}
}

func run(t *testing.T, d deps, stdin string, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), d, args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExecute_TransitionsIssue(t *testing.T) {
	stub, _ := setupEnv(t)
	t.Setenv("JIRA_FIX_VERSION", "v1.4.0")

	code, _, stderr := run(t, testDeps(), "")

	assert.Equal(t, 0, code)
	assert.Equal(t, []string{
		"GET /rest/api/2/issue/PROJ-1234",
		"POST /rest/api/2/issue/10042/transitions",
		"PUT /rest/api/2/issue/10042",
	}, stub.recorded())
	assert.Contains(t, stderr, "issue transitioned")
}

func TestExecute_MissingHostnameExitsBeforeNetwork(t *testing.T) {
	stub, _ := setupEnv(t)
	t.Setenv("JIRA_HOSTNAME", "")

	code, _, stderr := run(t, testDeps(), "")

	assert.Equal(t, 1, code)
	assert.Empty(t, stub.recorded())
	assert.Contains(t, stderr, "JIRA_HOSTNAME")
	assert.NotContains(t, stderr, "Error:")
}

func TestExecute_RejectedTransitionStillExitsZero(t *testing.T) {
	stub, _ := setupEnv(t)
	stub.mu.Lock()
	stub.rejectTransition = true
	stub.mu.Unlock()

	code, _, stderr := run(t, testDeps(), "")

	assert.Equal(t, 0, code)
	assert.Contains(t, stderr, "transition not applied, ticket not moved")
}

func TestExecute_SentryBranchIsNoOp(t *testing.T) {
	stub, _ := setupEnv(t)
	t.Setenv("GITHUB_HEAD_REF", "sentry/hotfix-5678")

	code, _, stderr := run(t, testDeps(), "")

	assert.Equal(t, 0, code)
	assert.Empty(t, stub.recorded())
	assert.Contains(t, stderr, "no issue found to transition")
}

func TestExecute_FlagsOverrideEnv(t *testing.T) {
	stub, _ := setupEnv(t)
	t.Setenv("GITHUB_HEAD_REF", "main")

	code, _, _ := run(t, testDeps(), "", "--branch", "bugfix/PROJ-1234", "--dry-run")

	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"GET /rest/api/2/issue/PROJ-1234"}, stub.recorded())
}

func TestExecute_JSONLogs(t *testing.T) {
	setupEnv(t)
	t.Setenv("LOG_FORMAT", "json")

	code, _, stderr := run(t, testDeps(), "")

	assert.Equal(t, 0, code)
	assert.Contains(t, stderr, `"msg":"issue transitioned"`)
	assert.Contains(t, stderr, `"run_id":`)
}

func TestExecute_UnknownFlag(t *testing.T) {
	setupEnv(t)

	code, _, stderr := run(t, testDeps(), "", "--nope")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error: unknown flag: --nope")
}

func TestExtractCommand(t *testing.T) {
	stub, _ := setupEnv(t)

	code, stdout, _ := run(t, testDeps(), "", "extract", "feature/PROJ-1234-fix-login")

	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "1234")
	assert.Contains(t, stdout, "would look up PROJ-1234")
	assert.Empty(t, stub.recorded())
}

func TestExtractCommand_ListsProjectKeys(t *testing.T) {
	setupEnv(t)

	code, stdout, _ := run(t, testDeps(), "", "extract", "feature/PROJ-1234-ABC-77-proj-88")

	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "PROJ-1234, ABC-77, PROJ-88")
	assert.Contains(t, stdout, "PROJ-1234, PROJ-88")
	assert.Contains(t, stdout, "proj keys")
}

func TestExtractCommand_NoReference(t *testing.T) {
	setupEnv(t)

	code, stdout, _ := run(t, testDeps(), "", "extract", "--project", "abc", "sentry/hotfix-5678")

	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "ABC")
	assert.Contains(t, stdout, "no issue number")
}

func TestCheckCommand(t *testing.T) {
	stub, _ := setupEnv(t)

	code, stdout, _ := run(t, testDeps(), "", "check")

	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "CI Bot")
	assert.Equal(t, []string{"GET /rest/api/2/myself"}, stub.recorded())
}

func TestCheckCommand_MissingToken(t *testing.T) {
	setupEnv(t)
	t.Setenv("TOKEN", "")

	code, _, stderr := run(t, testDeps(), "", "check")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "TOKEN")
}

func TestKeyringFallback(t *testing.T) {
	stub, _ := setupEnv(t)
	t.Setenv("TOKEN", "")

	d := testDeps()
	d.tokenLookup = func() (string, error) { return "stored", nil }

	code, _, _ := run(t, d, "", "--keyring", "--dry-run")

	assert.Equal(t, 0, code)
	assert.Len(t, stub.recorded(), 1)
}

func TestTokenSet_FromStdin(t *testing.T) {
	setupEnv(t)

	var stored string
	d := testDeps()
	d.storeToken = func(token string) error {
		stored = token
		return nil
	}

	code, stdout, _ := run(t, d, "  pat-123  \n", "token", "set")

	require.Equal(t, 0, code)
	assert.Equal(t, "pat-123", stored)
	assert.Contains(t, stdout, "token stored")
}

func TestTokenSet_Empty(t *testing.T) {
	setupEnv(t)

	code, _, stderr := run(t, testDeps(), "\n", "token", "set")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "empty token")
}

func TestTokenDelete(t *testing.T) {
	setupEnv(t)

	deleted := false
	d := testDeps()
	d.deleteToken = func() error {
		deleted = true
		return nil
	}

	code, _, _ := run(t, d, "", "token", "delete")

	assert.Equal(t, 0, code)
	assert.True(t, deleted)
}
