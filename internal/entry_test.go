package internal

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/crmdesk/internal/mcpserver"
	"github.com/starford/crmdesk/internal/sse"
	"github.com/starford/crmdesk/internal/testutil"
)

const testToken = "s3cret-token"

func testRouter(t *testing.T) (http.Handler, *bytes.Buffer) {
	t.Helper()
	root, _ := testutil.TestFixtures(t)
	cfg := NewDefaultConfig()
	cfg.Source.Fixtures = root
	cfg.Auth = AuthConfig{Mode: AuthModeToken, Token: testToken}

	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)

	c, err := newCore(context.Background(), &application{config: cfg}, discardLogger(), broker)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.close)

	mcpSrv, err := mcpserver.New(c.leads, c.messages, c.registry)
	if err != nil {
		t.Fatal(err)
	}
	var accessLog bytes.Buffer
	return newRouter(cfg, c, broker, mcpSrv, &accessLog), &accessLog
}

func TestRouter_QueryTokenNotLogged(t *testing.T) {
	router, accessLog := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/leads?access_token="+testToken+"&search=ann", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	line := accessLog.String()
	if strings.Contains(line, testToken) {
		t.Errorf("access log leaks the token: %q", line)
	}
	if !strings.Contains(line, "/api/leads?search=ann") {
		t.Errorf("access log = %q, want the request path without the token", line)
	}
}

func TestRouter_BadQueryTokenNotLogged(t *testing.T) {
	router, accessLog := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/leads?access_token=wrong-guess", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if strings.Contains(accessLog.String(), "wrong-guess") {
		t.Errorf("access log leaks the token: %q", accessLog.String())
	}
}

func TestRouter_HealthUnauthenticated(t *testing.T) {
	router, _ := testRouter(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, w.Code)
		}
	}
}
