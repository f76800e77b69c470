package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/starford/crmdesk/internal/assistant"
	"github.com/starford/crmdesk/internal/models"
	"github.com/starford/crmdesk/internal/source"
	"github.com/starford/crmdesk/internal/store"
	"github.com/starford/crmdesk/internal/testutil"
)

// testEnv sets up a seeded SQLite source, the stores, the component registry
// and a router for testing. An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (Services, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (Services, http.Handler) {
	t.Helper()
	var src source.Source = testutil.TestSQLite(t)

	svc := Services{
		Leads:      store.NewLeads(src),
		Messages:   store.NewMessages(src),
		Components: assistant.NewRegistry(),
	}
	t.Cleanup(svc.Leads.Close)
	t.Cleanup(svc.Messages.Close)
	ctx := context.Background()
	if err := svc.Leads.FetchLeads(ctx); err != nil {
		t.Fatalf("FetchLeads: %v", err)
	}
	if err := svc.Messages.FetchMessages(ctx); err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if err := assistant.RegisterCRM(svc.Components, svc.Leads, svc.Messages); err != nil {
		t.Fatalf("RegisterCRM: %v", err)
	}
	return svc, NewRouter(svc, authEnabled, authToken, sseHandler)
}

func do(t *testing.T, router http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestCreateAndGetLead(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/leads", map[string]string{
		"name":  "Dana Reyes",
		"email": "dana@initech.example",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[models.Lead](t, w)
	if created.Status != models.StatusNew || created.Notes == nil || created.Meetings == nil {
		t.Errorf("created = %+v", created)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("missing ETag on create")
	}

	w = do(t, router, http.MethodGet, "/leads/4", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := decode[models.Lead](t, w); got.Name != "Dana Reyes" {
		t.Errorf("get = %+v", got)
	}
}

func TestCreateLead_Invalid(t *testing.T) {
	_, router := testEnv(t, "")
	for _, body := range []any{
		map[string]string{"name": "Dana"},
		map[string]string{"name": "Dana", "email": "nope"},
		map[string]string{"name": "Dana", "email": "d@x.example", "status": "Lost"},
		`{"name":"Dana","email":"d@x.example","nickname":"D"}`,
		`not json`,
	} {
		if w := do(t, router, http.MethodPost, "/leads", body); w.Code != http.StatusBadRequest {
			t.Errorf("%v: status = %d, want 400", body, w.Code)
		}
	}
}

func TestListLeads_FilterAndSort(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/leads?sortBy=company", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	resp := decode[LeadListResponse](t, w)
	if resp.Total != 3 || len(resp.Leads) != 3 || resp.Leads[0].Company != "Contoso" {
		t.Errorf("sorted = %+v", resp)
	}

	resp = decode[LeadListResponse](t, do(t, router, http.MethodGet, "/leads?search=FABRIKAM", nil))
	if len(resp.Leads) != 1 || resp.Leads[0].ID != 3 {
		t.Errorf("search = %+v", resp.Leads)
	}

	if w := do(t, router, http.MethodGet, "/leads?sortBy=age", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad sort = %d, want 400", w.Code)
	}
}

func TestUpdateLead_WithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/leads/2", nil)
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	w = do(t, router, http.MethodPatch, "/leads/2", map[string]string{"status": "Qualified"}, "If-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	updated := decode[models.Lead](t, w)
	if updated.Status != models.StatusQualified || updated.Name != "Ben Ortiz" {
		t.Errorf("updated = %+v", updated)
	}
	if w.Header().Get("ETag") == etag {
		t.Error("ETag did not change")
	}

	// Stale ETag.
	w = do(t, router, http.MethodPatch, "/leads/2", map[string]string{"status": "Closed"}, "If-Match", etag)
	if w.Code != http.StatusConflict {
		t.Errorf("stale update = %d, want 409", w.Code)
	}
}

func TestUpdateLead_WithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPatch, "/leads/1", map[string]string{"phone": "+1 555 0999"})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d", w.Code)
	}
	if got := decode[models.Lead](t, w); got.Phone != "+1 555 0999" || len(got.Meetings) != 1 {
		t.Errorf("updated = %+v", got)
	}
}

func TestUpdateLead_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPatch, "/leads/99", map[string]string{"name": "X"}); w.Code != http.StatusNotFound {
		t.Errorf("missing lead = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/leads/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", w.Code)
	}
}

func TestNotesAndMeetings(t *testing.T) {
	svc, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/leads/2/notes", map[string]string{"note": "Asked for a quote."})
	if w.Code != http.StatusCreated {
		t.Fatalf("add note = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPost, "/leads/2/meetings", map[string]any{
		"date": "2024-04-02", "time": "13:00", "description": "Kickoff",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create meeting = %d, body = %s", w.Code, w.Body.String())
	}
	m := decode[models.Meeting](t, w)
	if m.LeadID != 2 {
		t.Errorf("meeting = %+v", m)
	}

	w = do(t, router, http.MethodPatch, "/leads/2/meetings/"+strconv.Itoa(m.ID), map[string]string{"time": "15:00"})
	if w.Code != http.StatusOK {
		t.Fatalf("update meeting = %d, body = %s", w.Code, w.Body.String())
	}

	lead, _ := svc.Leads.Lead(2)
	if len(lead.Notes) != 1 || len(lead.Meetings) != 1 || lead.Meetings[0].Time != "15:00" {
		t.Errorf("lead 2 = %+v", lead)
	}

	resp := decode[MeetingListResponse](t, do(t, router, http.MethodGet, "/meetings?leadId=2", nil))
	if len(resp.Meetings) != 1 {
		t.Errorf("meetings = %+v", resp.Meetings)
	}
}

func TestCreateMeeting_UnknownLead(t *testing.T) {
	svc, router := testEnv(t, "")
	before := svc.Leads.Meetings()

	w := do(t, router, http.MethodPost, "/leads/99/meetings", map[string]any{
		"date": "2024-04-02", "time": "13:00", "description": "Kickoff",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown lead = %d, want 404", w.Code)
	}
	if after := svc.Leads.Meetings(); len(after) != len(before) {
		t.Errorf("meetings changed: %d -> %d", len(before), len(after))
	}

	w = do(t, router, http.MethodPost, "/leads/1/meetings", map[string]any{
		"date": "April 2", "time": "13:00", "description": "Kickoff",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d, want 400", w.Code)
	}
}

func TestMessages(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/messages", map[string]string{
		"email": "ben@contoso.example", "subject": "Quote", "content": "Attached.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	m := decode[models.Message](t, w)
	if m.ID == "" || m.Timestamp.IsZero() {
		t.Errorf("message = %+v", m)
	}

	if w := do(t, router, http.MethodGet, "/messages/"+m.ID, nil); w.Code != http.StatusOK {
		t.Errorf("get = %d", w.Code)
	}

	resp := decode[MessageListResponse](t, do(t, router, http.MethodGet, "/messages?email=ben@contoso.example", nil))
	if resp.Total != 2 || len(resp.Messages) != 1 {
		t.Errorf("list = %+v", resp)
	}

	resp = decode[MessageListResponse](t, do(t, router, http.MethodPost, "/messages/refresh", nil))
	if resp.Total != 2 {
		t.Errorf("refresh total = %d, want 2", resp.Total)
	}
}

func TestComponents_InvokeDraftSubmit(t *testing.T) {
	svc, router := testEnv(t, "")

	resp := decode[map[string][]map[string]any](t, do(t, router, http.MethodGet, "/components", nil))
	if n := len(resp["components"]); n != 12 {
		t.Errorf("components = %d, want 12", n)
	}

	w := do(t, router, http.MethodPost, "/components/add-lead-form", `{"lead":{"name":"Eve"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("invoke = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPatch, "/components/add-lead-form/draft", map[string]any{
		"fields": map[string]any{"email": "eve@globex.example"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("edit draft = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/components/add-lead-form/draft", nil)
	d := decode[struct {
		Version int            `json:"version"`
		Values  map[string]any `json:"values"`
		Edited  []string       `json:"edited"`
	}](t, w)
	if d.Version != 2 || d.Values["name"] != "Eve" || len(d.Edited) != 1 {
		t.Errorf("draft = %+v", d)
	}

	w = do(t, router, http.MethodPost, "/components/add-lead-form/submit", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit = %d, body = %s", w.Code, w.Body.String())
	}
	if n := len(svc.Leads.Leads()); n != 4 {
		t.Errorf("leads = %d, want 4", n)
	}
}

func TestComponents_Errors(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/components/nope", `{}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/components/lead-list", `{"status":"New"}`); w.Code != http.StatusBadRequest {
		t.Errorf("flattened props = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/components/lead-list/draft", nil); w.Code != http.StatusBadRequest {
		t.Errorf("draft of non-form = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/components/add-message-form/submit", nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty submit = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/components/add-message-form/draft", nil); w.Code != http.StatusNoContent {
		t.Errorf("reset = %d, want 204", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodPost, "/leads",
		map[string]string{"name": "Auth", "email": "auth@x.example"},
		"Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/leads", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/leads", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/leads", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvFull(t, true, "secret", sseStub)
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with query token should not 401")
	}
}

func TestAuth_QueryTokenOnlyForGET(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", nil)
	w := do(t, router, http.MethodPost, "/leads?access_token=tok", map[string]any{
		"name": "Dana", "email": "dana@initech.example",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got == "" {
		t.Error("missing WWW-Authenticate header")
	}
}
