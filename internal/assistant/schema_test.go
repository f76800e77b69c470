package assistant

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/crmdesk/internal/models"
)

func toMap(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestWrapSchema(t *testing.T) {
	inner := Reflect(models.LeadFilters{})
	wrapped := WrapSchema(inner, "filters")

	if wrapped.Type != "object" {
		t.Errorf("type = %q, want object", wrapped.Type)
	}
	if wrapped.Title != "filters Object Input" {
		t.Errorf("title = %q", wrapped.Title)
	}
	if want := "This schema expects a complete object to be passed as the 'filters' property."; wrapped.Description != want {
		t.Errorf("description = %q", wrapped.Description)
	}
	if diff := cmp.Diff([]string{"filters"}, wrapped.Required); diff != "" {
		t.Errorf("required (-want +got):\n%s", diff)
	}
	if wrapped.Properties.Len() != 1 {
		t.Errorf("properties = %d, want 1", wrapped.Properties.Len())
	}

	got := toMap(t, wrapped)["properties"].(map[string]any)["filters"]
	if diff := cmp.Diff(toMap(t, inner), got); diff != "" {
		t.Errorf("wrapped property differs from input (-want +got):\n%s", diff)
	}
}

func TestWrapSchema_EmptyPropReturnsInput(t *testing.T) {
	inner := Reflect(MeetingForm{})
	if got := WrapSchema(inner, ""); got != inner {
		t.Error("expected the input schema back")
	}
}

func TestReflect_RequiredFollowsOmitempty(t *testing.T) {
	if got := Reflect(MeetingForm{}).Required; len(got) != 0 {
		t.Errorf("MeetingForm required = %v, want none", got)
	}

	want := []string{"id", "name", "email", "company", "phone", "status", "notes", "meetings"}
	if diff := cmp.Diff(want, Reflect(models.Lead{}).Required); diff != "" {
		t.Errorf("Lead required (-want +got):\n%s", diff)
	}
}

func TestReflect_InlinesNestedTypes(t *testing.T) {
	m := toMap(t, Reflect(models.Lead{}))
	if _, ok := m["$defs"]; ok {
		t.Error("unexpected $defs")
	}
	if _, ok := m["$ref"]; ok {
		t.Error("unexpected $ref")
	}
	meetings := m["properties"].(map[string]any)["meetings"].(map[string]any)
	items := meetings["items"].(map[string]any)
	props, ok := items["properties"].(map[string]any)
	if !ok {
		t.Fatalf("meeting items not inlined: %v", items)
	}
	for _, k := range []string{"id", "leadId", "date", "time", "description"} {
		if _, ok := props[k]; !ok {
			t.Errorf("meeting property %q missing", k)
		}
	}

	status := m["properties"].(map[string]any)["status"].(map[string]any)
	if diff := cmp.Diff([]any{"New", "Contacted", "Qualified", "Closed"}, status["enum"]); diff != "" {
		t.Errorf("status enum (-want +got):\n%s", diff)
	}
}
