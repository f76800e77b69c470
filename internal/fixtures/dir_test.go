package fixtures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func newDir(t *testing.T) *Dir {
	t.Helper()
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestDir_SaveLoadRoundTrip(t *testing.T) {
	d := newDir(t)
	want := Sample()
	if err := d.Save(want); err != nil {
		t.Fatal(err)
	}
	got, err := d.Load()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	names, err := d.List()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{LeadsFile, MessagesFile}, names); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestDir_LoadMissingFilesIsEmpty(t *testing.T) {
	set, err := newDir(t).Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Leads) != 0 || len(set.Messages) != 0 {
		t.Errorf("set = %+v", set)
	}
}

func TestDir_LoadMalformed(t *testing.T) {
	d := newDir(t)
	if err := d.Write(LeadsFile, []byte("- id: [oops")); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDir_PathTraversal(t *testing.T) {
	d := newDir(t)
	for _, name := range []string{"../outside.yaml", "../../etc/passwd", "/etc/passwd"} {
		if _, err := d.Read(name); err == nil {
			t.Errorf("Read(%q) should fail", name)
		}
		if err := d.Write(name, []byte("x")); err == nil {
			t.Errorf("Write(%q) should fail", name)
		}
	}
}

func TestDir_WriteLeavesNoTempFiles(t *testing.T) {
	d := newDir(t)
	if err := d.Write(MessagesFile, []byte("[]\n")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(d.Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != MessagesFile {
		t.Errorf("entries = %v", entries)
	}
}

func TestNewDir_NotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.yaml")
	if err := os.WriteFile(f, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewDir(f); err == nil {
		t.Fatal("expected error for a file root")
	}
}

func TestIsFixture(t *testing.T) {
	for name, want := range map[string]bool{
		"leads.yaml": true, "extra.yml": true, "notes.md": false, ".crmdesk-tmp-1": false,
	} {
		if got := IsFixture(name); got != want {
			t.Errorf("IsFixture(%q) = %v, want %v", name, got, want)
		}
	}
}
