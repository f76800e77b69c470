// Package fixtures reads and writes the YAML fixture files that seed the
// in-memory data source.
package fixtures

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/crmdesk/internal/models"
)

// Well-known fixture file names.
const (
	LeadsFile    = "leads.yaml"
	MessagesFile = "messages.yaml"
)

// Set is the full content of a fixture directory.
type Set struct {
	Leads    []models.Lead    `yaml:"leads"`
	Messages []models.Message `yaml:"messages"`
}

// Dir is a fixture directory on the local file system.
type Dir struct {
	root string // absolute
}

// NewDir opens a fixture directory. The directory must already exist.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("fixtures: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("fixtures: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixtures: root is not a directory: %s", abs)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute directory path.
func (d *Dir) Root() string { return d.root }

// safePath rejects names that escape the fixture root.
func (d *Dir) safePath(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("fixtures: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(d.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("fixtures: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, d.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("fixtures: path escapes root: %s", rel)
	}
	return abs, nil
}

// List returns the relative names of every YAML file under the root.
func (d *Dir) List() ([]string, error) {
	var out []string
	err := filepath.WalkDir(d.root, func(p string, e fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if e.IsDir() || !IsFixture(e.Name()) {
			return nil
		}
		rel, _ := filepath.Rel(d.root, p)
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fixtures: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a fixture file.
func (d *Dir) Read(name string) ([]byte, error) {
	abs, err := d.safePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("fixtures: read %s: %w", name, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (d *Dir) Write(name string, content []byte) error {
	abs, err := d.safePath(name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fixtures: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".crmdesk-tmp-*")
	if err != nil {
		return fmt.Errorf("fixtures: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("fixtures: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fixtures: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fixtures: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("fixtures: rename: %w", err)
	}
	success = true
	return nil
}

// Load decodes leads.yaml and messages.yaml. A missing file yields an empty
// collection; a malformed one is an error.
func (d *Dir) Load() (*Set, error) {
	set := &Set{}
	if err := d.decode(LeadsFile, &set.Leads); err != nil {
		return nil, err
	}
	if err := d.decode(MessagesFile, &set.Messages); err != nil {
		return nil, err
	}
	return set, nil
}

// Save writes the set back as leads.yaml and messages.yaml.
func (d *Dir) Save(set *Set) error {
	leads, err := yaml.Marshal(set.Leads)
	if err != nil {
		return fmt.Errorf("fixtures: encode leads: %w", err)
	}
	if err := d.Write(LeadsFile, leads); err != nil {
		return err
	}
	msgs, err := yaml.Marshal(set.Messages)
	if err != nil {
		return fmt.Errorf("fixtures: encode messages: %w", err)
	}
	return d.Write(MessagesFile, msgs)
}

func (d *Dir) decode(name string, target any) error {
	data, err := d.Read(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("fixtures: parse %s: %w", name, err)
	}
	return nil
}

// IsFixture reports whether name looks like a fixture file.
func IsFixture(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
