package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Context is what `leasedesk use` remembers between invocations: the user
// commands act as and the region they default to. Email and region name are
// kept only for display.
type Context struct {
	ActorID    string    `yaml:"actor,omitempty"`
	ActorEmail string    `yaml:"actor_email,omitempty"`
	RegionID   string    `yaml:"region,omitempty"`
	RegionName string    `yaml:"region_name,omitempty"`
	UpdatedAt  time.Time `yaml:"updated_at,omitempty"`
}

func (c *Context) IsEmpty() bool   { return !c.HasActor() && !c.HasRegion() }
func (c *Context) HasActor() bool  { return c.ActorID != "" }
func (c *Context) HasRegion() bool { return c.RegionID != "" }

func (c *Context) SetActor(id, email string) {
	c.ActorID, c.ActorEmail = id, email
	c.UpdatedAt = time.Now().UTC()
}

func (c *Context) SetRegion(id, name string) {
	c.RegionID, c.RegionName = id, name
	c.UpdatedAt = time.Now().UTC()
}

// Clear forgets both selections.
func (c *Context) Clear() {
	*c = Context{UpdatedAt: time.Now().UTC()}
}

// String renders the selection as "actor:<email> region:<name>".
func (c *Context) String() string {
	var b strings.Builder
	if c.HasActor() {
		b.WriteString("actor:" + label(c.ActorEmail, c.ActorID))
	}
	if c.HasRegion() {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("region:" + label(c.RegionName, c.RegionID))
	}
	if b.Len() == 0 {
		return "(no context set)"
	}
	return b.String()
}

// label prefers the display name and falls back to an abbreviated ID.
func label(name, id string) string {
	if name != "" {
		return name
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ContextStore persists a Context as YAML. Saves replace the file atomically,
// so concurrent CLI processes see either the old or the new selection.
type ContextStore struct {
	path string
}

// NewContextStore stores the context at path, or at
// ~/.config/leasedesk/context.yaml when path is empty.
func NewContextStore(path string) *ContextStore {
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".config", "leasedesk", "context.yaml")
	}
	return &ContextStore{path: path}
}

func (s *ContextStore) Path() string { return s.path }

// Load returns the saved context. A missing file is an empty context.
func (s *ContextStore) Load() (*Context, error) {
	var c Context
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read context %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse context %s: %w", s.path, err)
	}
	return &c, nil
}

// Save writes c next to the target and renames it into place.
func (s *ContextStore) Save(c *Context) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".context-*.yaml")
	if err != nil {
		return fmt.Errorf("save context: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save context: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save context: %w", err)
	}
	// CreateTemp already uses 0600.
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("save context: %w", err)
	}
	return nil
}

// Clear deletes the saved context. Clearing twice is fine.
func (s *ContextStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear context: %w", err)
	}
	return nil
}
