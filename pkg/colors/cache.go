package colors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	cacheFile = "project_colors.json"

	// NoProjectColor is Graphite, used for tasks outside any project.
	NoProjectColor = "8"
)

// palette holds the event colour ids handed to projects.
var palette = []string{"1", "2", "3", "4", "5", "6", "7", "9", "10", "11"}

type ProjectState struct {
	ColorID  string    `json:"color_id"`
	LastUsed time.Time `json:"last_used"`
}

// ColorCache hands out Google Calendar colour ids to projects. When the
// palette runs out the least recently used project gives up its colour.
type ColorCache struct {
	Path     string
	Projects map[string]*ProjectState
	now      func() time.Time
	mu       sync.Mutex
	dirty    bool
}

func NewColorCache(dir string) (*ColorCache, error) {
	c := &ColorCache{
		Path:     filepath.Join(dir, cacheFile),
		Projects: make(map[string]*ProjectState),
		now:      time.Now,
	}
	if _, err := os.Stat(c.Path); err == nil {
		if err := c.Load(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *ColorCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return err
	}
	projects := make(map[string]*ProjectState)
	if err := json.Unmarshal(data, &projects); err != nil {
		return fmt.Errorf("failed to decode color cache: %w", err)
	}
	c.Projects = projects
	return nil
}

func (c *ColorCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
		return fmt.Errorf("failed to create color cache directory: %w", err)
	}
	data, err := json.Marshal(c.Projects)
	if err != nil {
		return err
	}
	tmp := c.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.Path); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// GetColorID returns the colour for project and marks it as recently used.
func (c *ColorCache) GetColorID(project string) string {
	if project == "" {
		return NoProjectColor
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.Projects[project]; ok {
		state.LastUsed = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assignColor(project)
}

func (c *ColorCache) assignColor(project string) string {
	used := make(map[string]bool, len(c.Projects))
	for _, s := range c.Projects {
		used[s.ColorID] = true
	}

	id := ""
	for _, candidate := range palette {
		if !used[candidate] {
			id = candidate
			break
		}
	}

	if id == "" {
		var oldest string
		var oldestTime time.Time
		for p, s := range c.Projects {
			if oldest == "" || s.LastUsed.Before(oldestTime) {
				oldest, oldestTime = p, s.LastUsed
			}
		}
		id = c.Projects[oldest].ColorID
		delete(c.Projects, oldest)
	}

	c.Projects[project] = &ProjectState{ColorID: id, LastUsed: c.now()}
	c.dirty = true
	return id
}
