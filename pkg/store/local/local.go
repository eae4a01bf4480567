// Package local keeps tasks in a single JSON file.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

type Store struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func New(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Insert appends t, assigning an id and timestamps when they are missing.
func (s *Store) Insert(ctx context.Context, t model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read()
	if err != nil {
		return model.Task{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	tasks = append(tasks, t)
	if err := s.write(tasks); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

// Update patches the task with the given id. An unknown id is logged and
// ignored.
func (s *Store) Update(ctx context.Context, id string, p model.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read()
	if err != nil {
		return err
	}
	for i := range tasks {
		if tasks[i].ID != id {
			continue
		}
		p.Apply(&tasks[i])
		if p.UpdatedAt == nil {
			tasks[i].UpdatedAt = time.Now()
		}
		return s.write(tasks)
	}
	s.logger.Warn("update skipped, task not in local store", "task_id", id)
	return nil
}

// Delete removes id and everything below it.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.read()
	if err != nil {
		return err
	}

	gone := map[string]bool{id: true}
	for grew := true; grew; {
		grew = false
		for _, t := range tasks {
			if !gone[t.ID] && t.ParentID != "" && gone[t.ParentID] {
				gone[t.ID] = true
				grew = true
			}
		}
	}

	kept := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if !gone[t.ID] {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(tasks) {
		return nil
	}
	return s.write(kept)
}

func (s *Store) Close() error { return nil }

func (s *Store) read() ([]model.Task, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.Task{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []model.Task{}, nil
	}
	var tasks []model.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return tasks, nil
}

// write replaces the file through a temp file and a rename.
func (s *Store) write(tasks []model.Task) error {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
