package app

import (
	"context"
	"strings"

	"github.com/hylla/kvartal/internal/domain"
)

// AddDependency records that one task depends on another. Edges that would
// close a cycle are rejected before anything is persisted.
func (s *Service) AddDependency(ctx context.Context, from, to string) error {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := doc.AddDependency(strings.TrimSpace(from), strings.TrimSpace(to)); err != nil {
		return err
	}
	if err := s.save(ctx, doc); err != nil {
		return err
	}
	s.log.Info("dependency added", "from", from, "to", to)
	return nil
}

// RemoveDependency drops a dependency edge.
func (s *Service) RemoveDependency(ctx context.Context, from, to string) error {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := doc.RemoveDependency(strings.TrimSpace(from), strings.TrimSpace(to)); err != nil {
		return err
	}
	if err := s.save(ctx, doc); err != nil {
		return err
	}
	s.log.Info("dependency removed", "from", from, "to", to)
	return nil
}

// Dependencies returns the tasks a task depends on.
func (s *Service) Dependencies(ctx context.Context, taskID string) ([]string, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := doc.Task(strings.TrimSpace(taskID)); err != nil {
		return nil, err
	}
	return doc.DependenciesOf(strings.TrimSpace(taskID)), nil
}

// Blocker describes one unresolved dependency standing in front of a task.
type Blocker struct {
	TaskID string        `json:"taskId"`
	Title  string        `json:"title"`
	Status domain.Status `json:"status"`
}

// Blockers returns the unresolved direct dependencies of a task.
func (s *Service) Blockers(ctx context.Context, taskID string) ([]Blocker, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	taskID = strings.TrimSpace(taskID)
	if _, err := doc.Task(taskID); err != nil {
		return nil, err
	}

	var out []Blocker
	for _, depID := range doc.DependenciesOf(taskID) {
		dep, err := doc.Task(depID)
		if err != nil || dep.Resolved() {
			continue
		}
		out = append(out, Blocker{TaskID: dep.ID, Title: dep.Title, Status: dep.Status})
	}
	return out, nil
}

// ReadyFilter narrows the ready-task candidate set.
type ReadyFilter struct {
	QuarterID string
	EpicID    string
	Limit     int
}

// ReadyTasks returns the pending tasks whose dependencies are all resolved,
// ordered by id. Tasks already assigned to a sprint never appear; blocked
// and in-progress tasks never appear.
func (s *Service) ReadyTasks(ctx context.Context, filter ReadyFilter) ([]*domain.Task, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return readyTasks(doc, filter), nil
}

func readyTasks(doc *domain.Document, filter ReadyFilter) []*domain.Task {
	var out []*domain.Task
	for _, id := range sortedKeys(doc.Entities.Tasks) {
		task := doc.Entities.Tasks[id]
		if task.Status != domain.StatusPending || task.InSprint() {
			continue
		}
		if !taskInScope(doc, task, filter.QuarterID, filter.EpicID) {
			continue
		}
		if allDependenciesResolved(doc, id) {
			out = append(out, task)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				break
			}
		}
	}
	return out
}

// taskInScope reports whether a task sits under the given quarter or epic.
// Empty scope matches everything.
func taskInScope(doc *domain.Document, task *domain.Task, quarterID, epicID string) bool {
	if quarterID == "" && epicID == "" {
		return true
	}
	story, err := doc.Story(task.StoryID)
	if err != nil {
		return false
	}
	if epicID != "" && story.EpicID != epicID {
		return false
	}
	if quarterID != "" {
		epic, err := doc.Epic(story.EpicID)
		if err != nil || epic.Quarter != quarterID {
			return false
		}
	}
	return true
}
