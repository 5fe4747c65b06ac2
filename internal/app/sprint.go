package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/hylla/kvartal/internal/domain"
)

// CreateSprintInput carries the caller-supplied fields for a new sprint.
// Quarter is optional; when empty it is derived from the first task's
// ancestor chain. Name defaults to "Sprint N" from the allocated id.
type CreateSprintInput struct {
	Name         string
	QuarterID    string
	TaskIDs      []string
	MaxTasks     int
	WorktreePath string
}

// SprintPlan is the outcome of an auto-planned sprint. Created is false
// when no ready tasks were available, which is not an error.
type SprintPlan struct {
	Sprint  *domain.Sprint `json:"sprint,omitempty"`
	Created bool           `json:"created"`
	Reason  string         `json:"reason,omitempty"`
}

// PlanSprint builds a sprint from the ready tasks of a quarter, capped at
// MaxTasks when set. An empty candidate set yields a soft result.
func (s *Service) PlanSprint(ctx context.Context, in CreateSprintInput) (*SprintPlan, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	ready := readyTasks(doc, ReadyFilter{QuarterID: strings.TrimSpace(in.QuarterID), Limit: in.MaxTasks})
	if len(ready) == 0 {
		return &SprintPlan{Created: false, Reason: "no ready tasks"}, nil
	}
	in.TaskIDs = in.TaskIDs[:0]
	for _, task := range ready {
		in.TaskIDs = append(in.TaskIDs, task.ID)
	}
	sprint, err := s.CreateSprint(ctx, in)
	if err != nil {
		return nil, err
	}
	return &SprintPlan{Sprint: sprint, Created: true}, nil
}

// CreateSprint allocates an id and groups the given tasks into a sprint.
// Tasks already assigned to an open sprint are rejected.
func (s *Service) CreateSprint(ctx context.Context, in CreateSprintInput) (*domain.Sprint, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(in.TaskIDs) == 0 {
		return nil, fmt.Errorf("%w: a sprint needs at least one task", domain.ErrValidation)
	}

	taskIDs := make([]string, 0, len(in.TaskIDs))
	for _, raw := range in.TaskIDs {
		id := strings.TrimSpace(raw)
		task, err := doc.Task(id)
		if err != nil {
			return nil, err
		}
		if task.InSprint() {
			open, err := doc.Sprint(*task.SprintID)
			if err == nil && open.Status != domain.StatusCompleted {
				return nil, fmt.Errorf("%w: task %s is already in sprint %s", domain.ErrValidation, id, open.ID)
			}
		}
		taskIDs = append(taskIDs, id)
	}

	quarterID := strings.TrimSpace(in.QuarterID)
	if quarterID == "" {
		quarterID, err = quarterOfTask(doc, taskIDs[0])
		if err != nil {
			return nil, err
		}
	}

	id, err := doc.NextID(domain.KindSprint)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = fmt.Sprintf("Sprint %d", doc.Counters.Sprint)
	}

	sprint, err := domain.NewSprint(domain.SprintInput{
		ID:           id,
		Name:         name,
		QuarterID:    quarterID,
		TaskIDs:      taskIDs,
		WorktreePath: in.WorktreePath,
	}, s.clock())
	if err != nil {
		return nil, err
	}
	if err := doc.AttachSprint(sprint, s.clock()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info("sprint created", "id", sprint.ID, "quarter", sprint.QuarterID, "tasks", len(sprint.TaskIDs))
	return sprint, nil
}

// ActiveSprint returns the first active sprint in id order, or
// domain.ErrNotFound when no sprint is active.
func (s *Service) ActiveSprint(ctx context.Context) (*domain.Sprint, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range sortedKeys(doc.Entities.Sprints) {
		if sp := doc.Entities.Sprints[id]; sp.Status == domain.StatusActive {
			return sp, nil
		}
	}
	return nil, fmt.Errorf("%w: no active sprint", domain.ErrNotFound)
}

// CompleteSprint marks a sprint completed through the regular status path.
// Member tasks keep whatever status they have; unfinished work is reported
// back to the caller.
func (s *Service) CompleteSprint(ctx context.Context, id string) (*domain.Sprint, []string, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	sprint, err := doc.Sprint(strings.TrimSpace(id))
	if err != nil {
		return nil, nil, err
	}

	var unfinished []string
	for _, taskID := range sprint.TaskIDs {
		if task, err := doc.Task(taskID); err == nil && !task.Resolved() {
			unfinished = append(unfinished, taskID)
		}
	}
	if _, err := s.applyStatus(doc, sprint.ID, domain.StatusCompleted, true); err != nil {
		return nil, nil, err
	}
	if err := s.save(ctx, doc); err != nil {
		return nil, nil, err
	}
	s.log.Info("sprint completed", "id", sprint.ID, "unfinished", len(unfinished))
	return sprint, unfinished, nil
}

// quarterOfTask walks task -> story -> epic to find the owning quarter.
func quarterOfTask(doc *domain.Document, taskID string) (string, error) {
	task, err := doc.Task(taskID)
	if err != nil {
		return "", err
	}
	story, err := doc.Story(task.StoryID)
	if err != nil {
		return "", err
	}
	epic, err := doc.Epic(story.EpicID)
	if err != nil {
		return "", err
	}
	return epic.Quarter, nil
}
