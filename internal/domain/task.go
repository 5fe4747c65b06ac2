package domain

import (
	"fmt"
	"strings"
	"time"
)

// Task is the schedulable leaf of the hierarchy. A task may depend on other
// tasks (tracked in the document's dependency adjacency map) and may be
// assigned to at most one sprint.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	StoryID     string     `json:"storyId"`
	Tag         TaskTag    `json:"tag"`
	SprintID    *string    `json:"sprintId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// TaskInput carries the fields for a new task.
type TaskInput struct {
	ID          string
	StoryID     string
	Title       string
	Description string
	Tag         TaskTag
}

// NewTask validates input and builds a pending task.
func NewTask(in TaskInput, now time.Time) (*Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.StoryID = strings.TrimSpace(in.StoryID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.ID == "" {
		return nil, fmt.Errorf("%w: task id is required", ErrValidation)
	}
	if in.StoryID == "" {
		return nil, fmt.Errorf("%w: task storyId is required", ErrValidation)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("%w: task title is required", ErrValidation)
	}
	if !IsValidTaskTag(in.Tag) {
		return nil, fmt.Errorf("%w: invalid tag %q (must be one of FE, BE, DevOps, Full)", ErrValidation, in.Tag)
	}

	ts := now.UTC()
	return &Task{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		Status:      StatusPending,
		StoryID:     in.StoryID,
		Tag:         in.Tag,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}, nil
}

// EntityID implements Entity.
func (t *Task) EntityID() string { return t.ID }

// EntityKind implements Entity.
func (t *Task) EntityKind() Kind { return KindTask }

// CurrentStatus implements Entity.
func (t *Task) CurrentStatus() Status { return t.Status }

// SetStatus applies a status write. CompletedAt is set iff the status is
// completed.
func (t *Task) SetStatus(status Status, now time.Time) {
	ts := now.UTC()
	t.Status = status
	t.UpdatedAt = ts
	if status == StatusCompleted {
		t.CompletedAt = &ts
	} else {
		t.CompletedAt = nil
	}
}

// AssignSprint records sprint membership on the task side.
func (t *Task) AssignSprint(sprintID string, now time.Time) {
	t.SprintID = &sprintID
	t.UpdatedAt = now.UTC()
}

// UnassignSprint clears sprint membership.
func (t *Task) UnassignSprint(now time.Time) {
	t.SprintID = nil
	t.UpdatedAt = now.UTC()
}

// InSprint reports whether the task is assigned to any sprint.
func (t *Task) InSprint() bool { return t.SprintID != nil && *t.SprintID != "" }

// Resolved reports whether the task no longer blocks dependents.
func (t *Task) Resolved() bool {
	return t.Status == StatusCompleted || t.Status == StatusSkipped
}
