package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Sprint groups tasks for execution inside one quarter.
type Sprint struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Status       Status     `json:"status"`
	QuarterID    string     `json:"quarterId"`
	TaskIDs      []string   `json:"taskIds"`
	WorktreePath *string    `json:"worktreePath"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	StartedAt    *time.Time `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt"`
}

// SprintInput carries the fields for a new sprint.
type SprintInput struct {
	ID           string
	Name         string
	QuarterID    string
	TaskIDs      []string
	WorktreePath string
}

// NewSprint validates input and builds a planned sprint.
func NewSprint(in SprintInput, now time.Time) (*Sprint, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.QuarterID = strings.TrimSpace(in.QuarterID)
	in.WorktreePath = strings.TrimSpace(in.WorktreePath)

	if in.ID == "" {
		return nil, fmt.Errorf("%w: sprint id is required", ErrValidation)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: sprint name is required", ErrValidation)
	}
	if !IsQuarterID(in.QuarterID) {
		return nil, fmt.Errorf("%w: invalid quarter %q", ErrValidation, in.QuarterID)
	}

	ts := now.UTC()
	s := &Sprint{
		ID:        in.ID,
		Name:      in.Name,
		Status:    StatusPlanned,
		QuarterID: in.QuarterID,
		TaskIDs:   slices.Clone(normalizeStringList(in.TaskIDs)),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if s.TaskIDs == nil {
		s.TaskIDs = []string{}
	}
	if in.WorktreePath != "" {
		s.WorktreePath = &in.WorktreePath
	}
	return s, nil
}

// EntityID implements Entity.
func (s *Sprint) EntityID() string { return s.ID }

// EntityKind implements Entity.
func (s *Sprint) EntityKind() Kind { return KindSprint }

// CurrentStatus implements Entity.
func (s *Sprint) CurrentStatus() Status { return s.Status }

// SetStatus applies a status write. StartedAt is set the first time the
// sprint becomes active, CompletedAt iff the status is completed.
func (s *Sprint) SetStatus(status Status, now time.Time) {
	ts := now.UTC()
	s.Status = status
	s.UpdatedAt = ts
	switch status {
	case StatusActive:
		if s.StartedAt == nil {
			s.StartedAt = &ts
		}
		s.CompletedAt = nil
	case StatusCompleted:
		s.CompletedAt = &ts
	default:
		s.CompletedAt = nil
	}
}

// AddTask appends a task id if not already present.
func (s *Sprint) AddTask(taskID string, now time.Time) {
	if slices.Contains(s.TaskIDs, taskID) {
		return
	}
	s.TaskIDs = append(s.TaskIDs, taskID)
	s.UpdatedAt = now.UTC()
}

// RemoveTask drops a task id, preserving order of the rest.
func (s *Sprint) RemoveTask(taskID string, now time.Time) {
	i := slices.Index(s.TaskIDs, taskID)
	if i < 0 {
		return
	}
	s.TaskIDs = slices.Delete(s.TaskIDs, i, i+1)
	s.UpdatedAt = now.UTC()
}
