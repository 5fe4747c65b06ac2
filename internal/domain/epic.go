package domain

import (
	"fmt"
	"strings"
	"time"
)

// defaultEpicPriority is used when the caller does not supply a priority.
// Lower values are more urgent.
const defaultEpicPriority = 5

// Epic is a quarter-scoped body of work broken down into stories.
type Epic struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       Status     `json:"status"`
	Quarter      string     `json:"quarter"`
	Priority     int        `json:"priority"`
	Deliverables []string   `json:"deliverables"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// EpicInput carries the fields for a new epic.
type EpicInput struct {
	ID           string
	Title        string
	Description  string
	Quarter      string
	Priority     int
	Deliverables []string
}

// NewEpic validates input and builds a draft epic.
func NewEpic(in EpicInput, now time.Time) (*Epic, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Quarter = strings.TrimSpace(in.Quarter)

	if in.ID == "" {
		return nil, fmt.Errorf("%w: epic id is required", ErrValidation)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("%w: epic title is required", ErrValidation)
	}
	if !IsQuarterID(in.Quarter) {
		return nil, fmt.Errorf("%w: invalid quarter %q", ErrValidation, in.Quarter)
	}
	if in.Priority <= 0 {
		in.Priority = defaultEpicPriority
	}

	ts := now.UTC()
	return &Epic{
		ID:           in.ID,
		Title:        in.Title,
		Description:  in.Description,
		Status:       StatusDraft,
		Quarter:      in.Quarter,
		Priority:     in.Priority,
		Deliverables: normalizeStringList(in.Deliverables),
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}, nil
}

// EntityID implements Entity.
func (e *Epic) EntityID() string { return e.ID }

// EntityKind implements Entity.
func (e *Epic) EntityKind() Kind { return KindEpic }

// CurrentStatus implements Entity.
func (e *Epic) CurrentStatus() Status { return e.Status }

// SetStatus applies a status write, stamping CompletedAt on completion.
func (e *Epic) SetStatus(status Status, now time.Time) {
	ts := now.UTC()
	e.Status = status
	e.UpdatedAt = ts
	if status == StatusCompleted {
		e.CompletedAt = &ts
	}
}

// normalizeStringList trims entries and drops empties, preserving order.
func normalizeStringList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}
