package domain

import (
	"fmt"
	"strings"
	"time"
)

// Clarification is an open or answered question attached to another entity.
// TargetID and TargetKind name the host entity.
type Clarification struct {
	ID          string     `json:"id"`
	Question    string     `json:"question"`
	Answer      *string    `json:"answer"`
	Status      Status     `json:"status"`
	TargetID    string     `json:"entityId"`
	TargetKind  Kind       `json:"entityType"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ClarifiedAt *time.Time `json:"clarifiedAt"`
}

// ClarificationInput carries the fields for a new clarification.
type ClarificationInput struct {
	ID         string
	Question   string
	TargetID   string
	TargetKind Kind
}

// NewClarification validates input and builds a pending clarification.
func NewClarification(in ClarificationInput, now time.Time) (*Clarification, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Question = strings.TrimSpace(in.Question)
	in.TargetID = strings.TrimSpace(in.TargetID)

	if in.ID == "" {
		return nil, fmt.Errorf("%w: clarification id is required", ErrValidation)
	}
	if in.Question == "" {
		return nil, fmt.Errorf("%w: clarification question is required", ErrValidation)
	}
	if in.TargetID == "" {
		return nil, fmt.Errorf("%w: clarification entityId is required", ErrValidation)
	}
	switch in.TargetKind {
	case KindQuarter, KindEpic, KindStory, KindTask:
	default:
		return nil, fmt.Errorf("%w: entity type %q cannot host clarifications", ErrValidation, in.TargetKind)
	}

	ts := now.UTC()
	return &Clarification{
		ID:         in.ID,
		Question:   in.Question,
		Status:     StatusPending,
		TargetID:   in.TargetID,
		TargetKind: in.TargetKind,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}, nil
}

// EntityID implements Entity.
func (c *Clarification) EntityID() string { return c.ID }

// EntityKind implements Entity.
func (c *Clarification) EntityKind() Kind { return KindClarification }

// CurrentStatus implements Entity.
func (c *Clarification) CurrentStatus() Status { return c.Status }

// SetStatus applies a status write. ClarifiedAt is set iff the status is
// clarified.
func (c *Clarification) SetStatus(status Status, now time.Time) {
	ts := now.UTC()
	c.Status = status
	c.UpdatedAt = ts
	if status == StatusClarified {
		c.ClarifiedAt = &ts
	} else {
		c.ClarifiedAt = nil
	}
}

// Resolve records an answer and marks the clarification clarified.
func (c *Clarification) Resolve(answer string, now time.Time) {
	answer = strings.TrimSpace(answer)
	c.Answer = &answer
	c.SetStatus(StatusClarified, now)
}
