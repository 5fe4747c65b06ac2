package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AcceptanceCriterion is one checkable item on a story. Documents produced by
// earlier format versions store criteria as bare strings; those decode as
// legacy criteria and are rewritten to the record form on first write.
type AcceptanceCriterion struct {
	Title  string
	Done   bool
	legacy bool
}

// NewAcceptanceCriterion builds a record-form criterion.
func NewAcceptanceCriterion(title string) AcceptanceCriterion {
	return AcceptanceCriterion{Title: title}
}

// IsLegacy reports whether the criterion still carries the bare-string form.
func (c AcceptanceCriterion) IsLegacy() bool { return c.legacy }

// MarkDone sets the done flag, migrating a legacy criterion to record form.
func (c *AcceptanceCriterion) MarkDone(done bool) {
	c.Done = done
	c.legacy = false
}

// MarshalJSON writes legacy criteria back as bare strings and migrated
// criteria as {title, done} records.
func (c AcceptanceCriterion) MarshalJSON() ([]byte, error) {
	if c.legacy {
		return json.Marshal(c.Title)
	}
	return json.Marshal(struct {
		Title string `json:"title"`
		Done  bool   `json:"done"`
	}{Title: c.Title, Done: c.Done})
}

// UnmarshalJSON accepts either the bare-string or the record form.
func (c *AcceptanceCriterion) UnmarshalJSON(data []byte) error {
	var title string
	if err := json.Unmarshal(data, &title); err == nil {
		*c = AcceptanceCriterion{Title: title, legacy: true}
		return nil
	}
	var record struct {
		Title string `json:"title"`
		Done  bool   `json:"done"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("decode acceptance criterion: %w", err)
	}
	*c = AcceptanceCriterion{Title: record.Title, Done: record.Done}
	return nil
}

// Story is an epic-scoped user story broken down into tasks.
type Story struct {
	ID                 string                `json:"id"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	Status             Status                `json:"status"`
	EpicID             string                `json:"epicId"`
	AcceptanceCriteria []AcceptanceCriterion `json:"acceptanceCriteria"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
	CompletedAt        *time.Time            `json:"completedAt,omitempty"`
}

// StoryInput carries the fields for a new story.
type StoryInput struct {
	ID                 string
	EpicID             string
	Title              string
	Description        string
	AcceptanceCriteria []string
}

// NewStory validates input and builds a draft story.
func NewStory(in StoryInput, now time.Time) (*Story, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.EpicID = strings.TrimSpace(in.EpicID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.ID == "" {
		return nil, fmt.Errorf("%w: story id is required", ErrValidation)
	}
	if in.EpicID == "" {
		return nil, fmt.Errorf("%w: story epicId is required", ErrValidation)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("%w: story title is required", ErrValidation)
	}

	criteria := make([]AcceptanceCriterion, 0, len(in.AcceptanceCriteria))
	for _, title := range normalizeStringList(in.AcceptanceCriteria) {
		criteria = append(criteria, NewAcceptanceCriterion(title))
	}

	ts := now.UTC()
	return &Story{
		ID:                 in.ID,
		Title:              in.Title,
		Description:        in.Description,
		Status:             StatusDraft,
		EpicID:             in.EpicID,
		AcceptanceCriteria: criteria,
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}, nil
}

// EntityID implements Entity.
func (s *Story) EntityID() string { return s.ID }

// EntityKind implements Entity.
func (s *Story) EntityKind() Kind { return KindStory }

// CurrentStatus implements Entity.
func (s *Story) CurrentStatus() Status { return s.Status }

// SetStatus applies a status write, stamping CompletedAt on completion.
func (s *Story) SetStatus(status Status, now time.Time) {
	ts := now.UTC()
	s.Status = status
	s.UpdatedAt = ts
	if status == StatusCompleted {
		s.CompletedAt = &ts
	}
}

// SetCriterionDone updates one criterion in place, migrating legacy string
// criteria to record form.
func (s *Story) SetCriterionDone(index int, done bool, now time.Time) error {
	if index < 0 || index >= len(s.AcceptanceCriteria) {
		return fmt.Errorf("%w: index %d, story %s has %d criteria",
			ErrIndexOutOfRange, index, s.ID, len(s.AcceptanceCriteria))
	}
	s.AcceptanceCriteria[index].MarkDone(done)
	s.UpdatedAt = now.UTC()
	return nil
}

// CriteriaProgress summarizes acceptance-criterion completion for a story.
type CriteriaProgress struct {
	StoryID   string  `json:"storyId"`
	Total     int     `json:"total"`
	Done      int     `json:"done"`
	Remaining int     `json:"remaining"`
	Ratio     float64 `json:"ratio"`
}

// Progress returns done/total counts; legacy criteria count as not done.
func (s *Story) Progress() CriteriaProgress {
	done := 0
	for _, c := range s.AcceptanceCriteria {
		if !c.IsLegacy() && c.Done {
			done++
		}
	}
	total := len(s.AcceptanceCriteria)
	ratio := 0.0
	if total > 0 {
		ratio = float64(done) / float64(total)
	}
	return CriteriaProgress{
		StoryID:   s.ID,
		Total:     total,
		Done:      done,
		Remaining: total - done,
		Ratio:     ratio,
	}
}
