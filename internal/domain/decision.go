package domain

import (
	"fmt"
	"strings"
	"time"
)

const adrSlugMaxLen = 30

// DecisionRecord is an architecture decision record, optionally attached to
// another entity. FilePath points at the markdown document the record is
// expected to live in, derived from the id and title at creation time.
type DecisionRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Context      string    `json:"context"`
	Decision     string    `json:"decision"`
	Consequences string    `json:"consequences"`
	Status       Status    `json:"status"`
	TargetID     string    `json:"entityId,omitempty"`
	TargetKind   Kind      `json:"entityType,omitempty"`
	FilePath     string    `json:"filePath"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DecisionRecordInput carries the fields for a new decision record.
type DecisionRecordInput struct {
	ID           string
	Title        string
	Context      string
	Decision     string
	Consequences string
	TargetID     string
	TargetKind   Kind
}

// NewDecisionRecord validates input and builds a proposed decision record.
func NewDecisionRecord(in DecisionRecordInput, now time.Time) (*DecisionRecord, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.TargetID = strings.TrimSpace(in.TargetID)

	if in.ID == "" {
		return nil, fmt.Errorf("%w: decision record id is required", ErrValidation)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("%w: decision record title is required", ErrValidation)
	}
	if in.TargetID == "" {
		in.TargetKind = ""
	} else {
		switch in.TargetKind {
		case KindQuarter, KindEpic, KindStory, KindTask:
		default:
			return nil, fmt.Errorf("%w: entity type %q cannot host decision records", ErrValidation, in.TargetKind)
		}
	}

	ts := now.UTC()
	return &DecisionRecord{
		ID:           in.ID,
		Title:        in.Title,
		Context:      strings.TrimSpace(in.Context),
		Decision:     strings.TrimSpace(in.Decision),
		Consequences: strings.TrimSpace(in.Consequences),
		Status:       StatusProposed,
		TargetID:     in.TargetID,
		TargetKind:   in.TargetKind,
		FilePath:     adrFilePath(in.ID, in.Title),
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}, nil
}

// adrFilePath builds the conventional document path for a record, for example
// "docs/architecture/adr/adr-0042-switch-to-event-sourcing.md".
func adrFilePath(id, title string) string {
	return fmt.Sprintf("docs/architecture/adr/%s-%s.md", strings.ToLower(id), slugify(title))
}

// slugify lowercases the title, folds runs of non-alphanumerics into single
// hyphens, and truncates to a fixed length.
func slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > adrSlugMaxLen {
		slug = strings.Trim(slug[:adrSlugMaxLen], "-")
	}
	return slug
}

// EntityID implements Entity.
func (d *DecisionRecord) EntityID() string { return d.ID }

// EntityKind implements Entity.
func (d *DecisionRecord) EntityKind() Kind { return KindDecisionRecord }

// CurrentStatus implements Entity.
func (d *DecisionRecord) CurrentStatus() Status { return d.Status }

// SetStatus applies a status write.
func (d *DecisionRecord) SetStatus(status Status, now time.Time) {
	d.Status = status
	d.UpdatedAt = now.UTC()
}
