package app

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/hylla/kvartal/internal/domain"
)

// ListFilter narrows a listing. Kind selects the entity family; the
// remaining fields are optional and combine with AND. QuarterID and EpicID
// scope stories and tasks through the hierarchy; Unassigned keeps only tasks
// outside any sprint.
type ListFilter struct {
	Kind       domain.Kind
	Status     domain.Status
	QuarterID  string
	EpicID     string
	StoryID    string
	SprintID   string
	Tag        domain.TaskTag
	TargetID   string
	Unassigned bool
}

// List returns the entities of one kind matching the filter, ordered by id.
// Epics order by (priority, id) so the most urgent work lists first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Entity, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return listEntities(doc, filter), nil
}

func listEntities(doc *domain.Document, filter ListFilter) []domain.Entity {
	var out []domain.Entity
	switch filter.Kind {
	case domain.KindQuarter:
		for _, id := range domain.QuarterIDs {
			out = append(out, doc.Entities.Quarters[id])
		}
	case domain.KindEpic:
		epics := make([]*domain.Epic, 0, len(doc.Entities.Epics))
		for _, id := range sortedKeys(doc.Entities.Epics) {
			e := doc.Entities.Epics[id]
			if filter.QuarterID != "" && e.Quarter != filter.QuarterID {
				continue
			}
			epics = append(epics, e)
		}
		slices.SortFunc(epics, func(a, b *domain.Epic) int {
			if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
				return c
			}
			return strings.Compare(a.ID, b.ID)
		})
		for _, e := range epics {
			out = append(out, e)
		}
	case domain.KindStory:
		for _, id := range sortedKeys(doc.Entities.Stories) {
			st := doc.Entities.Stories[id]
			if filter.EpicID != "" && st.EpicID != filter.EpicID {
				continue
			}
			if filter.QuarterID != "" {
				epic, err := doc.Epic(st.EpicID)
				if err != nil || epic.Quarter != filter.QuarterID {
					continue
				}
			}
			out = append(out, st)
		}
	case domain.KindTask:
		for _, id := range sortedKeys(doc.Entities.Tasks) {
			t := doc.Entities.Tasks[id]
			if filter.StoryID != "" && t.StoryID != filter.StoryID {
				continue
			}
			if filter.Tag != "" && t.Tag != filter.Tag {
				continue
			}
			if filter.SprintID != "" && (t.SprintID == nil || *t.SprintID != filter.SprintID) {
				continue
			}
			if filter.Unassigned && t.InSprint() {
				continue
			}
			if !taskInScope(doc, t, filter.QuarterID, filter.EpicID) {
				continue
			}
			out = append(out, t)
		}
	case domain.KindClarification:
		for _, id := range sortedKeys(doc.Entities.Clarifications) {
			c := doc.Entities.Clarifications[id]
			if filter.TargetID != "" && c.TargetID != filter.TargetID {
				continue
			}
			out = append(out, c)
		}
	case domain.KindDecisionRecord:
		for _, id := range sortedKeys(doc.Entities.DecisionRecords) {
			a := doc.Entities.DecisionRecords[id]
			if filter.TargetID != "" && a.TargetID != filter.TargetID {
				continue
			}
			out = append(out, a)
		}
	case domain.KindSprint:
		for _, id := range sortedKeys(doc.Entities.Sprints) {
			sp := doc.Entities.Sprints[id]
			if filter.QuarterID != "" && sp.QuarterID != filter.QuarterID {
				continue
			}
			out = append(out, sp)
		}
	}
	if filter.Status != "" {
		filtered := out[:0]
		for _, e := range out {
			if e.CurrentStatus() == filter.Status {
				filtered = append(filtered, e)
			}
		}
		out = filtered
	}
	return out
}

// ParseListFilter builds a filter from raw string arguments, validating the
// kind and normalizing spacing.
func ParseListFilter(kind string, opts map[string]string) (ListFilter, error) {
	k, err := domain.ParseKind(strings.TrimSpace(kind))
	if err != nil {
		return ListFilter{}, err
	}
	f := ListFilter{Kind: k}
	for key, value := range opts {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch key {
		case "status":
			f.Status = domain.Status(value)
		case "quarter":
			f.QuarterID = value
		case "epic":
			f.EpicID = value
		case "story":
			f.StoryID = value
		case "sprint":
			f.SprintID = value
		case "tag":
			f.Tag = domain.TaskTag(value)
		case "entity":
			f.TargetID = value
		case "unassigned":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return ListFilter{}, fmt.Errorf("%w: unassigned must be a boolean, got %q", domain.ErrValidation, value)
			}
			f.Unassigned = b
		}
	}
	return f, nil
}
