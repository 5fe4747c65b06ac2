package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/hylla/kvartal/internal/domain"
)

// applyFieldPatch writes recognized patch keys onto an entity. The "status"
// key is handled by the caller; unknown keys are ignored so older clients
// can send fields this version does not track.
func applyFieldPatch(doc *domain.Document, e domain.Entity, patch map[string]any, now time.Time) error {
	for key, value := range patch {
		if key == "status" {
			continue
		}
		if _, err := applyField(doc, e, key, value, now); err != nil {
			return err
		}
	}
	// Every update touches the entity, even when no recognized field changed.
	stampUpdated(e, now)
	return nil
}

func applyField(doc *domain.Document, e domain.Entity, key string, value any, now time.Time) (bool, error) {
	switch target := e.(type) {
	case *domain.Quarter:
		switch key {
		case "theme":
			return patchString(&target.Theme, value, key)
		case "goals":
			return patchStringList(&target.Goals, value, key)
		}
	case *domain.Epic:
		switch key {
		case "title":
			return patchString(&target.Title, value, key)
		case "description":
			return patchString(&target.Description, value, key)
		case "priority":
			return patchInt(&target.Priority, value, key)
		case "deliverables":
			return patchStringList(&target.Deliverables, value, key)
		case "quarter":
			return true, moveEpic(doc, target, value)
		}
	case *domain.Story:
		switch key {
		case "title":
			return patchString(&target.Title, value, key)
		case "description":
			return patchString(&target.Description, value, key)
		}
	case *domain.Task:
		switch key {
		case "title":
			return patchString(&target.Title, value, key)
		case "description":
			return patchString(&target.Description, value, key)
		case "tag":
			raw, ok := value.(string)
			if !ok {
				return false, fmt.Errorf("%w: tag must be a string", domain.ErrValidation)
			}
			tag := domain.TaskTag(raw)
			if !domain.IsValidTaskTag(tag) {
				return false, fmt.Errorf("%w: invalid tag %q", domain.ErrValidation, raw)
			}
			target.Tag = tag
			return true, nil
		}
	case *domain.Clarification:
		switch key {
		case "question":
			return patchString(&target.Question, value, key)
		case "answer":
			raw, ok := value.(string)
			if !ok {
				return false, fmt.Errorf("%w: answer must be a string", domain.ErrValidation)
			}
			target.Resolve(raw, now)
			return true, nil
		}
	case *domain.DecisionRecord:
		switch key {
		case "title":
			return patchString(&target.Title, value, key)
		case "context":
			return patchString(&target.Context, value, key)
		case "decision":
			return patchString(&target.Decision, value, key)
		case "consequences":
			return patchString(&target.Consequences, value, key)
		}
	case *domain.Sprint:
		switch key {
		case "name":
			return patchString(&target.Name, value, key)
		case "worktreePath":
			raw, ok := value.(string)
			if !ok {
				return false, fmt.Errorf("%w: worktreePath must be a string", domain.ErrValidation)
			}
			raw = strings.TrimSpace(raw)
			if raw == "" {
				target.WorktreePath = nil
			} else {
				target.WorktreePath = &raw
			}
			return true, nil
		}
	}
	return false, nil
}

// moveEpic reparents an epic to another quarter, keeping the adjacency list
// in step.
func moveEpic(doc *domain.Document, epic *domain.Epic, value any) error {
	raw, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: quarter must be a string", domain.ErrValidation)
	}
	raw = strings.TrimSpace(raw)
	if !domain.IsQuarterID(raw) {
		return fmt.Errorf("%w: invalid quarter %q", domain.ErrValidation, raw)
	}
	if raw == epic.Quarter {
		return nil
	}
	old := doc.Relationships.QuarterEpics[epic.Quarter]
	for i, id := range old {
		if id == epic.ID {
			doc.Relationships.QuarterEpics[epic.Quarter] = append(old[:i:i], old[i+1:]...)
			break
		}
	}
	doc.Relationships.QuarterEpics[raw] = append(doc.Relationships.QuarterEpics[raw], epic.ID)
	epic.Quarter = raw
	return nil
}

func stampUpdated(e domain.Entity, now time.Time) {
	ts := now.UTC()
	switch target := e.(type) {
	case *domain.Quarter:
		target.UpdatedAt = ts
	case *domain.Epic:
		target.UpdatedAt = ts
	case *domain.Story:
		target.UpdatedAt = ts
	case *domain.Task:
		target.UpdatedAt = ts
	case *domain.Clarification:
		target.UpdatedAt = ts
	case *domain.DecisionRecord:
		target.UpdatedAt = ts
	case *domain.Sprint:
		target.UpdatedAt = ts
	}
}

func patchString(dst *string, value any, key string) (bool, error) {
	raw, ok := value.(string)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a string", domain.ErrValidation, key)
	}
	*dst = strings.TrimSpace(raw)
	return true, nil
}

func patchInt(dst *int, value any, key string) (bool, error) {
	switch v := value.(type) {
	case int:
		*dst = v
	case float64:
		*dst = int(v)
	default:
		return false, fmt.Errorf("%w: %s must be a number", domain.ErrValidation, key)
	}
	return true, nil
}

func patchStringList(dst *[]string, value any, key string) (bool, error) {
	switch v := value.(type) {
	case []string:
		*dst = v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return false, fmt.Errorf("%w: %s must be a list of strings", domain.ErrValidation, key)
			}
			out = append(out, s)
		}
		*dst = out
	default:
		return false, fmt.Errorf("%w: %s must be a list of strings", domain.ErrValidation, key)
	}
	return true, nil
}
