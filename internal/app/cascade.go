package app

import (
	"fmt"
	"slices"
	"time"

	"github.com/hylla/kvartal/internal/domain"
)

// EffectKind names what a cascade step did to an entity.
type EffectKind string

const (
	// EffectStatusChanged records an aggregated status written to a parent.
	EffectStatusChanged EffectKind = "status_changed"
	// EffectUnblocked records a blocked task released because its last
	// unresolved dependency completed.
	EffectUnblocked EffectKind = "unblocked"
)

// CascadeEffect describes one entity touched by a cascade pass.
type CascadeEffect struct {
	EntityID string        `json:"entityId"`
	Kind     EffectKind    `json:"effect"`
	Status   domain.Status `json:"status"`
}

// cascadeFromTask propagates one task's status change: it releases blocked
// dependents, re-aggregates the ancestor chain, and closes the task's sprint
// when every member task is resolved.
func cascadeFromTask(doc *domain.Document, taskID string, now time.Time) ([]CascadeEffect, error) {
	task, err := doc.Task(taskID)
	if err != nil {
		return nil, err
	}

	var effects []CascadeEffect
	if task.Resolved() {
		effects = append(effects, unblockDependents(doc, taskID, now)...)
	}
	if task.InSprint() {
		effects = append(effects, recomputeSprint(doc, *task.SprintID, now)...)
	}

	more, err := cascadeFromStory(doc, task.StoryID, now)
	if err != nil {
		return nil, err
	}
	return append(effects, more...), nil
}

// cascadeFromStory re-aggregates a story from its tasks and continues up
// through its epic and quarter.
func cascadeFromStory(doc *domain.Document, storyID string, now time.Time) ([]CascadeEffect, error) {
	story, err := doc.Story(storyID)
	if err != nil {
		return nil, err
	}

	var effects []CascadeEffect
	counts := countChildren(doc, doc.Relationships.StoryTasks[storyID])
	if status, ok := domain.AggregateStoryStatus(counts); ok && status != story.Status {
		story.SetStatus(status, now)
		effects = append(effects, CascadeEffect{EntityID: storyID, Kind: EffectStatusChanged, Status: status})
	}

	more, err := cascadeFromEpic(doc, story.EpicID, now)
	if err != nil {
		return nil, err
	}
	return append(effects, more...), nil
}

// cascadeFromEpic re-aggregates an epic from its stories and continues up
// through its quarter.
func cascadeFromEpic(doc *domain.Document, epicID string, now time.Time) ([]CascadeEffect, error) {
	epic, err := doc.Epic(epicID)
	if err != nil {
		return nil, err
	}

	var effects []CascadeEffect
	counts := countChildren(doc, doc.Relationships.EpicStories[epicID])
	if status, ok := domain.AggregateEpicStatus(counts); ok && status != epic.Status {
		epic.SetStatus(status, now)
		effects = append(effects, CascadeEffect{EntityID: epicID, Kind: EffectStatusChanged, Status: status})
	}

	more, err := cascadeFromQuarter(doc, epic.Quarter, now)
	if err != nil {
		return nil, err
	}
	return append(effects, more...), nil
}

// cascadeFromQuarter re-aggregates a quarter from its epics.
func cascadeFromQuarter(doc *domain.Document, quarterID string, now time.Time) ([]CascadeEffect, error) {
	quarter, err := doc.Quarter(quarterID)
	if err != nil {
		return nil, err
	}

	counts := countChildren(doc, doc.Relationships.QuarterEpics[quarterID])
	if status, ok := domain.AggregateQuarterStatus(counts); ok && status != quarter.Status {
		quarter.SetStatus(status, now)
		return []CascadeEffect{{EntityID: quarterID, Kind: EffectStatusChanged, Status: status}}, nil
	}
	return nil, nil
}

// cascadeFrom recomputes aggregates starting at one entity and walking up.
func cascadeFrom(doc *domain.Document, id string, now time.Time) ([]CascadeEffect, error) {
	kind, ok := domain.KindForID(id)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized id %q", domain.ErrNotFound, id)
	}
	switch kind {
	case domain.KindTask:
		return cascadeFromTask(doc, id, now)
	case domain.KindStory:
		return cascadeFromStory(doc, id, now)
	case domain.KindEpic:
		return cascadeFromEpic(doc, id, now)
	case domain.KindQuarter:
		return cascadeFromQuarter(doc, id, now)
	case domain.KindSprint:
		if _, err := doc.Sprint(id); err != nil {
			return nil, err
		}
		return recomputeSprint(doc, id, now), nil
	}
	return nil, fmt.Errorf("%w: %s entities have no aggregate to cascade", domain.ErrValidation, kind)
}

// cascadeAll recomputes the whole graph bottom up. Used by the explicit
// cascade operation to repair aggregates after bulk edits.
func cascadeAll(doc *domain.Document, now time.Time) []CascadeEffect {
	var effects []CascadeEffect

	for _, taskID := range sortedKeys(doc.Entities.Tasks) {
		if doc.Entities.Tasks[taskID].Resolved() {
			effects = append(effects, unblockDependents(doc, taskID, now)...)
		}
	}
	for _, storyID := range sortedKeys(doc.Entities.Stories) {
		story := doc.Entities.Stories[storyID]
		counts := countChildren(doc, doc.Relationships.StoryTasks[storyID])
		if status, ok := domain.AggregateStoryStatus(counts); ok && status != story.Status {
			story.SetStatus(status, now)
			effects = append(effects, CascadeEffect{EntityID: storyID, Kind: EffectStatusChanged, Status: status})
		}
	}
	for _, epicID := range sortedKeys(doc.Entities.Epics) {
		epic := doc.Entities.Epics[epicID]
		counts := countChildren(doc, doc.Relationships.EpicStories[epicID])
		if status, ok := domain.AggregateEpicStatus(counts); ok && status != epic.Status {
			epic.SetStatus(status, now)
			effects = append(effects, CascadeEffect{EntityID: epicID, Kind: EffectStatusChanged, Status: status})
		}
	}
	for _, quarterID := range domain.QuarterIDs {
		quarter := doc.Entities.Quarters[quarterID]
		counts := countChildren(doc, doc.Relationships.QuarterEpics[quarterID])
		if status, ok := domain.AggregateQuarterStatus(counts); ok && status != quarter.Status {
			quarter.SetStatus(status, now)
			effects = append(effects, CascadeEffect{EntityID: quarterID, Kind: EffectStatusChanged, Status: status})
		}
	}
	for _, sprintID := range sortedKeys(doc.Entities.Sprints) {
		effects = append(effects, recomputeSprint(doc, sprintID, now)...)
	}
	return effects
}

// unblockDependents releases every blocked dependent of taskID whose
// dependencies are now all resolved.
func unblockDependents(doc *domain.Document, taskID string, now time.Time) []CascadeEffect {
	var effects []CascadeEffect
	for _, depID := range doc.DependentsOf(taskID) {
		dependent, err := doc.Task(depID)
		if err != nil || dependent.Status != domain.StatusBlocked {
			continue
		}
		if allDependenciesResolved(doc, depID) {
			dependent.SetStatus(domain.StatusPending, now)
			effects = append(effects, CascadeEffect{EntityID: depID, Kind: EffectUnblocked, Status: domain.StatusPending})
		}
	}
	return effects
}

// recomputeSprint closes a sprint when every member task is resolved.
func recomputeSprint(doc *domain.Document, sprintID string, now time.Time) []CascadeEffect {
	sprint, err := doc.Sprint(sprintID)
	if err != nil {
		return nil
	}
	counts := countChildren(doc, sprint.TaskIDs)
	if status, ok := domain.AggregateSprintStatus(counts); ok && status != sprint.Status {
		sprint.SetStatus(status, now)
		return []CascadeEffect{{EntityID: sprintID, Kind: EffectStatusChanged, Status: status}}
	}
	return nil
}

// countChildren tallies the statuses of the given entity ids.
func countChildren(doc *domain.Document, ids []string) domain.ChildStatusCounts {
	statuses := make([]domain.Status, 0, len(ids))
	for _, id := range ids {
		if e, err := doc.Find(id); err == nil {
			statuses = append(statuses, e.CurrentStatus())
		}
	}
	return domain.CountStatuses(statuses)
}

// allDependenciesResolved reports whether every dependency of a task is
// completed or skipped.
func allDependenciesResolved(doc *domain.Document, taskID string) bool {
	for _, depID := range doc.DependenciesOf(taskID) {
		dep, err := doc.Task(depID)
		if err != nil || !dep.Resolved() {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
