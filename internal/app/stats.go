package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/hylla/kvartal/internal/domain"
)

// KindStats summarizes one entity family.
type KindStats struct {
	Total    int                   `json:"total"`
	ByStatus map[domain.Status]int `json:"byStatus"`
}

// Stats is the graph-wide summary returned by the stats operation.
type Stats struct {
	Quarters       KindStats              `json:"quarters"`
	Epics          KindStats              `json:"epics"`
	Stories        KindStats              `json:"stories"`
	Tasks          KindStats              `json:"tasks"`
	Clarifications KindStats              `json:"clarifications"`
	Decisions      KindStats              `json:"adrs"`
	Sprints        KindStats              `json:"sprints"`
	TasksByTag     map[domain.TaskTag]int `json:"tasksByTag"`
	Progress       float64                `json:"progress"`
	ReadyTasks     int                    `json:"readyTasks"`
	ActiveSprint   string                 `json:"activeSprint,omitempty"`
}

// StatsFilter scopes the summary to one quarter or one epic. Zero value
// covers the whole graph.
type StatsFilter struct {
	QuarterID string
	EpicID    string
}

// Stats computes counts, per-status breakdowns, tag distribution, and
// overall progress. Epic, story, and task figures honor the filter scope;
// quarter, clarification, decision, and sprint counts are always global.
func (s *Service) Stats(ctx context.Context, filter StatsFilter) (Stats, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TasksByTag: make(map[domain.TaskTag]int),
	}
	epics, stories, tasks := scopedEntities(doc, filter)
	stats.Quarters = kindStats(doc.Entities.Quarters)
	stats.Epics = kindStats(epics)
	stats.Stories = kindStats(stories)
	stats.Tasks = kindStats(tasks)
	stats.Clarifications = kindStats(doc.Entities.Clarifications)
	stats.Decisions = kindStats(doc.Entities.DecisionRecords)
	stats.Sprints = kindStats(doc.Entities.Sprints)

	resolved := 0
	for _, task := range tasks {
		stats.TasksByTag[task.Tag]++
		if task.Resolved() {
			resolved++
		}
	}
	if stats.Tasks.Total > 0 {
		stats.Progress = float64(resolved) / float64(stats.Tasks.Total)
	}
	stats.ReadyTasks = len(readyTasks(doc, ReadyFilter{QuarterID: filter.QuarterID, EpicID: filter.EpicID}))
	for _, id := range sortedKeys(doc.Entities.Sprints) {
		if doc.Entities.Sprints[id].Status == domain.StatusActive {
			stats.ActiveSprint = id
			break
		}
	}
	return stats, nil
}

// scopedEntities narrows epics, stories, and tasks to the filter scope.
func scopedEntities(doc *domain.Document, filter StatsFilter) (map[string]*domain.Epic, map[string]*domain.Story, map[string]*domain.Task) {
	if filter.QuarterID == "" && filter.EpicID == "" {
		return doc.Entities.Epics, doc.Entities.Stories, doc.Entities.Tasks
	}

	epics := make(map[string]*domain.Epic)
	stories := make(map[string]*domain.Story)
	tasks := make(map[string]*domain.Task)
	for id, epic := range doc.Entities.Epics {
		if filter.EpicID != "" && id != filter.EpicID {
			continue
		}
		if filter.QuarterID != "" && epic.Quarter != filter.QuarterID {
			continue
		}
		epics[id] = epic
		for _, storyID := range doc.Relationships.EpicStories[id] {
			story, err := doc.Story(storyID)
			if err != nil {
				continue
			}
			stories[storyID] = story
			for _, taskID := range doc.Relationships.StoryTasks[storyID] {
				if task, err := doc.Task(taskID); err == nil {
					tasks[taskID] = task
				}
			}
		}
	}
	return epics, stories, tasks
}

func kindStats[E domain.Entity](entities map[string]E) KindStats {
	ks := KindStats{Total: len(entities), ByStatus: make(map[domain.Status]int)}
	for _, e := range entities {
		ks.ByStatus[e.CurrentStatus()]++
	}
	return ks
}

// ChainResult names every ancestor of a task up to its quarter.
type ChainResult struct {
	TaskID    string `json:"taskId"`
	StoryID   string `json:"storyId"`
	EpicID    string `json:"epicId"`
	QuarterID string `json:"quarterId"`
	Path      string `json:"path"`
}

// Chain resolves the ancestor chain of a task and renders it as a path
// string like "Q1 > E-001 > US-001 > T-003".
func (s *Service) Chain(ctx context.Context, taskID string) (ChainResult, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return ChainResult{}, err
	}
	taskID = strings.TrimSpace(taskID)
	task, err := doc.Task(taskID)
	if err != nil {
		return ChainResult{}, err
	}
	story, err := doc.Story(task.StoryID)
	if err != nil {
		return ChainResult{}, err
	}
	epic, err := doc.Epic(story.EpicID)
	if err != nil {
		return ChainResult{}, err
	}
	return ChainResult{
		TaskID:    task.ID,
		StoryID:   story.ID,
		EpicID:    epic.ID,
		QuarterID: epic.Quarter,
		Path:      fmt.Sprintf("%s > %s > %s > %s", epic.Quarter, epic.ID, story.ID, task.ID),
	}, nil
}

// DescendantsResult lists everything below an entity in the hierarchy.
type DescendantsResult struct {
	ID      string   `json:"id"`
	Epics   []string `json:"epics,omitempty"`
	Stories []string `json:"stories,omitempty"`
	Tasks   []string `json:"tasks,omitempty"`
}

// Descendants walks the hierarchy below a quarter, epic, or story.
func (s *Service) Descendants(ctx context.Context, id string) (DescendantsResult, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return DescendantsResult{}, err
	}
	id = strings.TrimSpace(id)
	e, err := doc.Find(id)
	if err != nil {
		return DescendantsResult{}, err
	}

	result := DescendantsResult{ID: id}
	switch e.EntityKind() {
	case domain.KindQuarter:
		result.Epics = append(result.Epics, doc.Relationships.QuarterEpics[id]...)
		for _, epicID := range result.Epics {
			result.Stories = append(result.Stories, doc.Relationships.EpicStories[epicID]...)
		}
		for _, storyID := range result.Stories {
			result.Tasks = append(result.Tasks, doc.Relationships.StoryTasks[storyID]...)
		}
	case domain.KindEpic:
		result.Stories = append(result.Stories, doc.Relationships.EpicStories[id]...)
		for _, storyID := range result.Stories {
			result.Tasks = append(result.Tasks, doc.Relationships.StoryTasks[storyID]...)
		}
	case domain.KindStory:
		result.Tasks = append(result.Tasks, doc.Relationships.StoryTasks[id]...)
	default:
		return DescendantsResult{}, fmt.Errorf("%w: %s has no descendants", domain.ErrValidation, e.EntityKind())
	}
	return result, nil
}
