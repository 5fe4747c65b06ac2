package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hylla/kvartal/internal/domain"
)

// Clock supplies the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// Service implements the work graph operations on top of a DocumentStore.
// Every mutating call loads the document, applies the change and its
// cascade, and persists exactly once.
type Service struct {
	store DocumentStore
	log   *log.Logger
	clock Clock
}

// NewService builds a Service with the given store and logger.
func NewService(store DocumentStore, logger *log.Logger, opts ...ServiceOption) *Service {
	s := &Service{store: store, log: logger, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServiceOption customizes Service construction.
type ServiceOption func(*Service)

// WithClock overrides the service clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

// Init creates and persists a fresh graph document.
func (s *Service) Init(ctx context.Context) (*domain.Document, error) {
	doc := domain.NewDocument(s.clock())
	if err := s.store.Init(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info("graph initialized", "version", doc.Version)
	return doc, nil
}

// Document loads the current graph document.
func (s *Service) Document(ctx context.Context) (*domain.Document, error) {
	return s.store.Load(ctx)
}

// CreateEpicInput carries the caller-supplied fields for a new epic.
type CreateEpicInput struct {
	Title        string
	Description  string
	Quarter      string
	Priority     int
	Deliverables []string
}

// CreateEpic allocates an id and adds an epic under its quarter.
func (s *Service) CreateEpic(ctx context.Context, in CreateEpicInput) (*domain.Epic, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	id, err := doc.NextID(domain.KindEpic)
	if err != nil {
		return nil, err
	}
	epic, err := domain.NewEpic(domain.EpicInput{
		ID:           id,
		Title:        in.Title,
		Description:  in.Description,
		Quarter:      in.Quarter,
		Priority:     in.Priority,
		Deliverables: in.Deliverables,
	}, s.clock())
	if err != nil {
		return nil, err
	}
	if err := doc.AttachEpic(epic); err != nil {
		return nil, err
	}
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info("epic created", "id", epic.ID, "quarter", epic.Quarter)
	return epic, nil
}

// CreateStoryInput carries the caller-supplied fields for a new story.
type CreateStoryInput struct {
	EpicID             string
	Title              string
	Description        string
	AcceptanceCriteria []string
}

// CreateStory allocates an id and adds a story under its epic.
func (s *Service) CreateStory(ctx context.Context, in CreateStoryInput) (*domain.Story, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := doc.Epic(strings.TrimSpace(in.EpicID)); err != nil {
		return nil, err
	}
	id, err := doc.NextID(domain.KindStory)
	if err != nil {
		return nil, err
	}
	story, err := domain.NewStory(domain.StoryInput{
		ID:                 id,
		EpicID:             in.EpicID,
		Title:              in.Title,
		Description:        in.Description,
		AcceptanceCriteria: in.AcceptanceCriteria,
	}, s.clock())
	if err != nil {
		return nil, err
	}
	if err := doc.AttachStory(story); err != nil {
		return nil, err
	}
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info("story created", "id", story.ID, "epic", story.EpicID)
	return story, nil
}

// CreateTaskInput carries the caller-supplied fields for a new task.
// DependsOn records dependency edges at creation time.
type CreateTaskInput struct {
	StoryID     string
	Title       string
	Description string
	Tag         domain.TaskTag
	DependsOn   []string
}

// CreateTask allocates an id, adds a task under its story, and records any
// initial dependencies.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (*domain.Task, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := doc.Story(strings.TrimSpace(in.StoryID)); err != nil {
		return nil, err
	}
	id, err := doc.NextID(domain.KindTask)
	if err != nil {
		return nil, err
	}
	task, err := domain.NewTask(domain.TaskInput{
		ID:          id,
		StoryID:     in.StoryID,
		Title:       in.Title,
		Description: in.Description,
		Tag:         in.Tag,
	}, s.clock())
	if err != nil {
		return nil, err
	}
	if err := doc.AttachTask(task); err != nil {
		return nil, err
	}
	for _, dep := range in.DependsOn {
		if err := doc.AddDependency(id, strings.TrimSpace(dep)); err != nil {
			return nil, err
		}
	}
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info("task created", "id", task.ID, "story", task.StoryID, "tag", task.Tag)
	return task, nil
}

// CreateClarificationInput carries the caller-supplied fields for a new
// clarification.
type CreateClarificationInput struct {
	TargetID string
	Question string
}

// CreateClarification allocates an id and attaches a clarification to its
// host entity.
func (s *Service) CreateClarification(ctx context.Context, in CreateClarificationInput) (*domain.Clarification, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	host, err := doc.Find(strings.TrimSpace(in.TargetID))
	if err != nil {
		return nil, err
	}
	id, err := doc.NextID(domain.KindClarification)
	if err != nil {
		return nil, err
	}
	cl, err := domain.NewClarification(domain.ClarificationInput{
		ID:         id,
		Question:   in.Question,
		TargetID:   host.EntityID(),
		TargetKind: host.EntityKind(),
	}, s.clock())
	if err != nil {
		return nil, err
	}
	if err := doc.AttachClarification(cl); err != nil {
		return nil, err
	}
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info("clarification created", "id", cl.ID, "entity", cl.TargetID)
	return cl, nil
}

// ResolveClarification records an answer and marks the clarification
// clarified.
func (s *Service) ResolveClarification(ctx context.Context, id, answer string) (*domain.Clarification, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	cl, err := doc.Clarification(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	cl.Resolve(answer, s.clock())
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info("clarification resolved", "id", cl.ID)
	return cl, nil
}

// CreateDecisionRecordInput carries the caller-supplied fields for a new
// decision record.
type CreateDecisionRecordInput struct {
	TargetID     string
	Title        string
	Context      string
	Decision     string
	Consequences string
}

// CreateDecisionRecord allocates an id and records a decision, attached to a
// host entity when one is given.
func (s *Service) CreateDecisionRecord(ctx context.Context, in CreateDecisionRecordInput) (*domain.DecisionRecord, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	var targetKind domain.Kind
	targetID := strings.TrimSpace(in.TargetID)
	if targetID != "" {
		host, err := doc.Find(targetID)
		if err != nil {
			return nil, err
		}
		targetKind = host.EntityKind()
	}
	id, err := doc.NextID(domain.KindDecisionRecord)
	if err != nil {
		return nil, err
	}
	rec, err := domain.NewDecisionRecord(domain.DecisionRecordInput{
		ID:           id,
		Title:        in.Title,
		Context:      in.Context,
		Decision:     in.Decision,
		Consequences: in.Consequences,
		TargetID:     targetID,
		TargetKind:   targetKind,
	}, s.clock())
	if err != nil {
		return nil, err
	}
	if err := doc.AttachDecisionRecord(rec); err != nil {
		return nil, err
	}
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info("decision record created", "id", rec.ID, "entity", rec.TargetID)
	return rec, nil
}

// EntityDetail bundles an entity with its graph context.
type EntityDetail struct {
	Entity         domain.Entity `json:"entity"`
	Children       []string      `json:"children,omitempty"`
	Dependencies   []string      `json:"dependencies,omitempty"`
	Dependents     []string      `json:"dependents,omitempty"`
	Clarifications []string      `json:"clarifications,omitempty"`
	Decisions      []string      `json:"decisions,omitempty"`
}

// Get resolves an entity by id together with its children, dependency
// edges, and attachments.
func (s *Service) Get(ctx context.Context, id string) (EntityDetail, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return EntityDetail{}, err
	}
	return entityDetail(doc, strings.TrimSpace(id))
}

func entityDetail(doc *domain.Document, id string) (EntityDetail, error) {
	e, err := doc.Find(id)
	if err != nil {
		return EntityDetail{}, err
	}
	detail := EntityDetail{
		Entity:         e,
		Clarifications: doc.Relationships.EntityClarifications[id],
		Decisions:      doc.Relationships.EntityDecisions[id],
	}
	switch e.EntityKind() {
	case domain.KindQuarter:
		detail.Children = doc.Relationships.QuarterEpics[id]
	case domain.KindEpic:
		detail.Children = doc.Relationships.EpicStories[id]
	case domain.KindStory:
		detail.Children = doc.Relationships.StoryTasks[id]
	case domain.KindTask:
		detail.Dependencies = doc.DependenciesOf(id)
		detail.Dependents = doc.DependentsOf(id)
	case domain.KindSprint:
		detail.Children = doc.Entities.Sprints[id].TaskIDs
	}
	return detail, nil
}

// UpdateResult reports a status write and the cascade it triggered.
type UpdateResult struct {
	Entity  domain.Entity   `json:"entity"`
	Effects []CascadeEffect `json:"effects,omitempty"`
}

// UpdateStatus writes a status to an entity and, unless cascade is off,
// propagates the change through the hierarchy.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.Status, cascade bool) (UpdateResult, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return UpdateResult{}, err
	}
	result, err := s.applyStatus(doc, strings.TrimSpace(id), status, cascade)
	if err != nil {
		return UpdateResult{}, err
	}
	if err := s.save(ctx, doc); err != nil {
		return UpdateResult{}, err
	}
	s.log.Info("status updated", "id", id, "status", status, "effects", len(result.Effects))
	return result, nil
}

// applyStatus performs the status write and cascade against a loaded
// document without persisting.
func (s *Service) applyStatus(doc *domain.Document, id string, status domain.Status, cascade bool) (UpdateResult, error) {
	e, err := doc.Find(id)
	if err != nil {
		return UpdateResult{}, err
	}
	kind := e.EntityKind()
	if !domain.IsValidStatus(kind, status) {
		return UpdateResult{}, fmt.Errorf("%w: %q is not a %s status (valid: %v)",
			domain.ErrInvalidStatus, status, kind, domain.ValidStatuses(kind))
	}

	now := s.clock()
	var effects []CascadeEffect
	switch kind {
	case domain.KindQuarter:
		doc.Entities.Quarters[id].SetStatus(status, now)
	case domain.KindEpic:
		doc.Entities.Epics[id].SetStatus(status, now)
		if cascade {
			effects, err = cascadeFromQuarter(doc, doc.Entities.Epics[id].Quarter, now)
		}
	case domain.KindStory:
		doc.Entities.Stories[id].SetStatus(status, now)
		if cascade {
			effects, err = cascadeFromEpic(doc, doc.Entities.Stories[id].EpicID, now)
		}
	case domain.KindTask:
		doc.Entities.Tasks[id].SetStatus(status, now)
		if cascade {
			effects, err = cascadeFromTask(doc, id, now)
		}
	case domain.KindClarification:
		doc.Entities.Clarifications[id].SetStatus(status, now)
	case domain.KindDecisionRecord:
		doc.Entities.DecisionRecords[id].SetStatus(status, now)
	case domain.KindSprint:
		doc.Entities.Sprints[id].SetStatus(status, now)
	}
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Entity: e, Effects: effects}, nil
}

// UpdateFields applies a field patch to an entity. Unrecognized keys are
// ignored. A "status" key routes through the status path with cascade on.
func (s *Service) UpdateFields(ctx context.Context, id string, patch map[string]any) (UpdateResult, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return UpdateResult{}, err
	}
	id = strings.TrimSpace(id)
	e, err := doc.Find(id)
	if err != nil {
		return UpdateResult{}, err
	}

	var result UpdateResult
	if raw, ok := patch["status"]; ok {
		status, ok := raw.(string)
		if !ok {
			return UpdateResult{}, fmt.Errorf("%w: status must be a string", domain.ErrValidation)
		}
		result, err = s.applyStatus(doc, id, domain.Status(status), true)
		if err != nil {
			return UpdateResult{}, err
		}
	} else {
		result = UpdateResult{Entity: e}
	}

	if err := applyFieldPatch(doc, e, patch, s.clock()); err != nil {
		return UpdateResult{}, err
	}
	if err := s.save(ctx, doc); err != nil {
		return UpdateResult{}, err
	}
	s.log.Info("entity updated", "id", id, "fields", len(patch))
	return result, nil
}

// DeleteResult reports which policy a delete resolved to and any cascade it
// triggered.
type DeleteResult struct {
	ID      string              `json:"id"`
	Kind    domain.Kind         `json:"kind"`
	Policy  domain.DeletePolicy `json:"policy"`
	Effects []CascadeEffect     `json:"effects,omitempty"`
}

// Delete removes an entity under its kind's delete policy. Tasks are
// soft-deleted by marking them skipped so that history and allocated ids
// survive; everything else is removed outright.
func (s *Service) Delete(ctx context.Context, id string) (DeleteResult, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return DeleteResult{}, err
	}
	id = strings.TrimSpace(id)
	e, err := doc.Find(id)
	if err != nil {
		return DeleteResult{}, err
	}

	kind := e.EntityKind()
	result := DeleteResult{ID: id, Kind: kind, Policy: domain.DeletePolicyFor(kind)}
	now := s.clock()

	switch kind {
	case domain.KindQuarter:
		return DeleteResult{}, fmt.Errorf("%w: quarters are fixed and cannot be deleted", domain.ErrValidation)
	case domain.KindTask:
		doc.Entities.Tasks[id].SetStatus(domain.StatusSkipped, now)
		result.Effects, err = cascadeFromTask(doc, id, now)
	case domain.KindEpic:
		err = doc.RemoveEpic(id)
	case domain.KindStory:
		err = doc.RemoveStory(id)
	case domain.KindClarification:
		err = doc.RemoveClarification(id)
	case domain.KindDecisionRecord:
		err = doc.RemoveDecisionRecord(id)
	case domain.KindSprint:
		err = doc.RemoveSprint(id, now)
	}
	if err != nil {
		return DeleteResult{}, err
	}
	if err := s.save(ctx, doc); err != nil {
		return DeleteResult{}, err
	}
	s.log.Info("entity deleted", "id", id, "kind", kind, "policy", result.Policy)
	return result, nil
}

// Cascade recomputes aggregate statuses. With an id it cascades from that
// entity upward; with an empty id it repairs the whole graph.
func (s *Service) Cascade(ctx context.Context, id string) ([]CascadeEffect, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	var effects []CascadeEffect
	if id = strings.TrimSpace(id); id != "" {
		effects, err = cascadeFrom(doc, id, s.clock())
		if err != nil {
			return nil, err
		}
	} else {
		effects = cascadeAll(doc, s.clock())
	}
	if len(effects) == 0 {
		return nil, nil
	}
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info("cascade recomputed", "effects", len(effects))
	return effects, nil
}

// SetCriterionDone toggles one acceptance criterion on a story and returns
// the story's updated progress.
func (s *Service) SetCriterionDone(ctx context.Context, storyID string, index int, done bool) (domain.CriteriaProgress, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return domain.CriteriaProgress{}, err
	}
	story, err := doc.Story(strings.TrimSpace(storyID))
	if err != nil {
		return domain.CriteriaProgress{}, err
	}
	if err := story.SetCriterionDone(index, done, s.clock()); err != nil {
		return domain.CriteriaProgress{}, err
	}
	if err := s.save(ctx, doc); err != nil {
		return domain.CriteriaProgress{}, err
	}
	return story.Progress(), nil
}

// NextID previews the next id for a kind without allocating it.
func (s *Service) NextID(ctx context.Context, kind domain.Kind) (string, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return doc.PeekNextID(kind)
}

// save validates and persists a mutated document.
func (s *Service) save(ctx context.Context, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	return s.store.Save(ctx, doc)
}
