package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// DocumentVersion is the wire format version stamped on new documents.
const DocumentVersion = "3.0.0"

// Entities holds every entity in the graph keyed by id.
type Entities struct {
	Quarters        map[string]*Quarter        `json:"quarters"`
	Epics           map[string]*Epic           `json:"epics"`
	Stories         map[string]*Story          `json:"stories"`
	Tasks           map[string]*Task           `json:"tasks"`
	Clarifications  map[string]*Clarification  `json:"clarifications"`
	DecisionRecords map[string]*DecisionRecord `json:"adrs"`
	Sprints         map[string]*Sprint         `json:"sprints"`
}

// Relationships mirrors the parent pointers stored on the entities as
// adjacency lists. Document mutators keep both representations in step.
type Relationships struct {
	QuarterEpics         map[string][]string `json:"quarter_epics"`
	EpicStories          map[string][]string `json:"epic_stories"`
	StoryTasks           map[string][]string `json:"story_tasks"`
	TaskDependencies     map[string][]string `json:"task_dependencies"`
	EntityClarifications map[string][]string `json:"entity_clarifications"`
	EntityDecisions      map[string][]string `json:"entity_adrs"`
}

// Counters records the highest allocated sequence number per id family.
type Counters struct {
	Epic          int `json:"epic"`
	Story         int `json:"story"`
	Task          int `json:"task"`
	Clarification int `json:"clarification"`
	Decision      int `json:"adr"`
	Sprint        int `json:"sprint"`
}

// Document is the whole work graph as persisted: one structured value
// holding entities, relationships, and id counters.
type Document struct {
	Version       string        `json:"version"`
	Revision      int64         `json:"revision"`
	Entities      Entities      `json:"entities"`
	Relationships Relationships `json:"relationships"`
	Counters      Counters      `json:"counters"`
}

// NewDocument builds an empty graph with the four fixed quarters seeded.
func NewDocument(now time.Time) *Document {
	doc := &Document{
		Version:  DocumentVersion,
		Revision: 1,
		Entities: Entities{
			Quarters:        make(map[string]*Quarter),
			Epics:           make(map[string]*Epic),
			Stories:         make(map[string]*Story),
			Tasks:           make(map[string]*Task),
			Clarifications:  make(map[string]*Clarification),
			DecisionRecords: make(map[string]*DecisionRecord),
			Sprints:         make(map[string]*Sprint),
		},
		Relationships: Relationships{
			QuarterEpics:         make(map[string][]string),
			EpicStories:          make(map[string][]string),
			StoryTasks:           make(map[string][]string),
			TaskDependencies:     make(map[string][]string),
			EntityClarifications: make(map[string][]string),
			EntityDecisions:      make(map[string][]string),
		},
	}
	for _, id := range QuarterIDs {
		doc.Entities.Quarters[id] = NewQuarter(id, now)
		doc.Relationships.QuarterEpics[id] = []string{}
	}
	return doc
}

// counterFor returns a pointer to the counter backing the given kind.
func (d *Document) counterFor(kind Kind) (*int, error) {
	switch kind {
	case KindEpic:
		return &d.Counters.Epic, nil
	case KindStory:
		return &d.Counters.Story, nil
	case KindTask:
		return &d.Counters.Task, nil
	case KindClarification:
		return &d.Counters.Clarification, nil
	case KindDecisionRecord:
		return &d.Counters.Decision, nil
	case KindSprint:
		return &d.Counters.Sprint, nil
	}
	return nil, fmt.Errorf("%w: kind %q has no id counter", ErrValidation, kind)
}

// NextID allocates and returns the next id for a kind, advancing the
// counter. Allocated ids are never reused, even after deletes.
func (d *Document) NextID(kind Kind) (string, error) {
	c, err := d.counterFor(kind)
	if err != nil {
		return "", err
	}
	*c++
	return FormatID(kind, *c), nil
}

// PeekNextID returns the id the next allocation would produce without
// advancing the counter.
func (d *Document) PeekNextID(kind Kind) (string, error) {
	c, err := d.counterFor(kind)
	if err != nil {
		return "", err
	}
	return FormatID(kind, *c+1), nil
}

// KindForID infers the entity kind from an id's prefix.
func KindForID(id string) (Kind, bool) {
	if IsQuarterID(id) {
		return KindQuarter, true
	}
	switch {
	case strings.HasPrefix(id, "ADR-"):
		return KindDecisionRecord, true
	case strings.HasPrefix(id, "CL-"):
		return KindClarification, true
	case strings.HasPrefix(id, "US-"):
		return KindStory, true
	case strings.HasPrefix(id, "E-"):
		return KindEpic, true
	case strings.HasPrefix(id, "T-"):
		return KindTask, true
	case strings.HasPrefix(id, "S-"):
		return KindSprint, true
	}
	return "", false
}

// Find resolves any entity by id.
func (d *Document) Find(id string) (Entity, error) {
	kind, ok := KindForID(id)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized id %q", ErrNotFound, id)
	}
	switch kind {
	case KindQuarter:
		if q, ok := d.Entities.Quarters[id]; ok {
			return q, nil
		}
	case KindEpic:
		if e, ok := d.Entities.Epics[id]; ok {
			return e, nil
		}
	case KindStory:
		if s, ok := d.Entities.Stories[id]; ok {
			return s, nil
		}
	case KindTask:
		if t, ok := d.Entities.Tasks[id]; ok {
			return t, nil
		}
	case KindClarification:
		if c, ok := d.Entities.Clarifications[id]; ok {
			return c, nil
		}
	case KindDecisionRecord:
		if a, ok := d.Entities.DecisionRecords[id]; ok {
			return a, nil
		}
	case KindSprint:
		if s, ok := d.Entities.Sprints[id]; ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

// Quarter returns a quarter by id.
func (d *Document) Quarter(id string) (*Quarter, error) {
	q, ok := d.Entities.Quarters[id]
	if !ok {
		return nil, fmt.Errorf("%w: quarter %q", ErrNotFound, id)
	}
	return q, nil
}

// Epic returns an epic by id.
func (d *Document) Epic(id string) (*Epic, error) {
	e, ok := d.Entities.Epics[id]
	if !ok {
		return nil, fmt.Errorf("%w: epic %q", ErrNotFound, id)
	}
	return e, nil
}

// Story returns a story by id.
func (d *Document) Story(id string) (*Story, error) {
	s, ok := d.Entities.Stories[id]
	if !ok {
		return nil, fmt.Errorf("%w: story %q", ErrNotFound, id)
	}
	return s, nil
}

// Task returns a task by id.
func (d *Document) Task(id string) (*Task, error) {
	t, ok := d.Entities.Tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: task %q", ErrNotFound, id)
	}
	return t, nil
}

// Clarification returns a clarification by id.
func (d *Document) Clarification(id string) (*Clarification, error) {
	c, ok := d.Entities.Clarifications[id]
	if !ok {
		return nil, fmt.Errorf("%w: clarification %q", ErrNotFound, id)
	}
	return c, nil
}

// DecisionRecord returns a decision record by id.
func (d *Document) DecisionRecord(id string) (*DecisionRecord, error) {
	a, ok := d.Entities.DecisionRecords[id]
	if !ok {
		return nil, fmt.Errorf("%w: decision record %q", ErrNotFound, id)
	}
	return a, nil
}

// Sprint returns a sprint by id.
func (d *Document) Sprint(id string) (*Sprint, error) {
	s, ok := d.Entities.Sprints[id]
	if !ok {
		return nil, fmt.Errorf("%w: sprint %q", ErrNotFound, id)
	}
	return s, nil
}

// AttachEpic adds an epic under its quarter.
func (d *Document) AttachEpic(e *Epic) error {
	if _, ok := d.Entities.Quarters[e.Quarter]; !ok {
		return fmt.Errorf("%w: quarter %q", ErrNotFound, e.Quarter)
	}
	d.Entities.Epics[e.ID] = e
	d.Relationships.QuarterEpics[e.Quarter] = appendUnique(d.Relationships.QuarterEpics[e.Quarter], e.ID)
	return nil
}

// AttachStory adds a story under its epic.
func (d *Document) AttachStory(s *Story) error {
	if _, ok := d.Entities.Epics[s.EpicID]; !ok {
		return fmt.Errorf("%w: epic %q", ErrNotFound, s.EpicID)
	}
	d.Entities.Stories[s.ID] = s
	d.Relationships.EpicStories[s.EpicID] = appendUnique(d.Relationships.EpicStories[s.EpicID], s.ID)
	return nil
}

// AttachTask adds a task under its story.
func (d *Document) AttachTask(t *Task) error {
	if _, ok := d.Entities.Stories[t.StoryID]; !ok {
		return fmt.Errorf("%w: story %q", ErrNotFound, t.StoryID)
	}
	d.Entities.Tasks[t.ID] = t
	d.Relationships.StoryTasks[t.StoryID] = appendUnique(d.Relationships.StoryTasks[t.StoryID], t.ID)
	return nil
}

// AttachClarification adds a clarification under its host entity.
func (d *Document) AttachClarification(c *Clarification) error {
	if _, err := d.Find(c.TargetID); err != nil {
		return err
	}
	d.Entities.Clarifications[c.ID] = c
	d.Relationships.EntityClarifications[c.TargetID] = appendUnique(d.Relationships.EntityClarifications[c.TargetID], c.ID)
	return nil
}

// AttachDecisionRecord adds a decision record, registering it under its host
// entity when one is set. Hostless records live only in the entity map.
func (d *Document) AttachDecisionRecord(a *DecisionRecord) error {
	if a.TargetID != "" {
		if _, err := d.Find(a.TargetID); err != nil {
			return err
		}
		d.Relationships.EntityDecisions[a.TargetID] = appendUnique(d.Relationships.EntityDecisions[a.TargetID], a.ID)
	}
	d.Entities.DecisionRecords[a.ID] = a
	return nil
}

// AttachSprint adds a sprint and stamps sprint membership on its tasks.
func (d *Document) AttachSprint(s *Sprint, now time.Time) error {
	if _, ok := d.Entities.Quarters[s.QuarterID]; !ok {
		return fmt.Errorf("%w: quarter %q", ErrNotFound, s.QuarterID)
	}
	for _, taskID := range s.TaskIDs {
		if _, ok := d.Entities.Tasks[taskID]; !ok {
			return fmt.Errorf("%w: task %q", ErrNotFound, taskID)
		}
	}
	d.Entities.Sprints[s.ID] = s
	for _, taskID := range s.TaskIDs {
		d.Entities.Tasks[taskID].AssignSprint(s.ID, now)
	}
	return nil
}

// RemoveEpic deletes an epic with no remaining stories, pruning its
// adjacency entries and attachments.
func (d *Document) RemoveEpic(id string) error {
	e, err := d.Epic(id)
	if err != nil {
		return err
	}
	if len(d.Relationships.EpicStories[id]) > 0 {
		return fmt.Errorf("%w: epic %q still has stories", ErrValidation, id)
	}
	d.Relationships.QuarterEpics[e.Quarter] = removeString(d.Relationships.QuarterEpics[e.Quarter], id)
	delete(d.Relationships.EpicStories, id)
	d.pruneAttachments(id)
	delete(d.Entities.Epics, id)
	return nil
}

// RemoveStory deletes a story with no remaining tasks.
func (d *Document) RemoveStory(id string) error {
	s, err := d.Story(id)
	if err != nil {
		return err
	}
	if len(d.Relationships.StoryTasks[id]) > 0 {
		return fmt.Errorf("%w: story %q still has tasks", ErrValidation, id)
	}
	d.Relationships.EpicStories[s.EpicID] = removeString(d.Relationships.EpicStories[s.EpicID], id)
	delete(d.Relationships.StoryTasks, id)
	d.pruneAttachments(id)
	delete(d.Entities.Stories, id)
	return nil
}

// RemoveClarification deletes a clarification and its adjacency entry.
func (d *Document) RemoveClarification(id string) error {
	c, err := d.Clarification(id)
	if err != nil {
		return err
	}
	d.Relationships.EntityClarifications[c.TargetID] = removeString(d.Relationships.EntityClarifications[c.TargetID], id)
	if len(d.Relationships.EntityClarifications[c.TargetID]) == 0 {
		delete(d.Relationships.EntityClarifications, c.TargetID)
	}
	delete(d.Entities.Clarifications, id)
	return nil
}

// RemoveDecisionRecord deletes a decision record and its adjacency entry.
func (d *Document) RemoveDecisionRecord(id string) error {
	a, err := d.DecisionRecord(id)
	if err != nil {
		return err
	}
	if a.TargetID != "" {
		d.Relationships.EntityDecisions[a.TargetID] = removeString(d.Relationships.EntityDecisions[a.TargetID], id)
		if len(d.Relationships.EntityDecisions[a.TargetID]) == 0 {
			delete(d.Relationships.EntityDecisions, a.TargetID)
		}
	}
	delete(d.Entities.DecisionRecords, id)
	return nil
}

// RemoveSprint deletes a sprint, clearing membership on its tasks.
func (d *Document) RemoveSprint(id string, now time.Time) error {
	s, err := d.Sprint(id)
	if err != nil {
		return err
	}
	for _, taskID := range s.TaskIDs {
		if t, ok := d.Entities.Tasks[taskID]; ok && t.SprintID != nil && *t.SprintID == id {
			t.UnassignSprint(now)
		}
	}
	delete(d.Entities.Sprints, id)
	return nil
}

// pruneAttachments removes every clarification and decision record hosted by
// the given entity.
func (d *Document) pruneAttachments(hostID string) {
	for _, clID := range d.Relationships.EntityClarifications[hostID] {
		delete(d.Entities.Clarifications, clID)
	}
	delete(d.Relationships.EntityClarifications, hostID)
	for _, adrID := range d.Relationships.EntityDecisions[hostID] {
		delete(d.Entities.DecisionRecords, adrID)
	}
	delete(d.Relationships.EntityDecisions, hostID)
}

// DependenciesOf returns the task ids the given task depends on.
func (d *Document) DependenciesOf(taskID string) []string {
	return slices.Clone(d.Relationships.TaskDependencies[taskID])
}

// DependentsOf returns the task ids that depend on the given task.
func (d *Document) DependentsOf(taskID string) []string {
	var out []string
	for from, deps := range d.Relationships.TaskDependencies {
		if slices.Contains(deps, taskID) {
			out = append(out, from)
		}
	}
	slices.Sort(out)
	return out
}

// AddDependency records that from depends on to. Self edges and edges that
// would close a cycle are rejected.
func (d *Document) AddDependency(from, to string) error {
	if _, err := d.Task(from); err != nil {
		return err
	}
	if _, err := d.Task(to); err != nil {
		return err
	}
	if from == to {
		return fmt.Errorf("%w: %s cannot depend on itself", ErrDependencyCycle, from)
	}
	if d.reaches(to, from) {
		return fmt.Errorf("%w: %s already depends on %s", ErrDependencyCycle, to, from)
	}
	d.Relationships.TaskDependencies[from] = appendUnique(d.Relationships.TaskDependencies[from], to)
	return nil
}

// RemoveDependency drops a dependency edge if present.
func (d *Document) RemoveDependency(from, to string) error {
	if _, err := d.Task(from); err != nil {
		return err
	}
	deps := removeString(d.Relationships.TaskDependencies[from], to)
	if len(deps) == 0 {
		delete(d.Relationships.TaskDependencies, from)
		return nil
	}
	d.Relationships.TaskDependencies[from] = deps
	return nil
}

// reaches walks the dependency graph from start and reports whether target
// is reachable.
func (d *Document) reaches(start, target string) bool {
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		for _, next := range d.Relationships.TaskDependencies[cur] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// Normalize ensures all maps are non-nil and the fixed quarters exist, so
// documents read from older files behave like freshly built ones.
func (d *Document) Normalize(now time.Time) {
	if d.Version == "" {
		d.Version = DocumentVersion
	}
	if d.Revision <= 0 {
		d.Revision = 1
	}
	if d.Entities.Quarters == nil {
		d.Entities.Quarters = make(map[string]*Quarter)
	}
	if d.Entities.Epics == nil {
		d.Entities.Epics = make(map[string]*Epic)
	}
	if d.Entities.Stories == nil {
		d.Entities.Stories = make(map[string]*Story)
	}
	if d.Entities.Tasks == nil {
		d.Entities.Tasks = make(map[string]*Task)
	}
	if d.Entities.Clarifications == nil {
		d.Entities.Clarifications = make(map[string]*Clarification)
	}
	if d.Entities.DecisionRecords == nil {
		d.Entities.DecisionRecords = make(map[string]*DecisionRecord)
	}
	if d.Entities.Sprints == nil {
		d.Entities.Sprints = make(map[string]*Sprint)
	}
	if d.Relationships.QuarterEpics == nil {
		d.Relationships.QuarterEpics = make(map[string][]string)
	}
	if d.Relationships.EpicStories == nil {
		d.Relationships.EpicStories = make(map[string][]string)
	}
	if d.Relationships.StoryTasks == nil {
		d.Relationships.StoryTasks = make(map[string][]string)
	}
	if d.Relationships.TaskDependencies == nil {
		d.Relationships.TaskDependencies = make(map[string][]string)
	}
	if d.Relationships.EntityClarifications == nil {
		d.Relationships.EntityClarifications = make(map[string][]string)
	}
	if d.Relationships.EntityDecisions == nil {
		d.Relationships.EntityDecisions = make(map[string][]string)
	}
	for _, id := range QuarterIDs {
		if _, ok := d.Entities.Quarters[id]; !ok {
			d.Entities.Quarters[id] = NewQuarter(id, now)
		}
		if _, ok := d.Relationships.QuarterEpics[id]; !ok {
			d.Relationships.QuarterEpics[id] = []string{}
		}
	}
}

// Validate checks referential integrity between entities and adjacency
// lists. It is run after load and before save.
func (d *Document) Validate() error {
	for id, e := range d.Entities.Epics {
		if id != e.ID {
			return fmt.Errorf("%w: epic keyed %q has id %q", ErrValidation, id, e.ID)
		}
		if _, ok := d.Entities.Quarters[e.Quarter]; !ok {
			return fmt.Errorf("%w: epic %s references missing quarter %q", ErrValidation, id, e.Quarter)
		}
		if !slices.Contains(d.Relationships.QuarterEpics[e.Quarter], id) {
			return fmt.Errorf("%w: epic %s missing from quarter_epics[%s]", ErrValidation, id, e.Quarter)
		}
	}
	for id, s := range d.Entities.Stories {
		if _, ok := d.Entities.Epics[s.EpicID]; !ok {
			return fmt.Errorf("%w: story %s references missing epic %q", ErrValidation, id, s.EpicID)
		}
		if !slices.Contains(d.Relationships.EpicStories[s.EpicID], id) {
			return fmt.Errorf("%w: story %s missing from epic_stories[%s]", ErrValidation, id, s.EpicID)
		}
	}
	for id, t := range d.Entities.Tasks {
		if _, ok := d.Entities.Stories[t.StoryID]; !ok {
			return fmt.Errorf("%w: task %s references missing story %q", ErrValidation, id, t.StoryID)
		}
		if !slices.Contains(d.Relationships.StoryTasks[t.StoryID], id) {
			return fmt.Errorf("%w: task %s missing from story_tasks[%s]", ErrValidation, id, t.StoryID)
		}
		if t.SprintID != nil {
			if _, ok := d.Entities.Sprints[*t.SprintID]; !ok {
				return fmt.Errorf("%w: task %s references missing sprint %q", ErrValidation, id, *t.SprintID)
			}
		}
	}
	for from, deps := range d.Relationships.TaskDependencies {
		if _, ok := d.Entities.Tasks[from]; !ok {
			return fmt.Errorf("%w: dependency source %q is not a task", ErrValidation, from)
		}
		for _, to := range deps {
			if _, ok := d.Entities.Tasks[to]; !ok {
				return fmt.Errorf("%w: task %s depends on missing task %q", ErrValidation, from, to)
			}
		}
	}
	for id, c := range d.Entities.Clarifications {
		if _, err := d.Find(c.TargetID); err != nil {
			return fmt.Errorf("%w: clarification %s references missing entity %q", ErrValidation, id, c.TargetID)
		}
	}
	for id, a := range d.Entities.DecisionRecords {
		if a.TargetID == "" {
			continue
		}
		if _, err := d.Find(a.TargetID); err != nil {
			return fmt.Errorf("%w: decision record %s references missing entity %q", ErrValidation, id, a.TargetID)
		}
	}
	for id, s := range d.Entities.Sprints {
		if _, ok := d.Entities.Quarters[s.QuarterID]; !ok {
			return fmt.Errorf("%w: sprint %s references missing quarter %q", ErrValidation, id, s.QuarterID)
		}
		for _, taskID := range s.TaskIDs {
			if _, ok := d.Entities.Tasks[taskID]; !ok {
				return fmt.Errorf("%w: sprint %s references missing task %q", ErrValidation, id, taskID)
			}
		}
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

func removeString(list []string, v string) []string {
	i := slices.Index(list, v)
	if i < 0 {
		return list
	}
	return slices.Delete(list, i, i+1)
}
