package domain

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func seedDocument(t *testing.T) *Document {
	t.Helper()
	doc := NewDocument(testNow)

	epic, err := NewEpic(EpicInput{ID: "E-001", Title: "Auth overhaul", Quarter: "Q1"}, testNow)
	if err != nil {
		t.Fatalf("NewEpic() error = %v", err)
	}
	if err := doc.AttachEpic(epic); err != nil {
		t.Fatalf("AttachEpic() error = %v", err)
	}

	story, err := NewStory(StoryInput{ID: "US-001", EpicID: "E-001", Title: "Login flow"}, testNow)
	if err != nil {
		t.Fatalf("NewStory() error = %v", err)
	}
	if err := doc.AttachStory(story); err != nil {
		t.Fatalf("AttachStory() error = %v", err)
	}

	for _, id := range []string{"T-001", "T-002", "T-003"} {
		task, err := NewTask(TaskInput{ID: id, StoryID: "US-001", Title: "Task " + id, Tag: TagBackend}, testNow)
		if err != nil {
			t.Fatalf("NewTask() error = %v", err)
		}
		if err := doc.AttachTask(task); err != nil {
			t.Fatalf("AttachTask() error = %v", err)
		}
	}
	return doc
}

func TestNewDocumentSeedsQuarters(t *testing.T) {
	doc := NewDocument(testNow)

	if doc.Version != DocumentVersion {
		t.Fatalf("Version = %q, want %q", doc.Version, DocumentVersion)
	}
	if doc.Revision != 1 {
		t.Fatalf("Revision = %d, want 1", doc.Revision)
	}
	for _, id := range QuarterIDs {
		q, err := doc.Quarter(id)
		if err != nil {
			t.Fatalf("Quarter(%q) error = %v", id, err)
		}
		if q.Status != StatusPlanned {
			t.Fatalf("Quarter(%q).Status = %q, want %q", id, q.Status, StatusPlanned)
		}
		if _, ok := doc.Relationships.QuarterEpics[id]; !ok {
			t.Fatalf("quarter_epics missing %q", id)
		}
	}
}

func TestNextIDSequence(t *testing.T) {
	doc := NewDocument(testNow)

	want := []string{"E-001", "E-002", "E-003"}
	for i, w := range want {
		got, err := doc.NextID(KindEpic)
		if err != nil {
			t.Fatalf("NextID() error = %v", err)
		}
		if got != w {
			t.Fatalf("NextID() #%d = %q, want %q", i+1, got, w)
		}
	}
	if doc.Counters.Epic != 3 {
		t.Fatalf("Counters.Epic = %d, want 3", doc.Counters.Epic)
	}

	peek, err := doc.PeekNextID(KindEpic)
	if err != nil {
		t.Fatalf("PeekNextID() error = %v", err)
	}
	if peek != "E-004" {
		t.Fatalf("PeekNextID() = %q, want E-004", peek)
	}
	if doc.Counters.Epic != 3 {
		t.Fatalf("PeekNextID() advanced counter to %d", doc.Counters.Epic)
	}

	adr, err := doc.NextID(KindDecisionRecord)
	if err != nil {
		t.Fatalf("NextID() error = %v", err)
	}
	if adr != "ADR-0001" {
		t.Fatalf("NextID(adr) = %q, want ADR-0001", adr)
	}
}

func TestNextIDUnknownKind(t *testing.T) {
	doc := NewDocument(testNow)
	if _, err := doc.NextID(KindQuarter); !errors.Is(err, ErrValidation) {
		t.Fatalf("NextID(quarter) error = %v, want ErrValidation", err)
	}
}

func TestAttachMaintainsAdjacency(t *testing.T) {
	doc := seedDocument(t)

	if got := doc.Relationships.QuarterEpics["Q1"]; len(got) != 1 || got[0] != "E-001" {
		t.Fatalf("quarter_epics[Q1] = %v", got)
	}
	if got := doc.Relationships.EpicStories["E-001"]; len(got) != 1 || got[0] != "US-001" {
		t.Fatalf("epic_stories[E-001] = %v", got)
	}
	if got := doc.Relationships.StoryTasks["US-001"]; len(got) != 3 {
		t.Fatalf("story_tasks[US-001] = %v", got)
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestAttachEpicMissingQuarter(t *testing.T) {
	doc := NewDocument(testNow)
	epic := &Epic{ID: "E-001", Title: "x", Quarter: "Q9", Status: StatusDraft}
	if err := doc.AttachEpic(epic); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AttachEpic() error = %v, want ErrNotFound", err)
	}
}

func TestRemoveEpicWithStories(t *testing.T) {
	doc := seedDocument(t)
	if err := doc.RemoveEpic("E-001"); !errors.Is(err, ErrValidation) {
		t.Fatalf("RemoveEpic() error = %v, want ErrValidation", err)
	}
}

func TestRemoveStoryThenEpic(t *testing.T) {
	doc := seedDocument(t)

	if err := doc.RemoveStory("US-001"); !errors.Is(err, ErrValidation) {
		t.Fatalf("RemoveStory() with tasks error = %v, want ErrValidation", err)
	}

	for _, id := range []string{"T-001", "T-002", "T-003"} {
		delete(doc.Entities.Tasks, id)
	}
	doc.Relationships.StoryTasks["US-001"] = nil

	if err := doc.RemoveStory("US-001"); err != nil {
		t.Fatalf("RemoveStory() error = %v", err)
	}
	if err := doc.RemoveEpic("E-001"); err != nil {
		t.Fatalf("RemoveEpic() error = %v", err)
	}
	if len(doc.Relationships.QuarterEpics["Q1"]) != 0 {
		t.Fatalf("quarter_epics[Q1] = %v after removal", doc.Relationships.QuarterEpics["Q1"])
	}
}

func TestDependencyCycleRejected(t *testing.T) {
	doc := seedDocument(t)

	if err := doc.AddDependency("T-002", "T-001"); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
	if err := doc.AddDependency("T-003", "T-002"); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
	if err := doc.AddDependency("T-001", "T-003"); !errors.Is(err, ErrDependencyCycle) {
		t.Fatalf("AddDependency() cycle error = %v, want ErrDependencyCycle", err)
	}
	if err := doc.AddDependency("T-001", "T-001"); !errors.Is(err, ErrDependencyCycle) {
		t.Fatalf("AddDependency() self edge error = %v, want ErrDependencyCycle", err)
	}
}

func TestDependentsOf(t *testing.T) {
	doc := seedDocument(t)

	if err := doc.AddDependency("T-002", "T-001"); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
	if err := doc.AddDependency("T-003", "T-001"); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}

	got := doc.DependentsOf("T-001")
	if len(got) != 2 || got[0] != "T-002" || got[1] != "T-003" {
		t.Fatalf("DependentsOf() = %v, want [T-002 T-003]", got)
	}
}

func TestRemoveDependency(t *testing.T) {
	doc := seedDocument(t)

	if err := doc.AddDependency("T-002", "T-001"); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
	if err := doc.RemoveDependency("T-002", "T-001"); err != nil {
		t.Fatalf("RemoveDependency() error = %v", err)
	}
	if _, ok := doc.Relationships.TaskDependencies["T-002"]; ok {
		t.Fatal("task_dependencies retained empty entry after removal")
	}
}

func TestAttachSprintStampsMembership(t *testing.T) {
	doc := seedDocument(t)

	sprint, err := NewSprint(SprintInput{ID: "S-001", Name: "Sprint 1", QuarterID: "Q1", TaskIDs: []string{"T-001", "T-002"}}, testNow)
	if err != nil {
		t.Fatalf("NewSprint() error = %v", err)
	}
	if err := doc.AttachSprint(sprint, testNow); err != nil {
		t.Fatalf("AttachSprint() error = %v", err)
	}

	for _, id := range []string{"T-001", "T-002"} {
		task, _ := doc.Task(id)
		if task.SprintID == nil || *task.SprintID != "S-001" {
			t.Fatalf("task %s sprintId = %v, want S-001", id, task.SprintID)
		}
	}
	task, _ := doc.Task("T-003")
	if task.SprintID != nil {
		t.Fatalf("task T-003 sprintId = %v, want nil", task.SprintID)
	}
}

func TestRemoveSprintClearsMembership(t *testing.T) {
	doc := seedDocument(t)

	sprint, err := NewSprint(SprintInput{ID: "S-001", Name: "Sprint 1", QuarterID: "Q1", TaskIDs: []string{"T-001"}}, testNow)
	if err != nil {
		t.Fatalf("NewSprint() error = %v", err)
	}
	if err := doc.AttachSprint(sprint, testNow); err != nil {
		t.Fatalf("AttachSprint() error = %v", err)
	}
	if err := doc.RemoveSprint("S-001", testNow); err != nil {
		t.Fatalf("RemoveSprint() error = %v", err)
	}

	task, _ := doc.Task("T-001")
	if task.SprintID != nil {
		t.Fatalf("task T-001 sprintId = %v after sprint removal", task.SprintID)
	}
}

func TestRemoveEntityPrunesAttachments(t *testing.T) {
	doc := seedDocument(t)

	cl, err := NewClarification(ClarificationInput{ID: "CL-001", Question: "Scope?", TargetID: "US-001", TargetKind: KindStory}, testNow)
	if err != nil {
		t.Fatalf("NewClarification() error = %v", err)
	}
	if err := doc.AttachClarification(cl); err != nil {
		t.Fatalf("AttachClarification() error = %v", err)
	}

	for _, id := range []string{"T-001", "T-002", "T-003"} {
		delete(doc.Entities.Tasks, id)
	}
	doc.Relationships.StoryTasks["US-001"] = nil
	if err := doc.RemoveStory("US-001"); err != nil {
		t.Fatalf("RemoveStory() error = %v", err)
	}

	if _, ok := doc.Entities.Clarifications["CL-001"]; ok {
		t.Fatal("clarification survived removal of its host")
	}
}

func TestValidateCatchesBrokenReference(t *testing.T) {
	doc := seedDocument(t)
	doc.Entities.Tasks["T-001"].StoryID = "US-999"
	if err := doc.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}

func TestFindByID(t *testing.T) {
	doc := seedDocument(t)

	tests := []struct {
		id   string
		kind Kind
	}{
		{id: "Q1", kind: KindQuarter},
		{id: "E-001", kind: KindEpic},
		{id: "US-001", kind: KindStory},
		{id: "T-002", kind: KindTask},
	}
	for _, tt := range tests {
		e, err := doc.Find(tt.id)
		if err != nil {
			t.Fatalf("Find(%q) error = %v", tt.id, err)
		}
		if e.EntityKind() != tt.kind {
			t.Fatalf("Find(%q).EntityKind() = %q, want %q", tt.id, e.EntityKind(), tt.kind)
		}
	}

	if _, err := doc.Find("T-999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Find(T-999) error = %v, want ErrNotFound", err)
	}
	if _, err := doc.Find("bogus"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Find(bogus) error = %v, want ErrNotFound", err)
	}
}
