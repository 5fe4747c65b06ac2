package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAcceptanceCriterionLegacyDecode(t *testing.T) {
	var story Story
	raw := `{"id":"US-001","title":"Login","status":"draft","epicId":"E-001",
		"acceptanceCriteria":["old string item",{"title":"migrated item","done":true}]}`
	if err := json.Unmarshal([]byte(raw), &story); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if len(story.AcceptanceCriteria) != 2 {
		t.Fatalf("got %d criteria, want 2", len(story.AcceptanceCriteria))
	}
	legacy := story.AcceptanceCriteria[0]
	if !legacy.IsLegacy() || legacy.Title != "old string item" || legacy.Done {
		t.Fatalf("legacy criterion = %+v", legacy)
	}
	record := story.AcceptanceCriteria[1]
	if record.IsLegacy() || record.Title != "migrated item" || !record.Done {
		t.Fatalf("record criterion = %+v", record)
	}
}

func TestAcceptanceCriterionRoundTrip(t *testing.T) {
	legacy := AcceptanceCriterion{Title: "keep string form", legacy: true}
	data, err := json.Marshal(legacy)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"keep string form"` {
		t.Fatalf("Marshal(legacy) = %s", data)
	}

	migrated := NewAcceptanceCriterion("record form")
	data, err = json.Marshal(migrated)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"title":"record form","done":false}` {
		t.Fatalf("Marshal(record) = %s", data)
	}
}

func TestSetCriterionDoneMigratesLegacy(t *testing.T) {
	story, err := NewStory(StoryInput{ID: "US-001", EpicID: "E-001", Title: "Login"}, testNow)
	if err != nil {
		t.Fatalf("NewStory() error = %v", err)
	}
	story.AcceptanceCriteria = []AcceptanceCriterion{{Title: "legacy", legacy: true}}

	if err := story.SetCriterionDone(0, true, testNow); err != nil {
		t.Fatalf("SetCriterionDone() error = %v", err)
	}
	got := story.AcceptanceCriteria[0]
	if got.IsLegacy() || !got.Done {
		t.Fatalf("criterion after SetCriterionDone = %+v", got)
	}

	if err := story.SetCriterionDone(5, true, testNow); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("SetCriterionDone(5) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestStoryProgress(t *testing.T) {
	story, err := NewStory(StoryInput{
		ID:                 "US-001",
		EpicID:             "E-001",
		Title:              "Login",
		AcceptanceCriteria: []string{"first", "second", "third"},
	}, testNow)
	if err != nil {
		t.Fatalf("NewStory() error = %v", err)
	}
	if err := story.SetCriterionDone(0, true, testNow); err != nil {
		t.Fatalf("SetCriterionDone() error = %v", err)
	}

	p := story.Progress()
	if p.Total != 3 || p.Done != 1 || p.Remaining != 2 {
		t.Fatalf("Progress() = %+v", p)
	}

	empty, _ := NewStory(StoryInput{ID: "US-002", EpicID: "E-001", Title: "Empty"}, testNow)
	if got := empty.Progress(); got.Ratio != 0 {
		t.Fatalf("Progress() ratio for empty story = %v, want 0", got.Ratio)
	}
}

func TestNewStoryValidation(t *testing.T) {
	tests := []struct {
		name string
		in   StoryInput
	}{
		{name: "missing id", in: StoryInput{EpicID: "E-001", Title: "x"}},
		{name: "missing epic", in: StoryInput{ID: "US-001", Title: "x"}},
		{name: "missing title", in: StoryInput{ID: "US-001", EpicID: "E-001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStory(tt.in, testNow); !errors.Is(err, ErrValidation) {
				t.Fatalf("NewStory() error = %v, want ErrValidation", err)
			}
		})
	}
}
