package domain

import "testing"

func TestAggregateStoryStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
		decided  bool
	}{
		{name: "no tasks", statuses: nil, decided: false},
		{name: "all completed", statuses: []Status{StatusCompleted, StatusCompleted}, want: StatusCompleted, decided: true},
		{name: "completed and skipped", statuses: []Status{StatusCompleted, StatusSkipped}, want: StatusCompleted, decided: true},
		{name: "remaining all blocked", statuses: []Status{StatusCompleted, StatusBlocked, StatusBlocked}, want: StatusBlocked, decided: true},
		{name: "one in progress", statuses: []Status{StatusPending, StatusInProgress}, want: StatusInProgress, decided: true},
		{name: "partial completion", statuses: []Status{StatusPending, StatusCompleted}, want: StatusInProgress, decided: true},
		{name: "all pending", statuses: []Status{StatusPending, StatusPending}, decided: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, decided := AggregateStoryStatus(CountStatuses(tt.statuses))
			if decided != tt.decided {
				t.Fatalf("AggregateStoryStatus() decided = %v, want %v", decided, tt.decided)
			}
			if decided && got != tt.want {
				t.Fatalf("AggregateStoryStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAggregateEpicStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
		decided  bool
	}{
		{name: "no stories", statuses: nil, decided: false},
		{name: "all completed", statuses: []Status{StatusCompleted, StatusCompleted}, want: StatusCompleted, decided: true},
		{name: "remaining all blocked", statuses: []Status{StatusCompleted, StatusBlocked}, want: StatusBlocked, decided: true},
		{name: "partial completion", statuses: []Status{StatusDraft, StatusCompleted}, want: StatusInProgress, decided: true},
		{name: "work started", statuses: []Status{StatusDraft, StatusInProgress}, want: StatusInProgress, decided: true},
		{name: "all draft", statuses: []Status{StatusDraft, StatusDraft}, decided: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, decided := AggregateEpicStatus(CountStatuses(tt.statuses))
			if decided != tt.decided {
				t.Fatalf("AggregateEpicStatus() decided = %v, want %v", decided, tt.decided)
			}
			if decided && got != tt.want {
				t.Fatalf("AggregateEpicStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAggregateQuarterStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
		decided  bool
	}{
		{name: "no epics", statuses: nil, decided: false},
		{name: "all completed", statuses: []Status{StatusCompleted}, want: StatusCompleted, decided: true},
		{name: "any progress", statuses: []Status{StatusDraft, StatusInProgress}, want: StatusActive, decided: true},
		{name: "any completed", statuses: []Status{StatusDraft, StatusCompleted}, want: StatusActive, decided: true},
		{name: "all draft", statuses: []Status{StatusDraft}, decided: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, decided := AggregateQuarterStatus(CountStatuses(tt.statuses))
			if decided != tt.decided {
				t.Fatalf("AggregateQuarterStatus() decided = %v, want %v", decided, tt.decided)
			}
			if decided && got != tt.want {
				t.Fatalf("AggregateQuarterStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAggregateSprintStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
		decided  bool
	}{
		{name: "empty sprint", statuses: nil, decided: false},
		{name: "all resolved", statuses: []Status{StatusCompleted, StatusSkipped}, want: StatusCompleted, decided: true},
		{name: "one pending", statuses: []Status{StatusCompleted, StatusPending}, decided: false},
		{name: "one blocked", statuses: []Status{StatusCompleted, StatusBlocked}, decided: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, decided := AggregateSprintStatus(CountStatuses(tt.statuses))
			if decided != tt.decided {
				t.Fatalf("AggregateSprintStatus() decided = %v, want %v", decided, tt.decided)
			}
			if decided && got != tt.want {
				t.Fatalf("AggregateSprintStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}
