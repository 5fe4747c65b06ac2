package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hylla/kvartal/internal/domain"
)

func TestStats(t *testing.T) {
	svc, _ := newTestService(t)
	seedHierarchy(t, svc)
	ctx := context.Background()

	if _, err := svc.UpdateStatus(ctx, "T-001", domain.StatusCompleted, true); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	stats, err := svc.Stats(ctx, StatsFilter{})
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Quarters.Total != 4 {
		t.Fatalf("Quarters.Total = %d, want 4", stats.Quarters.Total)
	}
	if stats.Tasks.Total != 2 || stats.Tasks.ByStatus[domain.StatusCompleted] != 1 {
		t.Fatalf("Tasks = %+v", stats.Tasks)
	}
	if stats.TasksByTag[domain.TagBackend] != 2 {
		t.Fatalf("TasksByTag = %v", stats.TasksByTag)
	}
	if stats.Progress != 0.5 {
		t.Fatalf("Progress = %v, want 0.5", stats.Progress)
	}
	if stats.ReadyTasks != 1 {
		t.Fatalf("ReadyTasks = %d, want 1", stats.ReadyTasks)
	}
}

func TestChain(t *testing.T) {
	svc, _ := newTestService(t)
	seedHierarchy(t, svc)

	chain, err := svc.Chain(context.Background(), "T-002")
	if err != nil {
		t.Fatalf("Chain() error = %v", err)
	}
	want := ChainResult{
		TaskID:    "T-002",
		StoryID:   "US-001",
		EpicID:    "E-001",
		QuarterID: "Q1",
		Path:      "Q1 > E-001 > US-001 > T-002",
	}
	if chain != want {
		t.Fatalf("Chain() = %+v, want %+v", chain, want)
	}
}

func TestDescendants(t *testing.T) {
	svc, _ := newTestService(t)
	seedHierarchy(t, svc)
	ctx := context.Background()

	desc, err := svc.Descendants(ctx, "Q1")
	if err != nil {
		t.Fatalf("Descendants() error = %v", err)
	}
	if len(desc.Epics) != 1 || len(desc.Stories) != 1 || len(desc.Tasks) != 2 {
		t.Fatalf("Descendants(Q1) = %+v", desc)
	}

	if _, err := svc.Descendants(ctx, "T-001"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Descendants(task) error = %v, want ErrValidation", err)
	}
}

func TestExportMarkdown(t *testing.T) {
	svc, _ := newTestService(t)
	seedHierarchy(t, svc)
	ctx := context.Background()

	if err := svc.AddDependency(ctx, "T-002", "T-001"); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "T-001", domain.StatusCompleted, true); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	out, err := svc.Export(ctx, ExportMarkdown)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	for _, want := range []string{
		"# Work Graph",
		"## Q1 (active)",
		"### E-001: Auth overhaul",
		"- **US-001: Login flow**",
		"[x] T-001",
		"[ ] T-002",
		"(after T-001)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("Export() missing %q in:\n%s", want, out)
		}
	}
}

func TestExportJSONRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	seedHierarchy(t, svc)

	out, err := svc.Export(context.Background(), ExportJSON)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	for _, want := range []string{`"version": "3.0.0"`, `"quarter_epics"`, `"E-001"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("Export() missing %q", want)
		}
	}

	if _, err := svc.Export(context.Background(), ExportFormat("yaml")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Export(yaml) error = %v, want ErrValidation", err)
	}
}

func TestStatsScoped(t *testing.T) {
	svc, _ := newTestService(t)
	seedHierarchy(t, svc)
	ctx := context.Background()

	if _, err := svc.CreateEpic(ctx, CreateEpicInput{Title: "Billing", Quarter: "Q2"}); err != nil {
		t.Fatalf("CreateEpic() error = %v", err)
	}
	if _, err := svc.CreateStory(ctx, CreateStoryInput{EpicID: "E-002", Title: "Invoices"}); err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}
	if _, err := svc.CreateTask(ctx, CreateTaskInput{StoryID: "US-002", Title: "Model invoices", Tag: domain.TagFrontend}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	stats, err := svc.Stats(ctx, StatsFilter{QuarterID: "Q2"})
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Epics.Total != 1 || stats.Stories.Total != 1 || stats.Tasks.Total != 1 {
		t.Fatalf("Stats(Q2) = epics %d stories %d tasks %d, want 1/1/1",
			stats.Epics.Total, stats.Stories.Total, stats.Tasks.Total)
	}
	if stats.TasksByTag[domain.TagBackend] != 0 || stats.TasksByTag[domain.TagFrontend] != 1 {
		t.Fatalf("Stats(Q2) TasksByTag = %v", stats.TasksByTag)
	}

	stats, err = svc.Stats(ctx, StatsFilter{EpicID: "E-001"})
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Epics.Total != 1 || stats.Tasks.Total != 2 {
		t.Fatalf("Stats(E-001) = epics %d tasks %d, want 1/2", stats.Epics.Total, stats.Tasks.Total)
	}
}
