package app

import (
	"context"
	"errors"
	"testing"

	"github.com/hylla/kvartal/internal/domain"
)

func TestCreateSprintDerivesQuarter(t *testing.T) {
	svc, store := newTestService(t)
	seedHierarchy(t, svc)
	ctx := context.Background()

	sprint, err := svc.CreateSprint(ctx, CreateSprintInput{TaskIDs: []string{"T-001", "T-002"}})
	if err != nil {
		t.Fatalf("CreateSprint() error = %v", err)
	}
	if sprint.ID != "S-001" {
		t.Fatalf("sprint id = %q, want S-001", sprint.ID)
	}
	if sprint.Name != "Sprint 1" {
		t.Fatalf("sprint name = %q, want Sprint 1", sprint.Name)
	}
	if sprint.QuarterID != "Q1" {
		t.Fatalf("sprint quarter = %q, want Q1", sprint.QuarterID)
	}

	for _, id := range []string{"T-001", "T-002"} {
		task := store.doc.Entities.Tasks[id]
		if task.SprintID == nil || *task.SprintID != "S-001" {
			t.Fatalf("task %s sprintId = %v, want S-001", id, task.SprintID)
		}
	}
}

func TestCreateSprintRejectsEmptyAndDoubleBooking(t *testing.T) {
	svc, _ := newTestService(t)
	seedHierarchy(t, svc)
	ctx := context.Background()

	if _, err := svc.CreateSprint(ctx, CreateSprintInput{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateSprint() empty error = %v, want ErrValidation", err)
	}

	if _, err := svc.CreateSprint(ctx, CreateSprintInput{TaskIDs: []string{"T-001"}}); err != nil {
		t.Fatalf("CreateSprint() error = %v", err)
	}
	if _, err := svc.CreateSprint(ctx, CreateSprintInput{TaskIDs: []string{"T-001"}}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateSprint() double booking error = %v, want ErrValidation", err)
	}
}

func TestActiveSprint(t *testing.T) {
	svc, _ := newTestService(t)
	seedHierarchy(t, svc)
	ctx := context.Background()

	if _, err := svc.ActiveSprint(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ActiveSprint() with none error = %v, want ErrNotFound", err)
	}

	if _, err := svc.CreateSprint(ctx, CreateSprintInput{TaskIDs: []string{"T-001"}}); err != nil {
		t.Fatalf("CreateSprint() error = %v", err)
	}
	if _, err := svc.CreateSprint(ctx, CreateSprintInput{TaskIDs: []string{"T-002"}}); err != nil {
		t.Fatalf("CreateSprint() error = %v", err)
	}
	for _, id := range []string{"S-001", "S-002"} {
		if _, err := svc.UpdateStatus(ctx, id, domain.StatusActive, true); err != nil {
			t.Fatalf("UpdateStatus(%s) error = %v", id, err)
		}
	}

	active, err := svc.ActiveSprint(ctx)
	if err != nil {
		t.Fatalf("ActiveSprint() error = %v", err)
	}
	if active.ID != "S-001" {
		t.Fatalf("ActiveSprint() = %q, want first active S-001", active.ID)
	}
	if active.StartedAt == nil {
		t.Fatal("active sprint StartedAt not stamped")
	}
}

func TestCompleteSprintReportsUnfinished(t *testing.T) {
	svc, store := newTestService(t)
	seedHierarchy(t, svc)
	ctx := context.Background()

	if _, err := svc.CreateSprint(ctx, CreateSprintInput{TaskIDs: []string{"T-001", "T-002"}}); err != nil {
		t.Fatalf("CreateSprint() error = %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "T-001", domain.StatusCompleted, true); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	sprint, unfinished, err := svc.CompleteSprint(ctx, "S-001")
	if err != nil {
		t.Fatalf("CompleteSprint() error = %v", err)
	}
	if sprint.Status != domain.StatusCompleted || sprint.CompletedAt == nil {
		t.Fatalf("sprint after complete = %+v", sprint)
	}
	if len(unfinished) != 1 || unfinished[0] != "T-002" {
		t.Fatalf("unfinished = %v, want [T-002]", unfinished)
	}
	if got := store.doc.Entities.Tasks["T-002"].Status; got != domain.StatusPending {
		t.Fatalf("unfinished task status = %q, want pending", got)
	}
}

func TestSprintClosesWhenAllTasksResolve(t *testing.T) {
	svc, store := newTestService(t)
	seedHierarchy(t, svc)
	ctx := context.Background()

	if _, err := svc.CreateSprint(ctx, CreateSprintInput{TaskIDs: []string{"T-001", "T-002"}}); err != nil {
		t.Fatalf("CreateSprint() error = %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "T-001", domain.StatusCompleted, true); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if got := store.doc.Entities.Sprints["S-001"].Status; got != domain.StatusPlanned {
		t.Fatalf("sprint status = %q, want planned while work remains", got)
	}

	if _, err := svc.UpdateStatus(ctx, "T-002", domain.StatusSkipped, true); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if got := store.doc.Entities.Sprints["S-001"].Status; got != domain.StatusCompleted {
		t.Fatalf("sprint status = %q, want completed", got)
	}
}

func TestDeleteSprintClearsMembership(t *testing.T) {
	svc, store := newTestService(t)
	seedHierarchy(t, svc)
	ctx := context.Background()

	if _, err := svc.CreateSprint(ctx, CreateSprintInput{TaskIDs: []string{"T-001"}}); err != nil {
		t.Fatalf("CreateSprint() error = %v", err)
	}
	if _, err := svc.Delete(ctx, "S-001"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := store.doc.Entities.Tasks["T-001"].SprintID; got != nil {
		t.Fatalf("task sprintId = %v after sprint delete", got)
	}
}

func TestPlanSprintFromReadyTasks(t *testing.T) {
	svc, store := newTestService(t)
	seedHierarchy(t, svc)
	ctx := context.Background()

	if err := svc.AddDependency(ctx, "T-002", "T-001"); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}

	plan, err := svc.PlanSprint(ctx, CreateSprintInput{QuarterID: "Q1", MaxTasks: 5})
	if err != nil {
		t.Fatalf("PlanSprint() error = %v", err)
	}
	if !plan.Created || plan.Sprint == nil {
		t.Fatalf("PlanSprint() = %+v, want created sprint", plan)
	}
	if len(plan.Sprint.TaskIDs) != 1 || plan.Sprint.TaskIDs[0] != "T-001" {
		t.Fatalf("planned tasks = %v, want [T-001]", plan.Sprint.TaskIDs)
	}
	task := store.doc.Entities.Tasks["T-001"]
	if task.SprintID == nil || *task.SprintID != plan.Sprint.ID {
		t.Fatalf("task sprintId = %v, want %s", task.SprintID, plan.Sprint.ID)
	}
}

func TestPlanSprintNoReadyTasks(t *testing.T) {
	svc, _ := newTestService(t)
	seedHierarchy(t, svc)
	ctx := context.Background()

	if _, err := svc.CreateSprint(ctx, CreateSprintInput{TaskIDs: []string{"T-001", "T-002"}}); err != nil {
		t.Fatalf("CreateSprint() error = %v", err)
	}

	plan, err := svc.PlanSprint(ctx, CreateSprintInput{QuarterID: "Q1"})
	if err != nil {
		t.Fatalf("PlanSprint() error = %v", err)
	}
	if plan.Created || plan.Sprint != nil || plan.Reason == "" {
		t.Fatalf("PlanSprint() = %+v, want soft no-ready-tasks result", plan)
	}
}
