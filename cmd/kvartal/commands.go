package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hylla/kvartal/internal/app"
	"github.com/hylla/kvartal/internal/domain"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create an empty work graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				doc, err := rt.svc.Init(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"version": doc.Version, "quarters": len(doc.Entities.Quarters)}, nil
			})
		},
	}
}

func newCreateCmd(flags *rootFlags) *cobra.Command {
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an entity",
	}

	var epicIn app.CreateEpicInput
	epic := &cobra.Command{
		Use:   "epic",
		Short: "Create an epic in a quarter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				return rt.svc.CreateEpic(ctx, epicIn)
			})
		},
	}
	epic.Flags().StringVar(&epicIn.Title, "title", "", "epic title")
	epic.Flags().StringVar(&epicIn.Description, "description", "", "epic description")
	epic.Flags().StringVar(&epicIn.Quarter, "quarter", "", "owning quarter (Q1..Q4)")
	epic.Flags().IntVar(&epicIn.Priority, "priority", 0, "priority, 1 is highest")
	epic.Flags().StringArrayVar(&epicIn.Deliverables, "deliverable", nil, "deliverable (repeatable)")

	var storyIn app.CreateStoryInput
	story := &cobra.Command{
		Use:   "story",
		Short: "Create a story under an epic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				return rt.svc.CreateStory(ctx, storyIn)
			})
		},
	}
	story.Flags().StringVar(&storyIn.EpicID, "epic", "", "owning epic id")
	story.Flags().StringVar(&storyIn.Title, "title", "", "story title")
	story.Flags().StringVar(&storyIn.Description, "description", "", "story description")
	story.Flags().StringArrayVar(&storyIn.AcceptanceCriteria, "criterion", nil, "acceptance criterion (repeatable)")

	var (
		taskIn  app.CreateTaskInput
		taskTag string
	)
	task := &cobra.Command{
		Use:   "task",
		Short: "Create a task under a story",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			taskIn.Tag = domain.TaskTag(taskTag)
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				return rt.svc.CreateTask(ctx, taskIn)
			})
		},
	}
	task.Flags().StringVar(&taskIn.StoryID, "story", "", "owning story id")
	task.Flags().StringVar(&taskIn.Title, "title", "", "task title")
	task.Flags().StringVar(&taskIn.Description, "description", "", "task description")
	task.Flags().StringVar(&taskTag, "tag", "", "task tag: FE, BE, DevOps, or Full")
	task.Flags().StringArrayVar(&taskIn.DependsOn, "depends-on", nil, "dependency task id (repeatable)")

	var clIn app.CreateClarificationInput
	clarification := &cobra.Command{
		Use:   "clarification",
		Short: "Attach an open question to an entity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				return rt.svc.CreateClarification(ctx, clIn)
			})
		},
	}
	clarification.Flags().StringVar(&clIn.TargetID, "entity", "", "host entity id")
	clarification.Flags().StringVar(&clIn.Question, "question", "", "the open question")

	var adrIn app.CreateDecisionRecordInput
	adr := &cobra.Command{
		Use:     "adr",
		Aliases: []string{"decision"},
		Short:   "Attach a decision record to an entity",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				return rt.svc.CreateDecisionRecord(ctx, adrIn)
			})
		},
	}
	adr.Flags().StringVar(&adrIn.TargetID, "entity", "", "host entity id (omit for a standalone record)")
	adr.Flags().StringVar(&adrIn.Title, "title", "", "decision title")
	adr.Flags().StringVar(&adrIn.Context, "context", "", "decision context")
	adr.Flags().StringVar(&adrIn.Decision, "decision", "", "the decision")
	adr.Flags().StringVar(&adrIn.Consequences, "consequences", "", "consequences")

	create.AddCommand(epic, story, task, clarification, adr)
	return create
}

func newGetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch one entity with its graph context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				return rt.svc.Get(ctx, args[0])
			})
		},
	}
}

func newUpdateCmd(flags *rootFlags) *cobra.Command {
	var (
		status    string
		noCascade bool
		sets      []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an entity's status or fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				if len(sets) > 0 {
					patch, err := parseSetFlags(sets)
					if err != nil {
						return nil, err
					}
					if status != "" {
						patch["status"] = status
					}
					return rt.svc.UpdateFields(ctx, args[0], patch)
				}
				if status == "" {
					return nil, fmt.Errorf("%w: nothing to update, pass --status or --set", domain.ErrValidation)
				}
				return rt.svc.UpdateStatus(ctx, args[0], domain.Status(status), !noCascade)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().BoolVar(&noCascade, "no-cascade", false, "skip propagating aggregates")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value patch (repeatable)")
	return cmd
}

// parseSetFlags turns k=v pairs into a patch. Values parse as JSON when
// possible so numbers and lists come through typed.
func parseSetFlags(sets []string) (map[string]any, error) {
	patch := make(map[string]any, len(sets))
	for _, raw := range sets {
		key, value, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("%w: --set needs field=value, got %q", domain.ErrValidation, raw)
		}
		key = strings.TrimSpace(key)
		var typed any
		if err := json.Unmarshal([]byte(value), &typed); err == nil {
			patch[key] = typed
		} else {
			patch[key] = value
		}
	}
	return patch, nil
}

func newDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entity (tasks are skipped, not erased)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				return rt.svc.Delete(ctx, args[0])
			})
		},
	}
}

func newListCmd(flags *rootFlags) *cobra.Command {
	opts := map[string]*string{
		"status":  new(string),
		"quarter": new(string),
		"epic":    new(string),
		"story":   new(string),
		"sprint":  new(string),
		"tag":     new(string),
		"entity":  new(string),
	}
	var unassigned bool
	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List entities of one kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				raw := make(map[string]string, len(opts)+1)
				for k, v := range opts {
					raw[k] = *v
				}
				if unassigned {
					raw["unassigned"] = "true"
				}
				filter, err := app.ParseListFilter(args[0], raw)
				if err != nil {
					return nil, err
				}
				entities, err := rt.svc.List(ctx, filter)
				if err != nil {
					return nil, err
				}
				if entities == nil {
					entities = []domain.Entity{}
				}
				return entities, nil
			})
		},
	}
	cmd.Flags().StringVar(opts["status"], "status", "", "filter by status")
	cmd.Flags().StringVar(opts["quarter"], "quarter", "", "filter epics, stories, tasks, or sprints by quarter")
	cmd.Flags().StringVar(opts["epic"], "epic", "", "filter stories or tasks by epic")
	cmd.Flags().StringVar(opts["story"], "story", "", "filter tasks by story")
	cmd.Flags().StringVar(opts["sprint"], "sprint", "", "filter tasks by sprint")
	cmd.Flags().StringVar(opts["tag"], "tag", "", "filter tasks by tag")
	cmd.Flags().StringVar(opts["entity"], "entity", "", "filter attachments by host entity")
	cmd.Flags().BoolVar(&unassigned, "unassigned", false, "only tasks outside any sprint")
	return cmd
}

func newCascadeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cascade [id]",
		Short: "Recompute aggregate statuses, from one entity or the whole graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				id := ""
				if len(args) == 1 {
					id = args[0]
				}
				effects, err := rt.svc.Cascade(ctx, id)
				if err != nil {
					return nil, err
				}
				if effects == nil {
					effects = []app.CascadeEffect{}
				}
				return effects, nil
			})
		},
	}
}

func newDependsCmd(flags *rootFlags) *cobra.Command {
	depends := &cobra.Command{
		Use:   "depends",
		Short: "Manage task dependencies",
	}

	depends.AddCommand(
		&cobra.Command{
			Use:   "add <task> <depends-on>",
			Short: "Record that a task depends on another",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
					if err := rt.svc.AddDependency(ctx, args[0], args[1]); err != nil {
						return nil, err
					}
					return map[string]string{"task": args[0], "dependsOn": args[1]}, nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove <task> <depends-on>",
			Short: "Drop a dependency edge",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
					if err := rt.svc.RemoveDependency(ctx, args[0], args[1]); err != nil {
						return nil, err
					}
					return map[string]string{"task": args[0], "removed": args[1]}, nil
				})
			},
		},
		&cobra.Command{
			Use:   "list <task>",
			Short: "List a task's dependencies",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
					deps, err := rt.svc.Dependencies(ctx, args[0])
					if err != nil {
						return nil, err
					}
					if deps == nil {
						deps = []string{}
					}
					return deps, nil
				})
			},
		},
		&cobra.Command{
			Use:   "blockers <task>",
			Short: "List a task's unresolved dependencies",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
					blockers, err := rt.svc.Blockers(ctx, args[0])
					if err != nil {
						return nil, err
					}
					if blockers == nil {
						blockers = []app.Blocker{}
					}
					return blockers, nil
				})
			},
		},
	)
	return depends
}

func newReadyTasksCmd(flags *rootFlags) *cobra.Command {
	var filter app.ReadyFilter
	cmd := &cobra.Command{
		Use:   "ready-tasks",
		Short: "List unassigned pending tasks with no unresolved dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				tasks, err := rt.svc.ReadyTasks(ctx, filter)
				if err != nil {
					return nil, err
				}
				if tasks == nil {
					tasks = []*domain.Task{}
				}
				return tasks, nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.QuarterID, "quarter", "", "limit to one quarter")
	cmd.Flags().StringVar(&filter.EpicID, "epic", "", "limit to one epic")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "cap the result count, 0 means all")
	return cmd
}

func newChainCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chain <task>",
		Short: "Show a task's ancestor chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				return rt.svc.Chain(ctx, args[0])
			})
		},
	}
}

func newDescendantsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "descendants <id>",
		Short: "List everything below a quarter, epic, or story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				return rt.svc.Descendants(ctx, args[0])
			})
		},
	}
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	var filter app.StatsFilter
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				return rt.svc.Stats(ctx, filter)
			})
		},
	}
	cmd.Flags().StringVar(&filter.QuarterID, "quarter", "", "scope to one quarter")
	cmd.Flags().StringVar(&filter.EpicID, "epic", "", "scope to one epic")
	return cmd
}

func newSprintCreateCmd(flags *rootFlags) *cobra.Command {
	var in app.CreateSprintInput
	cmd := &cobra.Command{
		Use:   "sprint-create [task...]",
		Short: "Group tasks into a sprint, or auto-plan one from ready tasks",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.TaskIDs = args
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				if len(in.TaskIDs) == 0 {
					return rt.svc.PlanSprint(ctx, in)
				}
				return rt.svc.CreateSprint(ctx, in)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "sprint name (defaults to Sprint N)")
	cmd.Flags().StringVar(&in.QuarterID, "quarter", "", "owning quarter, derived from tasks when omitted")
	cmd.Flags().IntVar(&in.MaxTasks, "max-tasks", 0, "cap for auto-planned task count, 0 means all ready")
	cmd.Flags().StringVar(&in.WorktreePath, "worktree", "", "worktree path for the sprint branch")
	return cmd
}

func newSprintActiveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sprint-active",
		Short: "Show the active sprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				return rt.svc.ActiveSprint(ctx)
			})
		},
	}
}

func newSprintCompleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sprint-complete <sprint>",
		Short: "Mark a sprint completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				sprint, unfinished, err := rt.svc.CompleteSprint(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return map[string]any{"sprint": sprint, "unfinished": unfinished}, nil
			})
		},
	}
}

func newCriterionCmd(flags *rootFlags) *cobra.Command {
	var undone bool
	cmd := &cobra.Command{
		Use:   "criterion <story> <index>",
		Short: "Mark an acceptance criterion done",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: index must be a number, got %q", domain.ErrValidation, args[1])
			}
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				return rt.svc.SetCriterionDone(ctx, args[0], index, !undone)
			})
		},
	}
	cmd.Flags().BoolVar(&undone, "undone", false, "mark the criterion not done")
	return cmd
}

func newClarifyCmd(flags *rootFlags) *cobra.Command {
	var answer string
	cmd := &cobra.Command{
		Use:   "clarify <clarification>",
		Short: "Answer a clarification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				return rt.svc.ResolveClarification(ctx, args[0], answer)
			})
		},
	}
	cmd.Flags().StringVar(&answer, "answer", "", "the answer")
	return cmd
}

func newNextIDCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "next-id <kind>",
		Short: "Preview the next id for a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			return runWithService(flags, cmd, func(ctx context.Context, rt *runtime) (any, error) {
				id, err := rt.svc.NextID(ctx, kind)
				if err != nil {
					return nil, err
				}
				return map[string]string{"kind": string(kind), "next": id}, nil
			})
		},
	}
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the whole graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := flags.newRuntime()
			if err != nil {
				return err
			}
			defer rt.closer()

			out, err := rt.svc.Export(cmd.Context(), app.ExportFormat(format))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", string(app.ExportJSON), "json or markdown")
	return cmd
}
