// Package mcpapi provides a stateless MCP streamable-HTTP adapter over the
// work graph service.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/kvartal/internal/app"
	"github.com/hylla/kvartal/internal/domain"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds the MCP adapter over the graph service.
func NewHandler(cfg Config, svc *app.Service) (*Handler, error) {
	if svc == nil {
		return nil, fmt.Errorf("graph service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerReadTools(mcpSrv, svc)
	registerWriteTools(mcpSrv, svc)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "kvartal"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerReadTools registers the query-only tools.
func registerReadTools(srv *mcpserver.MCPServer, svc *app.Service) {
	srv.AddTool(
		mcp.NewTool(
			"kvartal.get_entity",
			mcp.WithDescription("Fetch one entity with its children, dependencies, and attachments."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Entity identifier, e.g. T-042 or Q1")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			detail, err := svc.Get(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult(detail, "get_entity")
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kvartal.list_entities",
			mcp.WithDescription("List entities of one kind with optional filters."),
			mcp.WithString("kind", mcp.Required(), mcp.Description("quarter, epic, story, task, clarification, adr, or sprint")),
			mcp.WithString("status", mcp.Description("Filter by status")),
			mcp.WithString("quarter", mcp.Description("Filter epics, stories, tasks, or sprints by quarter")),
			mcp.WithString("epic", mcp.Description("Filter stories or tasks by epic")),
			mcp.WithString("story", mcp.Description("Filter tasks by story")),
			mcp.WithString("sprint", mcp.Description("Filter tasks by sprint")),
			mcp.WithString("tag", mcp.Description("Filter tasks by tag")),
			mcp.WithString("entity", mcp.Description("Filter clarifications or ADRs by host entity")),
			mcp.WithBoolean("unassigned", mcp.Description("Only tasks outside any sprint")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			kind, err := req.RequireString("kind")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			filter, err := app.ParseListFilter(kind, map[string]string{
				"status":  req.GetString("status", ""),
				"quarter": req.GetString("quarter", ""),
				"epic":    req.GetString("epic", ""),
				"story":   req.GetString("story", ""),
				"sprint":  req.GetString("sprint", ""),
				"tag":     req.GetString("tag", ""),
				"entity":  req.GetString("entity", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			filter.Unassigned = req.GetBool("unassigned", false)
			entities, err := svc.List(ctx, filter)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult(entities, "list_entities")
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kvartal.ready_tasks",
			mcp.WithDescription("List unassigned pending tasks whose dependencies are all resolved."),
			mcp.WithString("quarter", mcp.Description("Limit to one quarter")),
			mcp.WithString("epic", mcp.Description("Limit to one epic")),
			mcp.WithNumber("limit", mcp.Description("Cap the result count")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tasks, err := svc.ReadyTasks(ctx, app.ReadyFilter{
				QuarterID: req.GetString("quarter", ""),
				EpicID:    req.GetString("epic", ""),
				Limit:     req.GetInt("limit", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult(tasks, "ready_tasks")
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kvartal.task_blockers",
			mcp.WithDescription("List the unresolved dependencies of a task."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			blockers, err := svc.Blockers(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult(blockers, "task_blockers")
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kvartal.chain",
			mcp.WithDescription("Resolve a task's ancestor chain up to its quarter."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			chain, err := svc.Chain(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult(chain, "chain")
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kvartal.stats",
			mcp.WithDescription("Summarize the graph: counts, status breakdowns, progress."),
			mcp.WithString("quarter", mcp.Description("Scope to one quarter")),
			mcp.WithString("epic", mcp.Description("Scope to one epic")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			stats, err := svc.Stats(ctx, app.StatsFilter{
				QuarterID: req.GetString("quarter", ""),
				EpicID:    req.GetString("epic", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult(stats, "stats")
		},
	)
}

// registerWriteTools registers the mutating tools.
func registerWriteTools(srv *mcpserver.MCPServer, svc *app.Service) {
	srv.AddTool(
		mcp.NewTool(
			"kvartal.update_status",
			mcp.WithDescription("Set an entity's status and cascade the change through the hierarchy."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Entity identifier")),
			mcp.WithString("status", mcp.Required(), mcp.Description("New status")),
			mcp.WithBoolean("cascade", mcp.Description("Propagate aggregates (default true)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			result, err := svc.UpdateStatus(ctx, id, domain.Status(status), req.GetBool("cascade", true))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult(result, "update_status")
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"kvartal.add_dependency",
			mcp.WithDescription("Record that one task depends on another."),
			mcp.WithString("task", mcp.Required(), mcp.Description("Dependent task identifier")),
			mcp.WithString("depends_on", mcp.Required(), mcp.Description("Dependency task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			from, err := req.RequireString("task")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			to, err := req.RequireString("depends_on")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := svc.AddDependency(ctx, from, to); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult(map[string]string{"task": from, "dependsOn": to}, "add_dependency")
		},
	)
}

func jsonResult(v any, tool string) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// toolResultFromError maps service errors onto coded tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, domain.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, domain.ErrNotInitialized):
		return mcp.NewToolResultError("not_initialized: " + err.Error())
	case errors.Is(err, domain.ErrInvalidStatus), errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrDependencyCycle), errors.Is(err, domain.ErrIndexOutOfRange):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, domain.ErrRevisionConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
