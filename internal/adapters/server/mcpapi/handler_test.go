package mcpapi

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hylla/kvartal/internal/app"
	"github.com/hylla/kvartal/internal/domain"
)

func TestNewHandlerRequiresService(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("NewHandler(nil service) expected error")
	}
}

func TestNewHandlerDefaults(t *testing.T) {
	svc := app.NewService(nil, log.New(io.Discard))
	h, err := NewHandler(Config{}, svc)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if h == nil {
		t.Fatal("NewHandler() returned nil handler")
	}
}

func TestNormalizeConfig(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "empty fills defaults",
			in:   Config{},
			want: Config{ServerName: "kvartal", ServerVersion: "dev", EndpointPath: "/mcp"},
		},
		{
			name: "endpoint normalized",
			in:   Config{ServerName: "x", ServerVersion: "1.0", EndpointPath: "graph/"},
			want: Config{ServerName: "x", ServerVersion: "1.0", EndpointPath: "/graph"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeConfig(tt.in); got != tt.want {
				t.Fatalf("normalizeConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestToolResultFromErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{err: fmt.Errorf("wrap: %w", domain.ErrNotFound), code: "not_found:"},
		{err: domain.ErrNotInitialized, code: "not_initialized:"},
		{err: domain.ErrInvalidStatus, code: "invalid_request:"},
		{err: domain.ErrDependencyCycle, code: "invalid_request:"},
		{err: domain.ErrRevisionConflict, code: "conflict:"},
		{err: fmt.Errorf("boom"), code: "internal_error:"},
	}
	for _, tt := range tests {
		result := toolResultFromError(tt.err)
		if result == nil || len(result.Content) == 0 {
			t.Fatalf("toolResultFromError(%v) returned empty result", tt.err)
		}
		text, ok := result.Content[0].(mcp.TextContent)
		if !ok {
			t.Fatalf("unexpected content type %T", result.Content[0])
		}
		if !strings.HasPrefix(text.Text, tt.code) {
			t.Fatalf("toolResultFromError(%v) = %q, want prefix %q", tt.err, text.Text, tt.code)
		}
	}
}
