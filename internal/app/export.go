package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hylla/kvartal/internal/domain"
)

// ExportFormat selects the export rendering.
type ExportFormat string

const (
	// ExportJSON emits the raw document.
	ExportJSON ExportFormat = "json"
	// ExportMarkdown renders the hierarchy as a markdown outline.
	ExportMarkdown ExportFormat = "markdown"
)

// Export renders the whole graph in the requested format.
func (s *Service) Export(ctx context.Context, format ExportFormat) (string, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	switch format {
	case ExportJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode document: %w", err)
		}
		return string(data), nil
	case ExportMarkdown:
		return renderMarkdown(doc), nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", domain.ErrValidation, format)
}

func renderMarkdown(doc *domain.Document) string {
	var b strings.Builder
	b.WriteString("# Work Graph\n")

	for _, quarterID := range domain.QuarterIDs {
		quarter := doc.Entities.Quarters[quarterID]
		epicIDs := doc.Relationships.QuarterEpics[quarterID]
		if len(epicIDs) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n## %s (%s)\n", quarterID, quarter.Status)
		if quarter.Theme != "" {
			fmt.Fprintf(&b, "\n%s\n", quarter.Theme)
		}

		for _, epicID := range epicIDs {
			epic := doc.Entities.Epics[epicID]
			fmt.Fprintf(&b, "\n### %s: %s (%s)\n", epic.ID, epic.Title, epic.Status)

			for _, storyID := range doc.Relationships.EpicStories[epicID] {
				story := doc.Entities.Stories[storyID]
				fmt.Fprintf(&b, "\n- **%s: %s** (%s)\n", story.ID, story.Title, story.Status)

				for _, taskID := range doc.Relationships.StoryTasks[storyID] {
					task := doc.Entities.Tasks[taskID]
					fmt.Fprintf(&b, "  - %s %s: %s [%s]", taskCheckbox(task.Status), task.ID, task.Title, task.Tag)
					if deps := doc.DependenciesOf(taskID); len(deps) > 0 {
						fmt.Fprintf(&b, " (after %s)", strings.Join(deps, ", "))
					}
					b.WriteString("\n")
				}
			}
		}
	}
	return b.String()
}

func taskCheckbox(status domain.Status) string {
	switch status {
	case domain.StatusCompleted:
		return "[x]"
	case domain.StatusSkipped:
		return "[-]"
	default:
		return "[ ]"
	}
}
