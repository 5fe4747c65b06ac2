package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Kind identifies one of the entity kinds held in the graph document.
type Kind string

// Entity kinds.
const (
	KindQuarter        Kind = "quarter"
	KindEpic           Kind = "epic"
	KindStory          Kind = "story"
	KindTask           Kind = "task"
	KindClarification  Kind = "clarification"
	KindDecisionRecord Kind = "adr"
	KindSprint         Kind = "sprint"
)

// Status is a lifecycle status value; the valid set depends on the kind.
type Status string

// Status values across all kinds.
const (
	StatusPlanned    Status = "planned"
	StatusActive     Status = "active"
	StatusDraft      Status = "draft"
	StatusReady      Status = "ready"
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
	StatusSkipped    Status = "skipped"
	StatusClarified  Status = "clarified"
	StatusProposed   Status = "proposed"
	StatusAccepted   Status = "accepted"
	StatusDeprecated Status = "deprecated"
	StatusSuperseded Status = "superseded"
)

// TaskTag classifies a task by delivery discipline.
type TaskTag string

// TaskTag values.
const (
	TagFrontend TaskTag = "FE"
	TagBackend  TaskTag = "BE"
	TagDevOps   TaskTag = "DevOps"
	TagFull     TaskTag = "Full"
)

var validTaskTags = []TaskTag{TagFrontend, TagBackend, TagDevOps, TagFull}

// QuarterIDs is the fixed set of quarter bucket identifiers.
var QuarterIDs = []string{"Q1", "Q2", "Q3", "Q4"}

var statusesByKind = map[Kind][]Status{
	KindQuarter:        {StatusPlanned, StatusActive, StatusCompleted},
	KindEpic:           {StatusDraft, StatusReady, StatusInProgress, StatusCompleted, StatusBlocked},
	KindStory:          {StatusDraft, StatusReady, StatusInProgress, StatusCompleted, StatusBlocked},
	KindTask:           {StatusPending, StatusInProgress, StatusCompleted, StatusBlocked, StatusSkipped},
	KindClarification:  {StatusPending, StatusClarified},
	KindDecisionRecord: {StatusProposed, StatusAccepted, StatusDeprecated, StatusSuperseded},
	KindSprint:         {StatusPlanned, StatusActive, StatusCompleted},
}

var idPrefixes = map[Kind]string{
	KindQuarter:        "Q",
	KindEpic:           "E-",
	KindStory:          "US-",
	KindTask:           "T-",
	KindClarification:  "CL-",
	KindDecisionRecord: "ADR-",
	KindSprint:         "S-",
}

// ParseKind normalizes a raw kind name, accepting the decision-record alias.
func ParseKind(raw string) (Kind, error) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "quarter":
		return KindQuarter, nil
	case "epic":
		return KindEpic, nil
	case "story":
		return KindStory, nil
	case "task":
		return KindTask, nil
	case "clarification":
		return KindClarification, nil
	case "adr", "decision-record", "decision":
		return KindDecisionRecord, nil
	case "sprint":
		return KindSprint, nil
	default:
		return "", fmt.Errorf("%w: unknown entity kind %q", ErrValidation, raw)
	}
}

// ValidStatuses returns the status enumeration for a kind.
func ValidStatuses(kind Kind) []Status {
	return statusesByKind[kind]
}

// IsValidStatus reports whether status belongs to the kind's enumeration.
func IsValidStatus(kind Kind, status Status) bool {
	return slices.Contains(statusesByKind[kind], status)
}

// IsValidTaskTag reports whether tag is one of the fixed task tags.
func IsValidTaskTag(tag TaskTag) bool {
	return slices.Contains(validTaskTags, tag)
}

// IsQuarterID reports whether id names one of the four fixed quarters.
func IsQuarterID(id string) bool {
	return slices.Contains(QuarterIDs, id)
}

// IDPrefix returns the allocation prefix for a kind.
func IDPrefix(kind Kind) string {
	return idPrefixes[kind]
}

// FormatID renders the nth identifier for a kind. Decision records use
// 4-digit padding, every other kind uses 3.
func FormatID(kind Kind, n int) string {
	if kind == KindDecisionRecord {
		return fmt.Sprintf("%s%04d", idPrefixes[kind], n)
	}
	return fmt.Sprintf("%s%03d", idPrefixes[kind], n)
}

// DeletePolicy distinguishes kinds that are soft-deleted from kinds that are
// removed outright.
type DeletePolicy string

// DeletePolicy values.
const (
	// DeleteSoft forces the entity into its terminal skip status and keeps
	// the record and its relationship entries intact.
	DeleteSoft DeletePolicy = "soft"
	// DeleteHard removes the entity and prunes every adjacency entry that
	// references it.
	DeleteHard DeletePolicy = "hard"
)

// DeletePolicyFor returns the deletion capability for a kind. Tasks keep
// their history and dependency edges; everything else is removed.
func DeletePolicyFor(kind Kind) DeletePolicy {
	if kind == KindTask {
		return DeleteSoft
	}
	return DeleteHard
}

// Entity is the minimal surface shared by every graph entity.
type Entity interface {
	EntityID() string
	EntityKind() Kind
	CurrentStatus() Status
}
