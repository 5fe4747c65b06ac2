package domain

// ChildStatusCounts tallies child statuses for one aggregation step.
type ChildStatusCounts struct {
	Total      int
	Completed  int
	Skipped    int
	Blocked    int
	InProgress int
}

// CountStatuses tallies a slice of child statuses.
func CountStatuses(statuses []Status) ChildStatusCounts {
	var c ChildStatusCounts
	c.Total = len(statuses)
	for _, s := range statuses {
		switch s {
		case StatusCompleted:
			c.Completed++
		case StatusSkipped:
			c.Skipped++
		case StatusBlocked:
			c.Blocked++
		case StatusInProgress:
			c.InProgress++
		}
	}
	return c
}

// Resolved counts children that no longer need work.
func (c ChildStatusCounts) Resolved() int { return c.Completed + c.Skipped }

// AggregateStoryStatus derives a story status from its tasks. The second
// return value reports whether the counts determine a status at all; when
// false the story keeps whatever status it has.
func AggregateStoryStatus(c ChildStatusCounts) (Status, bool) {
	if c.Total == 0 {
		return "", false
	}
	switch {
	case c.Resolved() == c.Total:
		return StatusCompleted, true
	case c.Resolved()+c.Blocked == c.Total:
		return StatusBlocked, true
	case c.InProgress > 0 || c.Completed > 0:
		return StatusInProgress, true
	}
	return "", false
}

// AggregateEpicStatus derives an epic status from its stories. Stories are
// never skipped, so only completed counts toward closure.
func AggregateEpicStatus(c ChildStatusCounts) (Status, bool) {
	if c.Total == 0 {
		return "", false
	}
	switch {
	case c.Completed == c.Total:
		return StatusCompleted, true
	case c.Completed+c.Blocked == c.Total:
		return StatusBlocked, true
	case c.InProgress > 0 || c.Completed > 0:
		return StatusInProgress, true
	}
	return "", false
}

// AggregateQuarterStatus derives a quarter status from its epics.
func AggregateQuarterStatus(c ChildStatusCounts) (Status, bool) {
	if c.Total == 0 {
		return "", false
	}
	switch {
	case c.Completed == c.Total:
		return StatusCompleted, true
	case c.InProgress > 0 || c.Completed > 0:
		return StatusActive, true
	}
	return "", false
}

// AggregateSprintStatus derives a sprint status from its member tasks. A
// sprint only ever closes through aggregation; everything short of full
// closure leaves it alone.
func AggregateSprintStatus(c ChildStatusCounts) (Status, bool) {
	if c.Total == 0 {
		return "", false
	}
	if c.Resolved() == c.Total {
		return StatusCompleted, true
	}
	return "", false
}
