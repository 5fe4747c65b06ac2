package domain

import "time"

// Quarter is one of the four fixed planning buckets at the root of the
// hierarchy. Quarters are never created or deleted; the document skeleton
// seeds Q1 through Q4.
type Quarter struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	Theme       string     `json:"theme"`
	Goals       []string   `json:"goals"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewQuarter seeds one planned quarter bucket.
func NewQuarter(id string, now time.Time) *Quarter {
	ts := now.UTC()
	return &Quarter{
		ID:        id,
		Status:    StatusPlanned,
		Goals:     []string{},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// EntityID implements Entity.
func (q *Quarter) EntityID() string { return q.ID }

// EntityKind implements Entity.
func (q *Quarter) EntityKind() Kind { return KindQuarter }

// CurrentStatus implements Entity.
func (q *Quarter) CurrentStatus() Status { return q.Status }

// SetStatus applies a status write, stamping CompletedAt on completion.
func (q *Quarter) SetStatus(status Status, now time.Time) {
	ts := now.UTC()
	q.Status = status
	q.UpdatedAt = ts
	if status == StatusCompleted {
		q.CompletedAt = &ts
	}
}
