package entity

import (
	"time"
)

type ResourceKind string

const (
	ResourceKindEvent  ResourceKind = "event"
	ResourceKindCourse ResourceKind = "course"
)

// Resource is a capacity-bounded event or course. Capacity never changes
// while registration is open.
type Resource struct {
	ID          string       `json:"id" db:"id" mapstructure:"id"`
	Kind        ResourceKind `json:"kind" db:"kind" mapstructure:"kind"`
	Title       string       `json:"title" db:"title" mapstructure:"title"`
	Capacity    int          `json:"capacity" db:"capacity" mapstructure:"capacity"`
	ScheduledAt time.Time    `json:"scheduledAt" db:"scheduled_at" mapstructure:"scheduled_at"`
	Closed      bool         `json:"closed" db:"closed" mapstructure:"closed"`
}

func (r *Resource) IsCourse() bool {
	return r.Kind == ResourceKindCourse
}

func (k ResourceKind) Valid() bool {
	return k == ResourceKindEvent || k == ResourceKindCourse
}

// CapacitySnapshot is the ledger view of a resource at one point in time.
type CapacitySnapshot struct {
	ResourceID     string `json:"resourceId"`
	Capacity       int    `json:"capacity"`
	ConfirmedUsage int    `json:"confirmedUsage"`
	Remaining      int    `json:"remaining"`
	Waitlisted     int    `json:"waitlisted"`
}
