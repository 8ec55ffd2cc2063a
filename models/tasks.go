package models

import (
	"time"
)

// Priority levels
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Recurrence patterns
const (
	RecurrenceDaily   = "daily"
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
)

// Categories a task may be filed under.
var TaskCategories = []string{"work", "home", "study", "personal", "shopping", "health", "fitness"}

// Task model. Every task belongs to exactly one owner; all queries are scoped
// by OwnerID. Recurring tasks form a lineage rooted at the first instance,
// linked through ParentRecurrenceID.
type Task struct {
	ID          string     `gorm:"primaryKey;not null" json:"id"`
	OwnerID     string     `gorm:"index;not null" json:"owner_id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `gorm:"index;not null;default:false" json:"completed"`
	Priority    string     `gorm:"not null;default:medium" json:"priority"`
	Category    string     `gorm:"default:null" json:"category,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	IsRecurring          bool       `gorm:"not null;default:false" json:"is_recurring"`
	RecurrencePattern    string     `gorm:"default:null" json:"recurrence_pattern,omitempty"`
	RecurrenceInterval   int        `gorm:"not null;default:1" json:"recurrence_interval"`
	RecurrenceEndDate    *time.Time `json:"recurrence_end_date,omitempty"`
	RecurrenceDayOfWeek  *int       `json:"recurrence_day_of_week,omitempty"`  // 0=Monday .. 6=Sunday
	RecurrenceDayOfMonth *int       `json:"recurrence_day_of_month,omitempty"` // 1-31, clamped per month
	RecurrenceActive     bool       `gorm:"not null;default:true" json:"recurrence_active"`
	ParentRecurrenceID   *string    `gorm:"index" json:"parent_recurrence_id,omitempty"`

	CreatedAt time.Time `gorm:"default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:current_timestamp" json:"updated_at"`
}

// LineageRootID returns the id of the first task in this task's recurrence
// lineage. The root's own ParentRecurrenceID is nil, so the root is itself.
func (t *Task) LineageRootID() string {
	if t.ParentRecurrenceID != nil && *t.ParentRecurrenceID != "" {
		return *t.ParentRecurrenceID
	}
	return t.ID
}
