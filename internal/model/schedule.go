package model

import (
	"fmt"
	"time"
)

// DateLayout is the canonical calendar-date key format for schedules.
const DateLayout = "2006-01-02"

// ScheduleItem is a single time slot in a daily schedule.
type ScheduleItem struct {
	Time     string   `json:"time,omitempty"` // HH:MM, free-form
	TaskID   string   `json:"task_id,omitempty"`
	Text     string   `json:"text"`
	Duration string   `json:"duration,omitempty"` // e.g. "45 minutes", "2 hours"
	Priority Priority `json:"priority,omitempty"`
	Category string   `json:"category,omitempty"`

	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ActualDuration int        `json:"actual_duration,omitempty"` // minutes

	// Rollover marks an item carried forward from an earlier, unfinished day.
	IsRollover   bool   `json:"is_rollover,omitempty"`
	RolloverFrom string `json:"rollover_from,omitempty"` // source date
}

// ScheduleMetadata is derived from a schedule's items on every save.
// Never edited directly.
type ScheduleMetadata struct {
	TaskCount        int      `json:"task_count"`
	HasHighPriority  bool     `json:"has_high_priority"`
	Categories       []string `json:"categories,omitempty"`
	EstimatedMinutes int      `json:"estimated_minutes"`
}

// Schedule is the generated plan for one calendar date.
type Schedule struct {
	Date        string           `json:"date"` // YYYY-MM-DD, the record key
	Items       []ScheduleItem   `json:"items"`
	Summary     string           `json:"summary,omitempty"`
	GeneratedAt time.Time        `json:"generated_at,omitempty"`
	SavedAt     time.Time        `json:"saved_at,omitempty"`
	Version     int              `json:"version"`
	Metadata    ScheduleMetadata `json:"metadata"`
}

// Validate checks that the schedule has a valid date key.
func (s *Schedule) Validate() error {
	if s.Date == "" {
		return fmt.Errorf("date is required")
	}
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return fmt.Errorf("invalid date %q: %w", s.Date, err)
	}
	return nil
}

// ComputeMetadata derives the metadata block from the schedule items.
func (s *Schedule) ComputeMetadata(estimateMinutes func(ScheduleItem) int) ScheduleMetadata {
	meta := ScheduleMetadata{TaskCount: len(s.Items)}
	seen := make(map[string]bool)
	for _, item := range s.Items {
		if item.Priority == PriorityHigh {
			meta.HasHighPriority = true
		}
		if item.Category != "" && !seen[item.Category] {
			seen[item.Category] = true
			meta.Categories = append(meta.Categories, item.Category)
		}
		meta.EstimatedMinutes += estimateMinutes(item)
	}
	return meta
}

// CompletionSnapshot summarizes completion state for one schedule.
// Recomputed on every schedule save; never edited directly.
type CompletionSnapshot struct {
	Total          int             `json:"total"`
	Completed      int             `json:"completed"`
	CompletionRate float64         `json:"completion_rate"` // 0..1
	MinutesSpent   int             `json:"minutes_spent"`
	ByTask         map[string]bool `json:"by_task,omitempty"` // item key -> completed
	ComputedAt     time.Time       `json:"computed_at"`
}

// SnapshotFromSchedule derives a completion snapshot from the schedule's own
// completed flags. Items without a task id are keyed by text.
func SnapshotFromSchedule(s *Schedule) *CompletionSnapshot {
	snap := &CompletionSnapshot{
		Total:      len(s.Items),
		ByTask:     make(map[string]bool, len(s.Items)),
		ComputedAt: time.Now().UTC(),
	}
	for _, item := range s.Items {
		key := item.TaskID
		if key == "" {
			key = NormalizeText(item.Text)
		}
		snap.ByTask[key] = item.Completed
		if item.Completed {
			snap.Completed++
			snap.MinutesSpent += item.ActualDuration
		}
	}
	if snap.Total > 0 {
		snap.CompletionRate = float64(snap.Completed) / float64(snap.Total)
	}
	return snap
}

// HistoryRecord is the archival copy of a schedule plus its completion
// snapshot, retained even after the current schedule for the date is
// superseded.
type HistoryRecord struct {
	Date     string              `json:"date"`
	Schedule Schedule            `json:"schedule"`
	Snapshot *CompletionSnapshot `json:"snapshot,omitempty"`
	SavedAt  time.Time           `json:"saved_at"`
	Version  int                 `json:"version"`
}
