// Package model defines the entity types shared by the daybook repositories.
//
// Every entity here is a flat, JSON-serializable record with last-write-wins
// semantics. Fields are updated independently and timestamps help resolve
// which copy of a record is newer.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Section classifies where a task lives in the planner.
type Section string

const (
	SectionToday    Section = "today"
	SectionUpcoming Section = "upcoming"
	SectionDaily    Section = "daily"
	SectionWeekly   Section = "weekly"
	SectionMonthly  Section = "monthly"
	SectionYearly   Section = "yearly"
	SectionUndated  Section = "undated"
)

// IsValid reports whether s is a known section.
func (s Section) IsValid() bool {
	switch s {
	case SectionToday, SectionUpcoming, SectionDaily, SectionWeekly,
		SectionMonthly, SectionYearly, SectionUndated:
		return true
	}
	return false
}

// Priority is the task urgency level.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Note is a tagged annotation attached to a task (reminder, detail, etc.).
type Note struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// Task represents a single to-do item.
type Task struct {
	// ===== Core Identification =====
	ID string `json:"id"`

	// ===== Content =====
	Text     string   `json:"text"`
	Section  Section  `json:"section"`
	Priority Priority `json:"priority"`

	// Date is the optional calendar date (YYYY-MM-DD) the task is bound to.
	Date string `json:"date,omitempty"`

	// ===== Completion =====
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ===== Attached detail =====
	SubTasks []string `json:"sub_tasks,omitempty"`
	Details  []Note   `json:"details,omitempty"`

	// ===== Timestamps (conflict resolution) =====
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`

	// ===== Duration accounting (minutes) =====
	EstimatedDuration int `json:"estimated_duration,omitempty"`
	ActualDuration    int `json:"actual_duration,omitempty"`
}

// Validate checks that the task has valid field values.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if len(t.Text) > 500 {
		return fmt.Errorf("text must be 500 characters or less (got %d)", len(t.Text))
	}
	if !t.Section.IsValid() {
		return fmt.Errorf("invalid section: %s", t.Section)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	if t.Date != "" {
		if _, err := time.Parse("2006-01-02", t.Date); err != nil {
			return fmt.Errorf("invalid date %q: %w", t.Date, err)
		}
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return nil
}

// SetDefaults applies default values for optional fields.
// This ensures consistent behavior when fields are omitted.
func (t *Task) SetDefaults() {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Section == "" {
		t.Section = SectionUndated
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.ModifiedAt.IsZero() {
		t.ModifiedAt = now
	}
}

// Touch sets ModifiedAt to the current time.
// Call whenever any field is modified.
func (t *Task) Touch() {
	t.ModifiedAt = time.Now().UTC()
}

// NormalizedText returns the canonical comparison form of the task text:
// trimmed and lowercased. Duplicate detection operates on this form only.
func (t *Task) NormalizedText() string {
	return NormalizeText(t.Text)
}

// DetailCount is the amount of attached detail carried by the task.
// Used to pick a survivor when merging duplicates.
func (t *Task) DetailCount() int {
	return len(t.SubTasks) + len(t.Details)
}

// NormalizeText trims and lowercases s for duplicate comparison.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
