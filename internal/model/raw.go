package model

import "strings"

// RawTask is the boundary record produced by an external task source
// (markdown parser, inbox file, etc.) before normalization.
//
// Legacy sources populate "task" instead of "text" and carry free-form date
// strings. Those fallbacks are resolved exactly once, here, so downstream
// code only ever sees the canonical fields.
type RawTask struct {
	ID       string `json:"id,omitempty"`
	Text     string `json:"text,omitempty"`
	Task     string `json:"task,omitempty"` // legacy alias for Text
	Section  string `json:"section,omitempty"`
	Priority string `json:"priority,omitempty"`

	// Date may be a calendar date (YYYY-MM-DD) or free text ("tomorrow").
	Date string `json:"date,omitempty"`

	Completed         bool     `json:"completed,omitempty"`
	SubTasks          []string `json:"sub_tasks,omitempty"`
	Details           []Note   `json:"details,omitempty"`
	EstimatedDuration int      `json:"estimated_duration,omitempty"`
}

// EffectiveText resolves the legacy field fallback: text wins, then task.
func (r *RawTask) EffectiveText() string {
	if strings.TrimSpace(r.Text) != "" {
		return r.Text
	}
	return r.Task
}

// EffectiveSection maps the raw section string onto the Section enum,
// defaulting to undated for unknown values.
func (r *RawTask) EffectiveSection() Section {
	s := Section(strings.ToLower(strings.TrimSpace(r.Section)))
	if s.IsValid() {
		return s
	}
	return SectionUndated
}

// EffectivePriority maps the raw priority string onto the Priority enum,
// defaulting to medium.
func (r *RawTask) EffectivePriority() Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(r.Priority)))
	if p.IsValid() {
		return p
	}
	return PriorityMedium
}
