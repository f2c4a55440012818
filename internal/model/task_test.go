package model

import (
	"testing"
	"time"
)

func TestTaskSetDefaults(t *testing.T) {
	task := &Task{Text: "Buy groceries"}
	task.SetDefaults()

	if task.ID == "" {
		t.Error("expected generated id")
	}
	if task.Section != SectionUndated {
		t.Errorf("expected section undated, got %s", task.Section)
	}
	if task.Priority != PriorityMedium {
		t.Errorf("expected priority medium, got %s", task.Priority)
	}
	if task.CreatedAt.IsZero() || task.ModifiedAt.IsZero() {
		t.Error("expected timestamps to be stamped")
	}
	if task.Completed {
		t.Error("expected completed=false by default")
	}
}

func TestTaskSetDefaultsPreservesExisting(t *testing.T) {
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	task := &Task{
		ID:        "t-1",
		Text:      "Review PR",
		Section:   SectionToday,
		Priority:  PriorityHigh,
		CreatedAt: created,
	}
	task.SetDefaults()

	if task.ID != "t-1" {
		t.Errorf("id overwritten: %s", task.ID)
	}
	if task.Section != SectionToday || task.Priority != PriorityHigh {
		t.Error("existing enum values overwritten")
	}
	if !task.CreatedAt.Equal(created) {
		t.Error("created_at overwritten")
	}
}

func TestTaskValidate(t *testing.T) {
	base := func() *Task {
		task := &Task{Text: "Valid task"}
		task.SetDefaults()
		return task
	}

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr bool
	}{
		{"valid", func(*Task) {}, false},
		{"missing id", func(task *Task) { task.ID = "" }, true},
		{"empty text", func(task *Task) { task.Text = "   " }, true},
		{"bad section", func(task *Task) { task.Section = "someday" }, true},
		{"bad priority", func(task *Task) { task.Priority = "urgent" }, true},
		{"bad date", func(task *Task) { task.Date = "06/01/2024" }, true},
		{"good date", func(task *Task) { task.Date = "2024-06-01" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := base()
			tt.mutate(task)
			err := task.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizedText(t *testing.T) {
	task := &Task{Text: "  Call MOM  "}
	if got := task.NormalizedText(); got != "call mom" {
		t.Errorf("NormalizedText() = %q, want %q", got, "call mom")
	}
}

func TestRawTaskLegacyFallbacks(t *testing.T) {
	raw := &RawTask{Task: "legacy text", Section: "Today", Priority: "HIGH"}

	if got := raw.EffectiveText(); got != "legacy text" {
		t.Errorf("EffectiveText() = %q", got)
	}
	if got := raw.EffectiveSection(); got != SectionToday {
		t.Errorf("EffectiveSection() = %s", got)
	}
	if got := raw.EffectivePriority(); got != PriorityHigh {
		t.Errorf("EffectivePriority() = %s", got)
	}

	raw.Text = "new text"
	if got := raw.EffectiveText(); got != "new text" {
		t.Errorf("text field should win over legacy task field, got %q", got)
	}

	unknown := &RawTask{Text: "x", Section: "someday", Priority: "urgent"}
	if unknown.EffectiveSection() != SectionUndated {
		t.Error("unknown section should map to undated")
	}
	if unknown.EffectivePriority() != PriorityMedium {
		t.Error("unknown priority should map to medium")
	}
}
