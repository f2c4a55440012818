package taskrepo

import (
	"errors"
	"fmt"

	"github.com/daybook-app/daybook/internal/model"
)

// ErrMigrationInProgress is returned when a migration lock held by another
// process is still fresh.
var ErrMigrationInProgress = errors.New("migration already in progress")

// ValidationError reports input rejected before any storage I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task: %s %s", e.Field, e.Reason)
}

// DuplicateTaskError reports that an update would collide with another task
// in the same section. Creates never return it: a duplicate create resolves
// to the existing task instead.
type DuplicateTaskError struct {
	ExistingID string
	Section    model.Section
	Text       string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("duplicate task in section %q: %q already exists as %s", e.Section, e.Text, e.ExistingID)
}

// MigrationError is a per-record migration failure. Migrations never abort on
// one bad record; these are collected into the MigrationResult instead.
type MigrationError struct {
	Index   int
	Section string
	Text    string
	Reason  string
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("record %d (%s/%q): %s", e.Index, e.Section, e.Text, e.Reason)
}
