package schedrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/daybook-app/daybook/internal/model"
	"github.com/daybook-app/daybook/internal/store"
)

// recurringPrefixes marks item categories that repeat on their own schedule
// and must never roll over ("daily", "dailyRoutines", "weekly-review", ...).
var recurringPrefixes = []string{"daily", "weekly", "monthly"}

// isRecurringCategory reports whether a category names a recurring routine.
// Matching is by case-insensitive prefix so naming variants of the same
// routine family are all excluded.
func isRecurringCategory(category string) bool {
	c := strings.ToLower(strings.TrimSpace(category))
	for _, prefix := range recurringPrefixes {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// GetIncompleteTasks returns a date's unfinished schedule items, excluding
// recurring routines. These are the rollover candidates for the next day.
func (r *Repository) GetIncompleteTasks(ctx context.Context, date string) ([]model.ScheduleItem, error) {
	s, err := r.Load(ctx, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("incomplete tasks %s: %w", date, err)
	}

	var incomplete []model.ScheduleItem
	for _, item := range s.Items {
		if item.Completed || isRecurringCategory(item.Category) {
			continue
		}
		incomplete = append(incomplete, item)
	}
	return incomplete, nil
}

// CheckForRollovers returns the previous day's unfinished items tagged for
// carry-over into the given date. A missing previous schedule yields no
// rollovers, not an error.
func (r *Repository) CheckForRollovers(ctx context.Context, date string) ([]model.ScheduleItem, error) {
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("check rollovers: invalid date %q: %w", date, err)
	}
	previous := day.AddDate(0, 0, -1).Format(model.DateLayout)

	incomplete, err := r.GetIncompleteTasks(ctx, previous)
	if err != nil {
		return nil, err
	}

	rollovers := make([]model.ScheduleItem, 0, len(incomplete))
	for _, item := range incomplete {
		item.IsRollover = true
		item.RolloverFrom = previous
		item.Time = "" // the new day re-slots carried items
		rollovers = append(rollovers, item)
	}
	if len(rollovers) > 0 {
		r.logger.Printf("Rolling %d unfinished items from %s into %s", len(rollovers), previous, date)
	}
	return rollovers, nil
}

// MergeRollovers appends rollover items to a schedule's items, skipping any
// whose normalized text already appears, so repeated merges stay idempotent.
func MergeRollovers(items, rollovers []model.ScheduleItem) []model.ScheduleItem {
	present := make(map[string]bool, len(items))
	for _, item := range items {
		present[model.NormalizeText(item.Text)] = true
	}
	merged := items
	for _, rollover := range rollovers {
		key := model.NormalizeText(rollover.Text)
		if present[key] {
			continue
		}
		present[key] = true
		merged = append(merged, rollover)
	}
	return merged
}
