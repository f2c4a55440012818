package schedrepo

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Duration strings come from humans ("2 hours", "90 min", "1.5h", "45"), so
// parsing is permissive: hour and minute amounts are extracted independently
// and summed, a bare number counts as minutes.
var (
	hoursPattern   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*h(?:ours?|rs?)?\b`)
	minutesPattern = regexp.MustCompile(`(?i)(\d+)\s*m(?:in(?:ute)?s?)?\b`)
	barePattern    = regexp.MustCompile(`^\s*(\d+)\s*$`)
)

// ParseDurationMinutes converts a free-form duration string to minutes.
// Unparseable input yields defaultMinutes.
func ParseDurationMinutes(s string, defaultMinutes int) int {
	if strings.TrimSpace(s) == "" {
		return defaultMinutes
	}
	if m := barePattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}

	total := 0
	matched := false
	if m := hoursPattern.FindStringSubmatch(s); m != nil {
		hours, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			total += int(hours * 60)
			matched = true
		}
	}
	if m := minutesPattern.FindStringSubmatch(s); m != nil {
		minutes, err := strconv.Atoi(m[1])
		if err == nil {
			total += minutes
			matched = true
		}
	}
	if !matched {
		return defaultMinutes
	}
	return total
}

// DayCapacity is the estimated workload of one schedule.
type DayCapacity struct {
	Date         string
	TotalMinutes int
	TotalHours   float64

	// ByCategory breaks the minutes down per item category; uncategorized
	// items land under "uncategorized".
	ByCategory map[string]int

	// IsOverloaded is set when the total exceeds the overload threshold.
	IsOverloaded bool

	// PercentUsed is the total relative to the threshold (1.0 = at capacity).
	PercentUsed float64
}

// CalculateDailyCapacity estimates the workload of one date's schedule from
// its item durations.
func (r *Repository) CalculateDailyCapacity(ctx context.Context, date string) (*DayCapacity, error) {
	s, err := r.Load(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("capacity %s: %w", date, err)
	}

	capacity := &DayCapacity{
		Date:       date,
		ByCategory: make(map[string]int),
	}
	for _, item := range s.Items {
		minutes := ParseDurationMinutes(item.Duration, r.cfg.DefaultItemMinutes)
		capacity.TotalMinutes += minutes

		category := item.Category
		if category == "" {
			category = "uncategorized"
		}
		capacity.ByCategory[category] += minutes
	}

	capacity.TotalHours = float64(capacity.TotalMinutes) / 60
	threshold := r.cfg.OverloadThresholdMinutes
	capacity.IsOverloaded = capacity.TotalMinutes > threshold
	if threshold > 0 {
		capacity.PercentUsed = float64(capacity.TotalMinutes) / float64(threshold)
	}
	return capacity, nil
}
