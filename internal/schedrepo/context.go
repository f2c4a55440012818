package schedrepo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/daybook-app/daybook/internal/model"
	"github.com/daybook-app/daybook/internal/store"
)

// DaySummary is the condensed outcome of one planned day.
type DaySummary struct {
	Date           string
	CompletionRate float64 // 0..1
	PlannedMinutes int
	PlannedHours   float64
	Overloaded     bool

	// Deviant marks a day whose planned hours sit far from the window mean.
	Deviant bool
}

// MultiDayContext aggregates a window of days around a reference date for
// planning decisions: how much was typically planned, how much of it got
// done, and which days stick out.
type MultiDayContext struct {
	// Days holds one summary per day with data, oldest first.
	Days []DaySummary

	// DaysWithData counts how many of the requested days had a schedule.
	DaysWithData int

	// AvgCompletionRate and AvgHoursPerDay cover only the days before the
	// reference date; future days have nothing completed yet.
	AvgCompletionRate float64
	AvgHoursPerDay    float64

	// OverloadedDates lists days planned beyond the overload threshold,
	// across the whole window.
	OverloadedDates []string

	// HoursSpread is max minus min planned hours across the window.
	HoursSpread float64

	// UnevenDistribution is set when the spread exceeds four hours,
	// suggesting work should be rebalanced across days.
	UnevenDistribution bool
}

// deviationThresholdHours flags individual days that differ from the window
// mean by more than this many planned hours.
const deviationThresholdHours = 4.0

// LoadMultiDayContext assembles summaries for the inclusive window spanning
// daysBefore days before currentDate through daysAfter days after it. Days
// are fetched concurrently; dates with no schedule or history are simply
// absent from the result.
func (r *Repository) LoadMultiDayContext(ctx context.Context, currentDate string, daysBefore, daysAfter int) (*MultiDayContext, error) {
	if daysBefore < 0 || daysAfter < 0 {
		return nil, fmt.Errorf("multi-day context: negative window (%d before, %d after)", daysBefore, daysAfter)
	}
	current, err := time.Parse(model.DateLayout, currentDate)
	if err != nil {
		return nil, fmt.Errorf("multi-day context: invalid date %q: %w", currentDate, err)
	}

	total := daysBefore + daysAfter + 1
	summaries := make([]*DaySummary, total)
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			date := current.AddDate(0, 0, slot-daysBefore).Format(model.DateLayout)
			summary, err := r.summarizeDay(ctx, date)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					r.logger.Printf("Skipping %s in multi-day context: %v", date, err)
				}
				return
			}
			summaries[slot] = summary
		}(i)
	}
	wg.Wait()

	// Slot order is chronological already.
	mdc := &MultiDayContext{}
	for _, summary := range summaries {
		if summary == nil {
			continue
		}
		mdc.Days = append(mdc.Days, *summary)
	}
	mdc.DaysWithData = len(mdc.Days)
	if mdc.DaysWithData == 0 {
		return mdc, nil
	}

	var windowHours, pastRate, pastHours float64
	pastDays := 0
	minHours, maxHours := mdc.Days[0].PlannedHours, mdc.Days[0].PlannedHours
	for _, day := range mdc.Days {
		windowHours += day.PlannedHours
		if day.PlannedHours < minHours {
			minHours = day.PlannedHours
		}
		if day.PlannedHours > maxHours {
			maxHours = day.PlannedHours
		}
		if day.Overloaded {
			mdc.OverloadedDates = append(mdc.OverloadedDates, day.Date)
		}
		if day.Date < currentDate {
			pastRate += day.CompletionRate
			pastHours += day.PlannedHours
			pastDays++
		}
	}
	if pastDays > 0 {
		mdc.AvgCompletionRate = pastRate / float64(pastDays)
		mdc.AvgHoursPerDay = pastHours / float64(pastDays)
	}
	mdc.HoursSpread = maxHours - minHours
	mdc.UnevenDistribution = mdc.HoursSpread > deviationThresholdHours

	windowMean := windowHours / float64(mdc.DaysWithData)
	for i := range mdc.Days {
		diff := mdc.Days[i].PlannedHours - windowMean
		if diff < 0 {
			diff = -diff
		}
		mdc.Days[i].Deviant = diff > deviationThresholdHours
	}
	return mdc, nil
}

// summarizeDay condenses one date: completion from the history snapshot when
// present (it reflects the last save), workload from the schedule items.
func (r *Repository) summarizeDay(ctx context.Context, date string) (*DaySummary, error) {
	s, err := r.Load(ctx, date)
	if err != nil {
		return nil, err
	}

	summary := &DaySummary{Date: date}
	for _, item := range s.Items {
		summary.PlannedMinutes += ParseDurationMinutes(item.Duration, r.cfg.DefaultItemMinutes)
	}
	summary.PlannedHours = float64(summary.PlannedMinutes) / 60
	summary.Overloaded = summary.PlannedMinutes > r.cfg.OverloadThresholdMinutes

	if record, err := r.loadHistory(ctx, date); err == nil && record.Snapshot != nil {
		summary.CompletionRate = record.Snapshot.CompletionRate
	} else {
		summary.CompletionRate = model.SnapshotFromSchedule(s).CompletionRate
	}
	return summary, nil
}
