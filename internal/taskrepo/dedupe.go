package taskrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/daybook-app/daybook/internal/model"
)

// IsDuplicate reports whether two task texts collide: equal after
// normalization, or one normalized text contains the other. Containment is
// intentional so "buy milk" and "buy milk today" resolve to one task, at the
// cost of occasional false positives on very short texts.
func IsDuplicate(a, b string) bool {
	na, nb := model.NormalizeText(a), model.NormalizeText(b)
	if na == "" || nb == "" {
		return na == nb
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

// DedupeResult summarizes one deduplication pass.
type DedupeResult struct {
	// Scanned is the number of tasks examined.
	Scanned int
	// Removed is the number of duplicate tasks deleted.
	Removed int
	// Remaining is the number of tasks left after the pass.
	Remaining int
}

// Deduplicate removes exact duplicates: tasks in the same section whose
// normalized texts are equal. Within each duplicate group one survivor is
// kept, preferring (in order) a completed copy, the copy with the most
// attached detail, then the earliest created copy.
//
// Unlike the create-time check this groups by equality only; containment
// pairs are left alone since merging them would discard distinct wording.
// The pass converges: running it twice removes nothing the second time.
func (r *Repository) Deduplicate(ctx context.Context) (*DedupeResult, error) {
	tasks, err := r.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("deduplicate: %w", err)
	}

	groups := make(map[string][]*model.Task)
	for _, task := range tasks {
		key := dedupeKey(task.Section, task.NormalizedText())
		groups[key] = append(groups[key], task)
	}

	result := &DedupeResult{Scanned: len(tasks)}
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		sortSurvivorFirst(group)
		survivor := group[0]
		for _, loser := range group[1:] {
			if err := r.Delete(ctx, loser.ID); err != nil {
				return nil, fmt.Errorf("deduplicate: remove %s: %w", loser.ID, err)
			}
			r.logger.Printf("Removed duplicate %s (kept %s, %q)", loser.ID, survivor.ID, survivor.Text)
			result.Removed++
		}
	}
	result.Remaining = result.Scanned - result.Removed
	return result, nil
}

func dedupeKey(section model.Section, normalizedText string) string {
	return string(section) + "\x00" + normalizedText
}

// sortSurvivorFirst orders a duplicate group so the task to keep is first:
// completed beats pending, more detail beats less, older beats newer, with
// the id as a final deterministic tie-breaker.
func sortSurvivorFirst(group []*model.Task) {
	sort.Slice(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if a.Completed != b.Completed {
			return a.Completed
		}
		if a.DetailCount() != b.DetailCount() {
			return a.DetailCount() > b.DetailCount()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
