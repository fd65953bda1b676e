package attempt

import (
	"strings"

	"github.com/neudev/attemptd/internal/model"
)

// ItemScore sums the locked points of the item's current test cases. Results for
// test cases that no longer exist on the item are ignored.
func ItemScore(rec *model.SessionRecord, item model.Item) int {
	results := rec.TestCaseResults[item.ItemID]
	score := 0
	for _, tc := range item.TestCases {
		if r, ok := results[tc.TestCaseID]; ok && r.LockedPass != nil {
			score += r.LockedPoints
		}
	}
	return score
}

// DraftScore is the sum of ItemScore over every item of the activity.
func DraftScore(rec *model.SessionRecord, a *model.Activity) int {
	total := 0
	for _, it := range a.Items {
		total += ItemScore(rec, it)
	}
	return total
}

// PassCount returns how many test cases currently pass and how many exist.
func PassCount(rec *model.SessionRecord, a *model.Activity) (passed, total int) {
	for _, it := range a.Items {
		results := rec.TestCaseResults[it.ItemID]
		for _, tc := range it.TestCases {
			total++
			if r, ok := results[tc.TestCaseID]; ok && r.LockedPass != nil && *r.LockedPass {
				passed++
			}
		}
	}
	return passed, total
}

// Passes reports whether a run output matches the expected output of a test case.
func Passes(output, expected string) bool {
	return strings.TrimSpace(output) == strings.TrimSpace(expected)
}
