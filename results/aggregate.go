// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package results

import (
	"math"

	"github.com/michaelalipng/yap-sub000/models"
)

// Aggregate computes vote counts and percentages per option.
// Output order follows options; options without votes are included.
// Votes for unknown option IDs are ignored.
func Aggregate(votes []models.Vote, options []models.PollOption) []models.PollResult {
	counts := make(map[string]int, len(options))
	for _, opt := range options {
		counts[opt.ID] = 0
	}

	total := 0
	for _, v := range votes {
		if _, ok := counts[v.OptionID]; !ok {
			continue
		}
		counts[v.OptionID]++
		total++
	}

	results := make([]models.PollResult, len(options))
	for i, opt := range options {
		count := counts[opt.ID]
		results[i] = models.PollResult{
			OptionID:   opt.ID,
			Label:      opt.Label,
			VoteCount:  count,
			Percentage: percentage(count, total),
		}
	}

	return results
}

// Total sums vote counts across results
func Total(results []models.PollResult) int {
	total := 0
	for _, r := range results {
		total += r.VoteCount
	}
	return total
}

// Leader returns the option with the most votes, lowest position winning
// ties. ok is false when no votes were cast.
func Leader(results []models.PollResult) (leader models.PollResult, ok bool) {
	for _, r := range results {
		if r.VoteCount > leader.VoteCount {
			leader = r
			ok = true
		}
	}
	return leader, ok
}

// percentage rounds 100*count/total, returning 0 when total is 0
func percentage(count, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(count) / float64(total)))
}
