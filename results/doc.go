// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package results turns raw vote rows into a per-option breakdown.

	res := results.Aggregate(votes, options)

Aggregate has no side effects. It runs in time linear in the number of
votes and returns one PollResult per option in the order the options were
given. Percentages are rounded independently, so they may not sum to
exactly 100.
*/
package results
