// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package results

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelalipng/yap-sub000/models"
	"github.com/michaelalipng/yap-sub000/store"
)

func opts(labels ...string) []models.PollOption {
	out := make([]models.PollOption, len(labels))
	for i, l := range labels {
		out[i] = models.PollOption{ID: l, PollID: "p", Label: "Option " + l, Position: i}
	}
	return out
}

func votesFor(optionIDs ...string) []models.Vote {
	out := make([]models.Vote, len(optionIDs))
	for i, id := range optionIDs {
		out[i] = models.Vote{PollID: "p", OptionID: id}
	}
	return out
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name        string
		votes       []models.Vote
		options     []models.PollOption
		wantCounts  []int
		wantPercent []int
	}{
		{
			name:        "two to one",
			votes:       votesFor("A", "A", "B"),
			options:     opts("A", "B", "C"),
			wantCounts:  []int{2, 1, 0},
			wantPercent: []int{67, 33, 0},
		},
		{
			name:        "no votes",
			votes:       nil,
			options:     opts("A", "B"),
			wantCounts:  []int{0, 0},
			wantPercent: []int{0, 0},
		},
		{
			name:        "unknown option ignored",
			votes:       votesFor("A", "Z"),
			options:     opts("A", "B"),
			wantCounts:  []int{1, 0},
			wantPercent: []int{100, 0},
		},
		{
			name:        "three way split",
			votes:       votesFor("A", "B", "C"),
			options:     opts("A", "B", "C"),
			wantCounts:  []int{1, 1, 1},
			wantPercent: []int{33, 33, 33},
		},
		{
			name:        "no options",
			votes:       votesFor("A"),
			options:     nil,
			wantCounts:  []int{},
			wantPercent: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.votes, tt.options)
			require.Len(t, got, len(tt.options))

			counts := make([]int, len(got))
			percents := make([]int, len(got))
			for i, r := range got {
				assert.Equal(t, tt.options[i].ID, r.OptionID, "order follows options")
				assert.Equal(t, tt.options[i].Label, r.Label)
				counts[i] = r.VoteCount
				percents[i] = r.Percentage
			}
			assert.Equal(t, tt.wantCounts, counts)
			assert.Equal(t, tt.wantPercent, percents)
		})
	}
}

func TestTotal(t *testing.T) {
	res := Aggregate(votesFor("A", "A", "B", "Z"), opts("A", "B"))
	assert.Equal(t, 3, Total(res))
	assert.Equal(t, 0, Total(nil))
}

func TestLeader(t *testing.T) {
	t.Run("most votes wins", func(t *testing.T) {
		leader, ok := Leader(Aggregate(votesFor("B", "B", "A"), opts("A", "B")))
		require.True(t, ok)
		assert.Equal(t, "B", leader.OptionID)
	})

	t.Run("tie goes to first option", func(t *testing.T) {
		leader, ok := Leader(Aggregate(votesFor("B", "A"), opts("A", "B")))
		require.True(t, ok)
		assert.Equal(t, "A", leader.OptionID)
	})

	t.Run("no votes", func(t *testing.T) {
		_, ok := Leader(Aggregate(nil, opts("A", "B")))
		assert.False(t, ok)
	})
}

func TestActivePoll(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryStore(nil)

	event, err := repo.CreateEvent(ctx, "Sunday service")
	require.NoError(t, err)

	resp, err := ActivePoll(ctx, repo, event.ID)
	require.NoError(t, err)
	assert.Nil(t, resp.Poll)
	assert.Empty(t, resp.Options)
	assert.Equal(t, 0, resp.TotalVotes)

	poll, options, err := repo.CreatePoll(ctx, models.Poll{
		EventID:  event.ID,
		Question: "Coffee?",
		Type:     models.TypeBinary,
		Status:   models.StatusActive,
	}, []models.PollOption{{Label: "Yes"}, {Label: "No", Position: 1}})
	require.NoError(t, err)

	for _, voter := range []string{"v1", "v2"} {
		_, err := repo.UpsertVote(ctx, models.Vote{PollID: poll.ID, OptionID: options[1].ID, VoterID: voter})
		require.NoError(t, err)
	}

	resp, err = ActivePoll(ctx, repo, event.ID)
	require.NoError(t, err)
	require.NotNil(t, resp.Poll)
	assert.Equal(t, poll.ID, resp.Poll.ID)
	assert.Len(t, resp.Options, 2)
	assert.Equal(t, 2, resp.TotalVotes)
	assert.Equal(t, []int{0, 100}, []int{resp.Results[0].Percentage, resp.Results[1].Percentage})

	full, err := ForPoll(ctx, repo, poll)
	require.NoError(t, err)
	assert.Equal(t, options[1].ID, full.LeadingOptionID)
	assert.Equal(t, 2, full.TotalVotes)
}
