// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelalipng/yap-sub000/models"
)

func TestMemoryStoreSetFailure(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(nil)
	boom := errors.New("connection reset")

	m.SetFailure(boom)
	_, err := m.FindActivePoll(ctx, "evt")
	assert.ErrorIs(t, err, boom)

	// Only the next call fails
	_, err = m.FindActivePoll(ctx, "evt")
	assert.NoError(t, err)
}

func TestMemoryStoreRejectsSecondActiveOnCreate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(nil)
	opts := []models.PollOption{{Label: "Yes"}, {Label: "No", Position: 1}}

	_, _, err := m.CreatePoll(ctx, models.Poll{EventID: "evt", Question: "one", Status: models.StatusActive}, opts)
	require.NoError(t, err)

	_, _, err = m.CreatePoll(ctx, models.Poll{EventID: "evt", Question: "two", Status: models.StatusActive}, opts)
	assert.ErrorIs(t, err, ErrActivePollExists)

	// Other events are unaffected
	_, _, err = m.CreatePoll(ctx, models.Poll{EventID: "evt-2", Question: "three", Status: models.StatusActive}, opts)
	assert.NoError(t, err)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(nil)

	poll, _, err := m.CreatePoll(ctx, models.Poll{EventID: "evt", Question: "q"},
		[]models.PollOption{{Label: "A"}, {Label: "B", Position: 1}})
	require.NoError(t, err)

	options, err := m.FindPollOptions(ctx, poll.ID)
	require.NoError(t, err)
	options[0].Label = "mutated"

	again, err := m.FindPollOptions(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", again[0].Label)
}
