// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"sync"
	"testing"
	"time"

	"github.com/michaelalipng/yap-sub000/cliparse"
	"github.com/michaelalipng/yap-sub000/realtime"
	"github.com/michaelalipng/yap-sub000/store"
	"github.com/michaelalipng/yap-sub000/testutil"
	"github.com/michaelalipng/yap-sub000/transitions"
)

// testClock is a settable clock for deadline tests
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	repo   store.Repository
	feed   *realtime.Feed
	engine *transitions.Engine
	clock  *testClock
	cfg    cliparse.Config
}

// newTestEnv wires a SQLite-backed store and an engine on a virtual clock.
// The monitor interval is long enough that tests drive passes explicitly.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	feed := realtime.NewFeed()
	repo := store.NewSQLStore(testutil.SetupTestDB(t), feed)
	clock := &testClock{now: time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)}
	engine := transitions.New(repo,
		transitions.WithClock(clock),
		transitions.WithInterval(time.Hour),
	)
	t.Cleanup(engine.Close)

	return &testEnv{
		repo:   repo,
		feed:   feed,
		engine: engine,
		clock:  clock,
		cfg:    testutil.GetTestConfig(),
	}
}

func intPtr(i int) *int { return &i }
