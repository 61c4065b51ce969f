package auction_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/repositories"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/auction"
)

const testDuration = 2 * time.Hour

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixtureClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixtureClock() *fixtureClock {
	return &fixtureClock{now: epoch}
}

func (c *fixtureClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixtureClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	repo    repositories.AuctionRepository
	clock   *fixtureClock
	manager *auction.Manager
}

func newFixture(t *testing.T, gw auction.Gateway, opts ...auction.Option) *fixture {
	t.Helper()
	return newFixtureOn(t, repositories.NewMemoryStore().Auctions(), gw, opts...)
}

func newFixtureOn(t *testing.T, repo repositories.AuctionRepository, gw auction.Gateway, opts ...auction.Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:  repo,
		clock: newFixtureClock(),
	}
	cfg := auction.Config{
		Duration:         testDuration,
		SweepInterval:    10 * time.Millisecond,
		RefreshInterval:  time.Hour,
		NotifyTimeout:    time.Second,
		SweepConcurrency: 2,
	}
	opts = append([]auction.Option{auction.WithClock(f.clock)}, opts...)
	f.manager = auction.NewManager(f.repo, gw, cfg, opts...)
	return f
}

var nextListing int64

// activeAuction creates and activates an auction with the given start price.
func (f *fixture) activeAuction(t *testing.T, startPrice int64) *models.Auction {
	t.Helper()
	ctx := context.Background()

	nextListing++
	a, err := f.manager.Create(ctx, nextListing, startPrice)
	assert.NoError(t, err)
	a, err = f.manager.Activate(ctx, a.ID, "msg-1")
	assert.NoError(t, err)
	return a
}
