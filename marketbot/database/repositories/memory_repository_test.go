package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
)

func seedAuction(t *testing.T, repo AuctionRepository, listingID int64, deadline time.Time) *models.Auction {
	t.Helper()
	a := &models.Auction{
		ListingID:    listingID,
		StartPrice:   100,
		CurrentPrice: 100,
		Status:       models.AuctionStatusActive,
		Deadline:     deadline,
	}
	assert.NoError(t, repo.Create(context.Background(), a))
	return a
}

func TestMemoryCreateOnePerListing(t *testing.T) {
	repo := NewMemoryStore().Auctions()
	seedAuction(t, repo, 1, time.Now())

	err := repo.Create(context.Background(), &models.Auction{ListingID: 1})
	check.True(t, IsConflict(err))
}

func TestMemoryNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Auctions().GetByID(context.Background(), 99)
	check.True(t, IsNotFound(err))

	_, err = store.Listings().GetByID(context.Background(), 99)
	check.True(t, IsNotFound(err))

	err = store.Auctions().WithAuctionLock(context.Background(), 99, func(context.Context, AuctionTx) error {
		t.Fatal("callback must not run")
		return nil
	})
	check.True(t, IsNotFound(err))
}

func TestMemoryGetExpiredOrdering(t *testing.T) {
	repo := NewMemoryStore().Auctions()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	late := seedAuction(t, repo, 1, now.Add(-time.Minute))
	early := seedAuction(t, repo, 2, now.Add(-time.Hour))
	seedAuction(t, repo, 3, now.Add(time.Hour))

	expired, err := repo.GetExpired(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(expired))
	check.Equal(t, early.ID, expired[0].ID)
	check.Equal(t, late.ID, expired[1].ID)
}

func TestMemoryLockRollsBackOnError(t *testing.T) {
	repo := NewMemoryStore().Auctions()
	a := seedAuction(t, repo, 1, time.Now())
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.WithAuctionLock(ctx, a.ID, func(ctx context.Context, tx AuctionTx) error {
		tx.Auction().CurrentPrice = 500
		assert.NoError(t, tx.SaveAuction(ctx))
		assert.NoError(t, tx.InsertBid(ctx, &models.Bid{AuctionID: a.ID, BidderID: "u1", Amount: 500}))
		return boom
	})
	check.True(t, errors.Is(err, boom))

	stored, err := repo.GetByID(ctx, a.ID)
	assert.NoError(t, err)
	check.Equal(t, int64(100), stored.CurrentPrice)

	count, err := repo.CountBids(ctx, a.ID)
	assert.NoError(t, err)
	check.Equal(t, 0, count)
}

func TestMemoryLeadingBidTieBreak(t *testing.T) {
	repo := NewMemoryStore().Auctions()
	a := seedAuction(t, repo, 1, time.Now())
	ctx := context.Background()
	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := repo.WithAuctionLock(ctx, a.ID, func(ctx context.Context, tx AuctionTx) error {
		assert.NoError(t, tx.InsertBid(ctx, &models.Bid{AuctionID: a.ID, BidderID: "late", Amount: 300, CreatedAt: first.Add(time.Second)}))
		assert.NoError(t, tx.InsertBid(ctx, &models.Bid{AuctionID: a.ID, BidderID: "early", Amount: 300, CreatedAt: first}))
		assert.NoError(t, tx.InsertBid(ctx, &models.Bid{AuctionID: a.ID, BidderID: "low", Amount: 200, CreatedAt: first}))

		check.True(t, IsConflict(tx.InsertBid(ctx, &models.Bid{AuctionID: a.ID, BidderID: "low", Amount: 250})))

		leading, err := tx.GetLeadingBid(ctx)
		assert.NoError(t, err)
		check.Equal(t, "early", leading.BidderID)
		return nil
	})
	assert.NoError(t, err)

	bids, err := repo.GetAuctionBids(ctx, a.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(bids))
	check.Equal(t, "early", bids[0].BidderID)
	check.Equal(t, "late", bids[1].BidderID)
	check.Equal(t, "low", bids[2].BidderID)
}

func TestMemoryLockHonoursContext(t *testing.T) {
	repo := NewMemoryStore().Auctions()
	a := seedAuction(t, repo, 1, time.Now())

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = repo.WithAuctionLock(context.Background(), a.ID, func(context.Context, AuctionTx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := repo.WithAuctionLock(ctx, a.ID, func(context.Context, AuctionTx) error {
		t.Fatal("lock must not be acquired")
		return nil
	})
	check.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestMemoryBidHistoryNewestFirst(t *testing.T) {
	repo := NewMemoryStore().Auctions()
	a := seedAuction(t, repo, 1, time.Now())
	ctx := context.Background()

	for _, amount := range []int64{150, 200, 250} {
		err := repo.WithAuctionLock(ctx, a.ID, func(ctx context.Context, tx AuctionTx) error {
			return tx.AppendRaise(ctx, &models.BidRaise{AuctionID: a.ID, BidderID: "u1", Amount: amount})
		})
		assert.NoError(t, err)
	}

	history, err := repo.GetBidHistory(ctx, a.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(history))
	check.Equal(t, int64(250), history[0].Amount)
	check.Equal(t, int64(150), history[2].Amount)
}

func TestMemorySaleTransitionIsConditional(t *testing.T) {
	repo := NewMemoryStore().Sales()
	ctx := context.Background()

	sale := &models.Sale{ListingID: 1, Price: 500, Status: models.SaleStatusPending}
	assert.NoError(t, repo.Create(ctx, sale))
	check.True(t, IsConflict(repo.Create(ctx, &models.Sale{ListingID: 1})))

	sale.Status = models.SaleStatusActive
	sale.AnnouncementID = "123"
	assert.NoError(t, repo.Transition(ctx, sale, models.SaleStatusPending))

	// A second activation finds no pending row.
	err := repo.Transition(ctx, sale, models.SaleStatusPending)
	check.True(t, IsNotFound(err))

	stored, err := repo.GetByListingID(ctx, 1)
	assert.NoError(t, err)
	check.Equal(t, models.SaleStatusActive, stored.Status)
	check.Equal(t, "123", stored.AnnouncementID)
}

func TestMemorySaleInterestOncePerBuyer(t *testing.T) {
	repo := NewMemoryStore().Sales()
	ctx := context.Background()

	sale := &models.Sale{ListingID: 1, Price: 500, Status: models.SaleStatusActive}
	assert.NoError(t, repo.Create(ctx, sale))

	assert.NoError(t, repo.AddInterest(ctx, &models.SaleInterest{SaleID: sale.ID, BuyerID: "b1"}))
	check.True(t, IsConflict(repo.AddInterest(ctx, &models.SaleInterest{SaleID: sale.ID, BuyerID: "b1"})))
	assert.NoError(t, repo.AddInterest(ctx, &models.SaleInterest{SaleID: sale.ID, BuyerID: "b2"}))
	check.True(t, IsNotFound(repo.AddInterest(ctx, &models.SaleInterest{SaleID: 99, BuyerID: "b1"})))

	count, err := repo.CountInterests(ctx, sale.ID)
	assert.NoError(t, err)
	check.Equal(t, 2, count)
}
