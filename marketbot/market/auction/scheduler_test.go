package auction_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"go.uber.org/mock/gomock"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/auction"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/auction/mock"
)

func quietGateway(ctrl *gomock.Controller) *mock.MockGateway {
	gw := mock.NewMockGateway(ctrl)
	gw.EXPECT().AuctionOpened(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	gw.EXPECT().AuctionChanged(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	return gw
}

func TestSweepClosesWithWinner(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := quietGateway(ctrl)
	f := newFixture(t, gw)
	s := auction.NewScheduler(f.manager)
	ctx := context.Background()

	a := f.activeAuction(t, 100000)

	_, err := f.manager.PlaceBid(ctx, a.ID, "A", 150000)
	assert.NoError(t, err)
	_, err = f.manager.PlaceBid(ctx, a.ID, "B", 120000)
	check.True(t, errors.Is(err, auction.ErrStaleBid))
	_, err = f.manager.PlaceBid(ctx, a.ID, "A", 200000)
	assert.NoError(t, err)

	bids, err := f.repo.GetAuctionBids(ctx, a.ID)
	assert.NoError(t, err)
	check.Equal(t, 1, len(bids))

	closed, err := s.Tick(ctx)
	assert.NoError(t, err)
	check.Equal(t, 0, closed)

	gw.EXPECT().AuctionFinished(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, snap auction.Snapshot) error {
			check.Equal(t, models.AuctionStatusFinished, snap.Auction.Status)
			check.Equal(t, int64(200000), snap.Auction.CurrentPrice)
			return nil
		}).
		Times(1)
	gw.EXPECT().ExchangeContacts(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, snap auction.Snapshot) error {
			check.Equal(t, "A", snap.Auction.WinnerID)
			check.Equal(t, "A", snap.Leading.BidderID)
			return nil
		}).
		Times(1)

	f.clock.Advance(testDuration)
	closed, err = s.Tick(ctx)
	assert.NoError(t, err)
	check.Equal(t, 1, closed)

	stored, err := f.repo.GetByID(ctx, a.ID)
	assert.NoError(t, err)
	check.Equal(t, models.AuctionStatusFinished, stored.Status)
	check.Equal(t, "A", stored.WinnerID)
	check.Equal(t, int64(200000), stored.CurrentPrice)
	check.Equal(t, f.clock.Now(), stored.FinishedAt)

	// A second sweep sees nothing and notifies nobody.
	closed, err = s.Tick(ctx)
	assert.NoError(t, err)
	check.Equal(t, 0, closed)
}

func TestSweepClosesWithoutBids(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := quietGateway(ctrl)
	f := newFixture(t, gw)
	s := auction.NewScheduler(f.manager)
	ctx := context.Background()

	a := f.activeAuction(t, 500)
	gw.EXPECT().AuctionFinished(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	f.clock.Advance(testDuration + time.Second)
	closed, err := s.Tick(ctx)
	assert.NoError(t, err)
	check.Equal(t, 1, closed)

	stored, err := f.repo.GetByID(ctx, a.ID)
	assert.NoError(t, err)
	check.Equal(t, models.AuctionStatusFinished, stored.Status)
	check.False(t, stored.HasWinner())
}

func TestSweepSkipsExtendedDeadline(t *testing.T) {
	f := newFixture(t, nil)
	s := auction.NewScheduler(f.manager)
	ctx := context.Background()

	a := f.activeAuction(t, 100)
	f.clock.Advance(testDuration - time.Minute)
	_, err := f.manager.PlaceBid(ctx, a.ID, "late", 200)
	assert.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	closed, err := s.Tick(ctx)
	assert.NoError(t, err)
	check.Equal(t, 0, closed)

	f.clock.Advance(testDuration)
	closed, err = s.Tick(ctx)
	assert.NoError(t, err)
	check.Equal(t, 1, closed)
}

func TestSweepCloseSurvivesNotificationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := quietGateway(ctrl)
	f := newFixture(t, gw)
	s := auction.NewScheduler(f.manager)
	ctx := context.Background()

	a := f.activeAuction(t, 100)
	_, err := f.manager.PlaceBid(ctx, a.ID, "w", 150)
	assert.NoError(t, err)

	gw.EXPECT().AuctionFinished(gomock.Any(), gomock.Any()).Return(errors.New("message deleted")).Times(1)
	gw.EXPECT().ExchangeContacts(gomock.Any(), gomock.Any()).Return(errors.New("dm closed")).Times(1)

	f.clock.Advance(testDuration)
	closed, err := s.Tick(ctx)
	assert.NoError(t, err)
	check.Equal(t, 1, closed)

	stored, err := f.repo.GetByID(ctx, a.ID)
	assert.NoError(t, err)
	check.Equal(t, models.AuctionStatusFinished, stored.Status)
}

func TestSweepManyAuctions(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := quietGateway(ctrl)
	f := newFixture(t, gw)
	s := auction.NewScheduler(f.manager)
	ctx := context.Background()

	const n = 7
	for i := 0; i < n; i++ {
		f.activeAuction(t, 100)
	}
	var finished atomic.Int32
	gw.EXPECT().AuctionFinished(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, auction.Snapshot) error {
			finished.Add(1)
			return nil
		}).
		Times(n)

	f.clock.Advance(testDuration)
	closed, err := s.Tick(ctx)
	assert.NoError(t, err)
	check.Equal(t, n, closed)
	check.Equal(t, int32(n), finished.Load())

	active, err := f.repo.GetActive(ctx)
	assert.NoError(t, err)
	check.Equal(t, 0, len(active))
}

func TestCloseNowNotifiesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := quietGateway(ctrl)
	f := newFixture(t, gw)
	s := auction.NewScheduler(f.manager)
	ctx := context.Background()

	a := f.activeAuction(t, 100)
	_, err := f.manager.PlaceBid(ctx, a.ID, "w", 150)
	assert.NoError(t, err)

	gw.EXPECT().AuctionFinished(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	gw.EXPECT().ExchangeContacts(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	first, err := s.CloseNow(ctx, a.ID)
	assert.NoError(t, err)
	check.True(t, first.Closed)

	second, err := s.CloseNow(ctx, a.ID)
	assert.NoError(t, err)
	check.False(t, second.Closed)
	check.Equal(t, "w", second.Auction.WinnerID)

	// Already finished, so the sweep has nothing to do either.
	f.clock.Advance(testDuration)
	closed, err := s.Tick(ctx)
	assert.NoError(t, err)
	check.Equal(t, 0, closed)
}

func TestRefreshTick(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mock.NewMockGateway(ctrl)
	f := newFixture(t, gw)
	s := auction.NewScheduler(f.manager)
	ctx := context.Background()

	gw.EXPECT().AuctionOpened(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	ok := f.activeAuction(t, 100)
	broken := f.activeAuction(t, 100)

	pending, err := f.manager.Create(ctx, 9999, 100)
	assert.NoError(t, err)

	gw.EXPECT().AuctionChanged(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, snap auction.Snapshot) error {
			check.NotEqual(t, pending.ID, snap.Auction.ID)
			if snap.Auction.ID == broken.ID {
				return errors.New("message is not modified")
			}
			check.Equal(t, ok.ID, snap.Auction.ID)
			return nil
		}).
		Times(2)

	refreshed, err := s.RefreshTick(ctx)
	assert.NoError(t, err)
	check.Equal(t, 1, refreshed)
}

func TestSchedulerStartAndShutdown(t *testing.T) {
	f := newFixture(t, nil)
	s := auction.NewScheduler(f.manager)
	ctx := context.Background()

	a := f.activeAuction(t, 100)
	f.clock.Advance(testDuration)

	s.Start(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := f.repo.GetByID(ctx, a.ID)
		assert.NoError(t, err)
		if stored.Status == models.AuctionStatusFinished {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("auction was not closed by the running scheduler")
		}
		time.Sleep(5 * time.Millisecond)
	}

	assert.NoError(t, s.Shutdown(time.Second))
}
