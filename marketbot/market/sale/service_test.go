package sale_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"go.uber.org/mock/gomock"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/repositories"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/sale"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/sale/mock"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *repositories.MemoryStore
	service *sale.Service
	listing *models.Listing
}

func newFixture(t *testing.T, gw sale.Gateway) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	listing := &models.Listing{
		SellerID:    "seller",
		Title:       "Bike",
		ContactInfo: "call 555",
		Kind:        models.ListingKindFixedPrice,
	}
	assert.NoError(t, store.Listings().Create(context.Background(), listing))

	service := sale.NewService(store.Sales(), store.Listings(), gw)
	service.SetClock(fixedClock(epoch))
	return &fixture{store: store, service: service, listing: listing}
}

func (f *fixture) activeSale(t *testing.T) *models.Sale {
	t.Helper()
	ctx := context.Background()
	s, err := f.service.Create(ctx, f.listing.ID, 250)
	assert.NoError(t, err)
	s, err = f.service.Activate(ctx, s.ID, "900")
	assert.NoError(t, err)
	return s
}

func TestCreateAndActivate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.service.Create(ctx, f.listing.ID, 0)
	check.True(t, errors.Is(err, sale.ErrInvalidPrice))

	s, err := f.service.Create(ctx, f.listing.ID, 250)
	assert.NoError(t, err)
	check.Equal(t, models.SaleStatusPending, s.Status)

	_, err = f.service.Create(ctx, f.listing.ID, 300)
	check.True(t, errors.Is(err, sale.ErrInvalidState))

	active, err := f.service.Activate(ctx, s.ID, "900")
	assert.NoError(t, err)
	check.Equal(t, models.SaleStatusActive, active.Status)
	check.Equal(t, "900", active.AnnouncementID)

	_, err = f.service.Activate(ctx, s.ID, "901")
	check.True(t, errors.Is(err, sale.ErrInvalidState))

	stored, err := f.service.GetByListing(ctx, f.listing.ID)
	assert.NoError(t, err)
	check.Equal(t, "900", stored.AnnouncementID)

	_, err = f.service.Get(ctx, 99)
	check.True(t, errors.Is(err, sale.ErrNotFound))
}

func TestConcurrentActivateHasOneWinner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	s, err := f.service.Create(ctx, f.listing.ID, 250)
	assert.NoError(t, err)

	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.Activate(ctx, s.ID, "900"); err == nil {
				won.Add(1)
			} else {
				check.True(t, errors.Is(err, sale.ErrInvalidState))
			}
		}()
	}
	wg.Wait()
	check.Equal(t, int32(1), won.Load())
}

func TestRegisterInterestExchangesContactsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mock.NewMockGateway(ctrl)
	f := newFixture(t, gw)
	s := f.activeSale(t)

	gw.EXPECT().ExchangeSaleContacts(gomock.Any(), gomock.Any(), "buyer").
		DoAndReturn(func(_ context.Context, snap sale.Snapshot, _ string) error {
			check.Equal(t, s.ID, snap.Sale.ID)
			check.Equal(t, "call 555", snap.Listing.ContactInfo)
			return nil
		}).Times(1)

	first, err := f.service.RegisterInterest(context.Background(), s.ID, "buyer")
	assert.NoError(t, err)
	check.True(t, first.First)
	check.True(t, first.Delivered)

	again, err := f.service.RegisterInterest(context.Background(), s.ID, "buyer")
	assert.NoError(t, err)
	check.False(t, again.First)
	check.False(t, again.Delivered)
	check.Equal(t, "Bike", again.Listing.Title)

	count, err := f.store.Sales().CountInterests(context.Background(), s.ID)
	assert.NoError(t, err)
	check.Equal(t, 1, count)
}

func TestRegisterInterestKeepsRecordWhenDMFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mock.NewMockGateway(ctrl)
	f := newFixture(t, gw)
	s := f.activeSale(t)

	gw.EXPECT().ExchangeSaleContacts(gomock.Any(), gomock.Any(), "buyer").
		Return(errors.New("dms closed"))

	interest, err := f.service.RegisterInterest(context.Background(), s.ID, "buyer")
	assert.NoError(t, err)
	check.True(t, interest.First)
	check.False(t, interest.Delivered)
}

func TestRegisterInterestRejections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	pending, err := f.service.Create(ctx, f.listing.ID, 250)
	assert.NoError(t, err)
	_, err = f.service.RegisterInterest(ctx, pending.ID, "buyer")
	check.True(t, errors.Is(err, sale.ErrInvalidState))

	_, err = f.service.Activate(ctx, pending.ID, "900")
	assert.NoError(t, err)
	_, err = f.service.RegisterInterest(ctx, pending.ID, "seller")
	check.True(t, errors.Is(err, sale.ErrOwnSale))

	_, err = f.service.RegisterInterest(ctx, 99, "buyer")
	check.True(t, errors.Is(err, sale.ErrNotFound))
}

func TestMarkSoldUpdatesAnnouncement(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mock.NewMockGateway(ctrl)
	f := newFixture(t, gw)
	s := f.activeSale(t)

	gw.EXPECT().SaleClosed(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, snap sale.Snapshot) error {
			check.Equal(t, models.SaleStatusSold, snap.Sale.Status)
			check.Equal(t, "buyer", snap.Sale.BuyerID)
			return nil
		})

	sold, err := f.service.MarkSold(context.Background(), s.ID, "buyer")
	assert.NoError(t, err)
	check.Equal(t, epoch, sold.SoldAt)

	_, err = f.service.RegisterInterest(context.Background(), s.ID, "late")
	check.True(t, errors.Is(err, sale.ErrInvalidState))

	_, err = f.service.Cancel(context.Background(), s.ID)
	check.True(t, errors.Is(err, sale.ErrInvalidState))
}

func TestCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mock.NewMockGateway(ctrl)
	f := newFixture(t, gw)
	ctx := context.Background()

	// Pending sales have no announcement to edit.
	s, err := f.service.Create(ctx, f.listing.ID, 250)
	assert.NoError(t, err)
	cancelled, err := f.service.Cancel(ctx, s.ID)
	assert.NoError(t, err)
	check.Equal(t, models.SaleStatusCancelled, cancelled.Status)

	again, err := f.service.Cancel(ctx, s.ID)
	assert.NoError(t, err)
	check.Equal(t, models.SaleStatusCancelled, again.Status)

	_, err = f.service.MarkSold(ctx, s.ID, "")
	check.True(t, errors.Is(err, sale.ErrInvalidState))
}

func TestCancelActiveEditsAnnouncement(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mock.NewMockGateway(ctrl)
	f := newFixture(t, gw)
	s := f.activeSale(t)

	gw.EXPECT().SaleClosed(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, snap sale.Snapshot) error {
			check.Equal(t, models.SaleStatusCancelled, snap.Sale.Status)
			check.Equal(t, "900", snap.Sale.AnnouncementID)
			return nil
		})

	_, err := f.service.Cancel(context.Background(), s.ID)
	assert.NoError(t, err)
}
