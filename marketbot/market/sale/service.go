package sale

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/repositories"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/auction"
)

const notifyTimeout = 10 * time.Second

// Service runs fixed-price sales: pending until a moderator publishes them,
// then active until the seller marks them sold or they are cancelled. Status
// changes are compare-and-set in the repository, so racing callers get
// ErrInvalidState instead of overwriting each other.
type Service struct {
	repo     repositories.SaleRepository
	listings repositories.ListingRepository
	gateway  Gateway
	clock    auction.Clock
}

func NewService(repo repositories.SaleRepository, listings repositories.ListingRepository, gateway Gateway) *Service {
	if gateway == nil {
		gateway = NopGateway{}
	}
	return &Service{
		repo:     repo,
		listings: listings,
		gateway:  gateway,
		clock:    auction.SystemClock,
	}
}

func (s *Service) SetClock(c auction.Clock) {
	s.clock = c
}

// Interest is the outcome of a buyer pressing Buy.
type Interest struct {
	Snapshot
	// First is false when this buyer already registered interest; contacts
	// are only exchanged the first time.
	First bool
	// Delivered reports whether the DM exchange went through.
	Delivered bool
}

func (s *Service) Create(ctx context.Context, listingID, price int64) (*models.Sale, error) {
	if price <= 0 {
		return nil, fmt.Errorf("price %d: %w", price, ErrInvalidPrice)
	}

	sale := &models.Sale{
		ListingID: listingID,
		Price:     price,
		Status:    models.SaleStatusPending,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Create(ctx, sale); err != nil {
		if repositories.IsConflict(err) {
			return nil, fmt.Errorf("listing %d already has a sale: %w", listingID, ErrInvalidState)
		}
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}

	slog.Info("Sale created",
		slog.String("type", "sys"),
		slog.Int64("sale_id", sale.ID),
		slog.Int64("listing_id", listingID),
		slog.Int64("price", price))
	return sale, nil
}

func (s *Service) Get(ctx context.Context, saleID int64) (*models.Sale, error) {
	sale, err := s.repo.GetByID(ctx, saleID)
	if err != nil {
		return nil, translate(saleID, err)
	}
	return sale, nil
}

func (s *Service) GetByListing(ctx context.Context, listingID int64) (*models.Sale, error) {
	sale, err := s.repo.GetByListingID(ctx, listingID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, fmt.Errorf("listing %d: %w", listingID, ErrNotFound)
		}
		return nil, err
	}
	return sale, nil
}

// Activate makes a published sale buyable. Only one activation succeeds.
func (s *Service) Activate(ctx context.Context, saleID int64, announcementID string) (*models.Sale, error) {
	sale, err := s.transition(ctx, saleID, "activate", func(sale *models.Sale) {
		sale.Status = models.SaleStatusActive
		sale.AnnouncementID = announcementID
	}, models.SaleStatusPending)
	if err != nil {
		return nil, err
	}

	slog.Info("Sale activated",
		slog.String("type", "sys"),
		slog.Int64("sale_id", saleID),
		slog.String("announcement_id", announcementID))
	return sale, nil
}

// MarkSold closes an active sale. buyerID may be empty when the seller sold
// outside the bot.
func (s *Service) MarkSold(ctx context.Context, saleID int64, buyerID string) (*models.Sale, error) {
	sale, err := s.transition(ctx, saleID, "mark sold", func(sale *models.Sale) {
		sale.Status = models.SaleStatusSold
		sale.BuyerID = buyerID
		sale.SoldAt = s.clock.Now()
	}, models.SaleStatusActive)
	if err != nil {
		return nil, err
	}

	slog.Info("Sale sold",
		slog.String("type", "sys"),
		slog.Int64("sale_id", saleID),
		slog.String("buyer_id", buyerID))
	s.closed(ctx, sale)
	return sale, nil
}

// Cancel withdraws a pending or active sale. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, saleID int64) (*models.Sale, error) {
	current, err := s.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.SaleStatusCancelled {
		return current, nil
	}

	sale, err := s.transition(ctx, saleID, "cancel", func(sale *models.Sale) {
		sale.Status = models.SaleStatusCancelled
	}, models.SaleStatusPending, models.SaleStatusActive)
	if err != nil {
		return nil, err
	}

	slog.Info("Sale cancelled",
		slog.String("type", "sys"),
		slog.Int64("sale_id", saleID))
	s.closed(ctx, sale)
	return sale, nil
}

// RegisterInterest records that buyerID wants the item. The first press per
// buyer exchanges contacts over DM; repeats only return the listing.
func (s *Service) RegisterInterest(ctx context.Context, saleID int64, buyerID string) (*Interest, error) {
	sale, err := s.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != models.SaleStatusActive {
		return nil, stateError(sale, "buy")
	}
	listing, err := s.listings.GetByID(ctx, sale.ListingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing %d: %w", sale.ListingID, err)
	}
	if listing.SellerID == buyerID {
		return nil, ErrOwnSale
	}

	out := &Interest{Snapshot: Snapshot{Sale: *sale, Listing: *listing}}
	err = s.repo.AddInterest(ctx, &models.SaleInterest{
		SaleID:    saleID,
		BuyerID:   buyerID,
		CreatedAt: s.clock.Now(),
	})
	switch {
	case repositories.IsConflict(err):
		return out, nil
	case err != nil:
		return nil, translate(saleID, err)
	}
	out.First = true

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err = s.gateway.ExchangeSaleContacts(nctx, out.Snapshot, buyerID); err != nil {
		slog.Error("Sale contact exchange failed",
			slog.String("type", "sys"),
			slog.Int64("sale_id", saleID),
			slog.String("buyer_id", buyerID),
			slog.String("error", err.Error()))
		return out, nil
	}
	out.Delivered = true
	return out, nil
}

func (s *Service) transition(ctx context.Context, saleID int64, op string, apply func(*models.Sale), from ...models.SaleStatus) (*models.Sale, error) {
	sale, err := s.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(from, sale.Status) {
		return nil, stateError(sale, op)
	}

	apply(sale)
	if err = s.repo.Transition(ctx, sale, from...); err != nil {
		if !repositories.IsNotFound(err) {
			return nil, err
		}
		// Someone else moved it between the read and the write.
		current, getErr := s.Get(ctx, saleID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, stateError(current, op)
	}
	return sale, nil
}

func (s *Service) closed(ctx context.Context, sale *models.Sale) {
	if sale.AnnouncementID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	listing, err := s.listings.GetByID(ctx, sale.ListingID)
	if err == nil {
		err = s.gateway.SaleClosed(ctx, Snapshot{Sale: *sale, Listing: *listing})
	}
	if err != nil {
		slog.Error("Sale announcement update failed",
			slog.String("type", "sys"),
			slog.Int64("sale_id", sale.ID),
			slog.String("error", err.Error()))
	}
}
