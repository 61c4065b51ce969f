package auction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/repositories"
	"github.com/ellavondegurechaff/marketbot/marketbot/events"
)

// Manager owns the auction state machine. All mutations of one auction run
// under repositories.AuctionRepository.WithAuctionLock; gateway and event
// notifications are sent after the change is committed. Announcement edits
// for one auction are serialized and always rendered from the store.
type Manager struct {
	repo      repositories.AuctionRepository
	gateway   Gateway
	publisher events.Publisher
	clock     Clock
	cfg       Config

	// auction id -> single-slot channel guarding announcement edits
	edits sync.Map
}

type Option func(*Manager)

func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func NewManager(repo repositories.AuctionRepository, gateway Gateway, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		repo:      repo,
		gateway:   gateway,
		publisher: events.Nop{},
		clock:     SystemClock,
		cfg:       cfg.withDefaults(),
	}
	if m.gateway == nil {
		m.gateway = NopGateway{}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Config() Config {
	return m.cfg
}

// PlacedBid is the outcome of an accepted bid.
type PlacedBid struct {
	Bid      *models.Bid
	Auction  *models.Auction
	BidCount int
	// PrevAmount is the bidder's previous standing amount, zero on a first bid.
	PrevAmount int64
}

// CloseResult is the outcome of Close. Closed is false when the auction had
// already been finished by an earlier call.
type CloseResult struct {
	Auction  *models.Auction
	Winner   *models.Bid
	BidCount int
	Closed   bool
}

// Create inserts a pending auction for a listing.
func (m *Manager) Create(ctx context.Context, listingID, startPrice int64) (*models.Auction, error) {
	if startPrice <= 0 {
		return nil, fmt.Errorf("start price %d: %w", startPrice, ErrInvalidAmount)
	}

	auction := &models.Auction{
		ListingID:    listingID,
		StartPrice:   startPrice,
		CurrentPrice: startPrice,
		Status:       models.AuctionStatusPending,
		CreatedAt:    m.clock.Now(),
	}
	if err := m.repo.Create(ctx, auction); err != nil {
		if repositories.IsConflict(err) {
			return nil, fmt.Errorf("listing %d already has an auction: %w", listingID, ErrInvalidState)
		}
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	slog.Info("Auction created",
		slog.String("type", "sys"),
		slog.Int64("auction_id", auction.ID),
		slog.Int64("listing_id", listingID),
		slog.Int64("start_price", startPrice))
	return auction, nil
}

// Activate starts the countdown. It is accepted once; a repeated call fails
// with ErrInvalidState and leaves the running countdown untouched.
func (m *Manager) Activate(ctx context.Context, auctionID int64, announcementID string) (*models.Auction, error) {
	var snap Snapshot
	err := m.repo.WithAuctionLock(ctx, auctionID, func(ctx context.Context, tx repositories.AuctionTx) error {
		a := tx.Auction()
		if a.Status != models.AuctionStatusPending {
			return stateError(a, "activate", models.AuctionStatusPending)
		}

		now := m.clock.Now()
		a.Status = models.AuctionStatusActive
		a.StartedAt = now
		a.Deadline = now.Add(m.cfg.Duration)
		a.AnnouncementID = announcementID
		a.UpdatedAt = now
		if err := tx.SaveAuction(ctx); err != nil {
			return err
		}

		snap = Snapshot{Auction: *a}
		return nil
	})
	if err != nil {
		return nil, translate(auctionID, err)
	}

	slog.Info("Auction activated",
		slog.String("type", "sys"),
		slog.Int64("auction_id", auctionID),
		slog.Time("deadline", snap.Auction.Deadline))

	m.announce(ctx, "opened", auctionID, models.AuctionStatusActive, m.gateway.AuctionOpened)
	m.publish(ctx, events.AuctionOpened, snap)

	a := snap.Auction
	return &a, nil
}

// PlaceBid validates and applies a bid. A bidder holds one standing bid per
// auction; a higher bid from the same bidder raises it in place. Every
// accepted bid moves the deadline to now + Duration.
func (m *Manager) PlaceBid(ctx context.Context, auctionID int64, bidderID string, amount int64) (*PlacedBid, error) {
	var result PlacedBid
	err := m.repo.WithAuctionLock(ctx, auctionID, func(ctx context.Context, tx repositories.AuctionTx) error {
		a := tx.Auction()
		if a.Status != models.AuctionStatusActive {
			return stateError(a, "bid on", models.AuctionStatusActive)
		}
		if amount <= a.CurrentPrice {
			return &StaleBidError{AuctionID: a.ID, Amount: amount, CurrentPrice: a.CurrentPrice}
		}

		existing, err := tx.GetBidderBid(ctx, bidderID)
		if err != nil {
			return err
		}

		now := m.clock.Now()
		bid := existing
		if existing != nil {
			if amount <= existing.Amount {
				return &StaleBidError{
					AuctionID:    a.ID,
					Amount:       amount,
					CurrentPrice: a.CurrentPrice,
					OwnBid:       existing.Amount,
				}
			}
			result.PrevAmount = existing.Amount
			bid.Amount = amount
			bid.UpdatedAt = now
			if err := tx.UpdateBidAmount(ctx, bid); err != nil {
				return err
			}
		} else {
			bid = &models.Bid{
				AuctionID: a.ID,
				BidderID:  bidderID,
				Amount:    amount,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.InsertBid(ctx, bid); err != nil {
				return err
			}
		}

		err = tx.AppendRaise(ctx, &models.BidRaise{
			AuctionID:  a.ID,
			BidID:      bid.ID,
			BidderID:   bidderID,
			Amount:     amount,
			PrevAmount: result.PrevAmount,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}

		a.CurrentPrice = amount
		a.Deadline = now.Add(m.cfg.Duration)
		a.UpdatedAt = now
		if err := tx.SaveAuction(ctx); err != nil {
			return err
		}

		count, err := tx.CountBids(ctx)
		if err != nil {
			return err
		}

		auction := *a
		result.Bid = bid
		result.Auction = &auction
		result.BidCount = count
		return nil
	})
	if err != nil {
		return nil, translate(auctionID, err)
	}

	slog.Info("Bid accepted",
		slog.String("type", "sys"),
		slog.Int64("auction_id", auctionID),
		slog.String("bidder_id", bidderID),
		slog.Int64("amount", amount),
		slog.Time("deadline", result.Auction.Deadline))

	snap := Snapshot{Auction: *result.Auction, BidCount: result.BidCount, Leading: result.Bid}
	m.announce(ctx, "changed", auctionID, models.AuctionStatusActive, m.gateway.AuctionChanged)
	m.publishBid(ctx, snap)

	return &result, nil
}

// Close finishes an active auction and picks the winner: highest amount,
// earliest first bid on ties. Closing a finished auction is a no-op that
// reports Closed=false. Close does not notify; see Scheduler.
func (m *Manager) Close(ctx context.Context, auctionID int64) (*CloseResult, error) {
	return m.close(ctx, auctionID, false)
}

// closeExpired is Close that skips auctions whose deadline moved into the
// future after the sweep listed them.
func (m *Manager) closeExpired(ctx context.Context, auctionID int64) (*CloseResult, error) {
	return m.close(ctx, auctionID, true)
}

func (m *Manager) close(ctx context.Context, auctionID int64, onlyExpired bool) (*CloseResult, error) {
	var result CloseResult
	err := m.repo.WithAuctionLock(ctx, auctionID, func(ctx context.Context, tx repositories.AuctionTx) error {
		a := tx.Auction()
		now := m.clock.Now()

		switch a.Status {
		case models.AuctionStatusFinished:
		case models.AuctionStatusActive:
			if onlyExpired && a.Deadline.After(now) {
				auction := *a
				result.Auction = &auction
				return nil
			}
		default:
			return stateError(a, "close", models.AuctionStatusActive)
		}

		leading, err := tx.GetLeadingBid(ctx)
		if err != nil {
			return err
		}
		count, err := tx.CountBids(ctx)
		if err != nil {
			return err
		}
		result.BidCount = count

		if a.Status == models.AuctionStatusFinished {
			if a.HasWinner() {
				result.Winner = leading
			}
			auction := *a
			result.Auction = &auction
			return nil
		}

		if leading != nil {
			if err := tx.MarkWinning(ctx, leading.ID); err != nil {
				return err
			}
			leading.Winning = true
			a.WinnerID = leading.BidderID
			result.Winner = leading
		}

		a.Status = models.AuctionStatusFinished
		a.FinishedAt = now
		a.UpdatedAt = now
		if err := tx.SaveAuction(ctx); err != nil {
			return err
		}

		auction := *a
		result.Auction = &auction
		result.Closed = true
		return nil
	})
	if err != nil {
		return nil, translate(auctionID, err)
	}

	if result.Closed {
		slog.Info("Auction finished",
			slog.String("type", "sys"),
			slog.Int64("auction_id", auctionID),
			slog.String("winner_id", result.Auction.WinnerID),
			slog.Int64("final_price", result.Auction.CurrentPrice),
			slog.Int("bids", result.BidCount))
	}
	return &result, nil
}

// Cancel moves a pending or active auction to cancelled. Cancelling an
// already cancelled auction is a no-op; a finished auction cannot be cancelled.
func (m *Manager) Cancel(ctx context.Context, auctionID int64) (*models.Auction, error) {
	var (
		snap      Snapshot
		cancelled bool
	)
	err := m.repo.WithAuctionLock(ctx, auctionID, func(ctx context.Context, tx repositories.AuctionTx) error {
		a := tx.Auction()
		if a.Status == models.AuctionStatusCancelled {
			snap = Snapshot{Auction: *a}
			return nil
		}
		if a.Status.Terminal() {
			return stateError(a, "cancel", models.AuctionStatusPending, models.AuctionStatusActive)
		}

		now := m.clock.Now()
		a.Status = models.AuctionStatusCancelled
		a.FinishedAt = now
		a.UpdatedAt = now
		if err := tx.SaveAuction(ctx); err != nil {
			return err
		}

		count, err := tx.CountBids(ctx)
		if err != nil {
			return err
		}
		snap = Snapshot{Auction: *a, BidCount: count}
		cancelled = true
		return nil
	})
	if err != nil {
		return nil, translate(auctionID, err)
	}

	if cancelled {
		slog.Info("Auction cancelled",
			slog.String("type", "sys"),
			slog.Int64("auction_id", auctionID))

		if snap.Auction.AnnouncementID != "" {
			m.announce(ctx, "cancelled", auctionID, models.AuctionStatusCancelled, m.gateway.AuctionCancelled)
		}
		m.publish(ctx, events.AuctionCancelled, snap)
	}

	a := snap.Auction
	return &a, nil
}

// Get returns the current state of one auction.
func (m *Manager) Get(ctx context.Context, auctionID int64) (*Snapshot, error) {
	a, err := m.repo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, translate(auctionID, err)
	}
	return m.snapshot(ctx, a)
}

func (m *Manager) GetByListing(ctx context.Context, listingID int64) (*models.Auction, error) {
	a, err := m.repo.GetByListingID(ctx, listingID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, fmt.Errorf("listing %d: %w", listingID, ErrNotFound)
		}
		return nil, err
	}
	return a, nil
}

// BidHistory lists every accepted bid on the auction, newest first.
func (m *Manager) BidHistory(ctx context.Context, auctionID int64) ([]*models.BidRaise, error) {
	if _, err := m.repo.GetByID(ctx, auctionID); err != nil {
		return nil, translate(auctionID, err)
	}
	raises, err := m.repo.GetBidHistory(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bid history: %w", err)
	}
	return raises, nil
}

func (m *Manager) snapshot(ctx context.Context, a *models.Auction) (*Snapshot, error) {
	bids, err := m.repo.GetAuctionBids(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}

	snap := &Snapshot{Auction: *a, BidCount: len(bids)}
	if len(bids) > 0 {
		snap.Leading = bids[0]
	}
	return snap, nil
}

// notify runs one gateway call under NotifyTimeout and logs its failure.
func (m *Manager) notify(ctx context.Context, what string, auctionID int64, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.NotifyTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		notifyFailed(what, auctionID, err)
	}
}

// announce edits the public announcement of one auction. Edits of the same
// auction run one at a time, and each renders the state read after taking
// the slot, so the last edit shows the last committed state. When the auction
// is no longer in status want, the edit is dropped: the transition that moved
// it sends its own. announce reports whether an edit was delivered.
func (m *Manager) announce(ctx context.Context, what string, auctionID int64, want models.AuctionStatus,
	edit func(ctx context.Context, snap Snapshot) error) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.NotifyTimeout)
	defer cancel()

	slot, _ := m.edits.LoadOrStore(auctionID, make(chan struct{}, 1))
	select {
	case slot.(chan struct{}) <- struct{}{}:
	case <-ctx.Done():
		notifyFailed(what, auctionID, ctx.Err())
		return false
	}
	defer func() { <-slot.(chan struct{}) }()

	a, err := m.repo.GetByID(ctx, auctionID)
	if err != nil {
		notifyFailed(what, auctionID, err)
		return false
	}
	if a.Status != want {
		slog.Debug("Dropping announcement edit for moved auction",
			slog.String("type", "sys"),
			slog.String("notification", what),
			slog.Int64("auction_id", auctionID),
			slog.String("status", string(a.Status)))
		return false
	}
	snap, err := m.snapshot(ctx, a)
	if err != nil {
		notifyFailed(what, auctionID, err)
		return false
	}

	if err = edit(ctx, *snap); err != nil {
		notifyFailed(what, auctionID, err)
		return false
	}
	return true
}

func notifyFailed(what string, auctionID int64, err error) {
	slog.Error("Auction notification failed",
		slog.String("type", "sys"),
		slog.String("notification", what),
		slog.Int64("auction_id", auctionID),
		slog.String("error", err.Error()))
}

func (m *Manager) publish(ctx context.Context, t events.Type, snap Snapshot) {
	e := events.NewEvent(t, snap.Auction.ID)
	e.ListingID = snap.Auction.ListingID
	e.Status = string(snap.Auction.Status)
	e.CurrentPrice = snap.Auction.CurrentPrice
	e.Deadline = snap.Auction.Deadline
	e.WinnerID = snap.Auction.WinnerID
	e.BidCount = snap.BidCount
	m.sendEvent(ctx, e)
}

func (m *Manager) publishBid(ctx context.Context, snap Snapshot) {
	e := events.NewEvent(events.AuctionChanged, snap.Auction.ID)
	e.ListingID = snap.Auction.ListingID
	e.Status = string(snap.Auction.Status)
	e.CurrentPrice = snap.Auction.CurrentPrice
	e.Deadline = snap.Auction.Deadline
	e.BidCount = snap.BidCount
	if snap.Leading != nil {
		e.BidderID = snap.Leading.BidderID
	}
	m.sendEvent(ctx, e)
}

func (m *Manager) sendEvent(ctx context.Context, e *events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.NotifyTimeout)
	defer cancel()

	if err := m.publisher.Publish(ctx, e); err != nil {
		slog.Error("Failed to publish auction event",
			slog.String("type", "sys"),
			slog.String("event", string(e.Type)),
			slog.Int64("auction_id", e.AuctionID),
			slog.String("error", err.Error()))
	}
}
