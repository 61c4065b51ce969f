package repositories

import (
	"context"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
)

// MemoryStore keeps listings, auctions and sales in process memory. It backs
// local runs with `in_memory = true` and the test suites. Per-auction
// serialization uses one single-slot channel per auction id, so waiting for
// the lock honours context cancellation.
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[int64]*models.Auction
	listings map[int64]*models.Listing
	bids     map[int64][]*models.Bid
	raises   map[int64][]*models.BidRaise
	sales    map[int64]*models.Sale
	// sale id -> buyer id
	interests map[int64]map[string]*models.SaleInterest

	locks sync.Map

	auctionSeq  atomic.Int64
	listingSeq  atomic.Int64
	bidSeq      atomic.Int64
	raiseSeq    atomic.Int64
	saleSeq     atomic.Int64
	interestSeq atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions:  make(map[int64]*models.Auction),
		listings:  make(map[int64]*models.Listing),
		bids:      make(map[int64][]*models.Bid),
		raises:    make(map[int64][]*models.BidRaise),
		sales:     make(map[int64]*models.Sale),
		interests: make(map[int64]map[string]*models.SaleInterest),
	}
}

func (s *MemoryStore) Auctions() AuctionRepository {
	return (*memoryAuctionRepository)(s)
}

func (s *MemoryStore) Listings() ListingRepository {
	return (*memoryListingRepository)(s)
}

func (s *MemoryStore) Sales() SaleRepository {
	return (*memorySaleRepository)(s)
}

func (s *MemoryStore) lockFor(auctionID int64) chan struct{} {
	lock, _ := s.locks.LoadOrStore(auctionID, make(chan struct{}, 1))
	return lock.(chan struct{})
}

type memoryAuctionRepository MemoryStore

func (r *memoryAuctionRepository) store() *MemoryStore {
	return (*MemoryStore)(r)
}

func (r *memoryAuctionRepository) Create(_ context.Context, auction *models.Auction) error {
	s := r.store()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.auctions {
		if existing.ListingID == auction.ListingID {
			return &ConflictError{Entity: "auction", Field: "listing_id", Value: auction.ListingID}
		}
	}

	auction.ID = s.auctionSeq.Add(1)
	if auction.CreatedAt.IsZero() {
		auction.CreatedAt = time.Now()
	}
	auction.UpdatedAt = auction.CreatedAt
	s.auctions[auction.ID] = cloneAuction(auction)
	return nil
}

func (r *memoryAuctionRepository) GetByID(_ context.Context, id int64) (*models.Auction, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[id]
	if !ok {
		return nil, &NotFoundError{Entity: "auction", ID: id}
	}
	return cloneAuction(auction), nil
}

func (r *memoryAuctionRepository) GetByListingID(_ context.Context, listingID int64) (*models.Auction, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, auction := range s.auctions {
		if auction.ListingID == listingID {
			return cloneAuction(auction), nil
		}
	}
	return nil, &NotFoundError{Entity: "auction", ID: listingID}
}

func (r *memoryAuctionRepository) GetActive(_ context.Context) ([]*models.Auction, error) {
	return r.filter(func(a *models.Auction) bool {
		return a.Status == models.AuctionStatusActive
	}), nil
}

func (r *memoryAuctionRepository) GetExpired(_ context.Context, now time.Time) ([]*models.Auction, error) {
	return r.filter(func(a *models.Auction) bool {
		return a.Status == models.AuctionStatusActive && !a.Deadline.After(now)
	}), nil
}

func (r *memoryAuctionRepository) filter(keep func(*models.Auction) bool) []*models.Auction {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Auction
	for _, auction := range s.auctions {
		if keep(auction) {
			out = append(out, cloneAuction(auction))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memoryAuctionRepository) GetAuctionBids(_ context.Context, auctionID int64) ([]*models.Bid, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := cloneBids(s.bids[auctionID])
	sortBids(bids)
	return bids, nil
}

func (r *memoryAuctionRepository) GetBidHistory(_ context.Context, auctionID int64) ([]*models.BidRaise, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.raises[auctionID]
	out := make([]*models.BidRaise, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		raise := *src[i]
		out = append(out, &raise)
	}
	return out, nil
}

func (r *memoryAuctionRepository) CountBids(_ context.Context, auctionID int64) (int, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.bids[auctionID]), nil
}

func (r *memoryAuctionRepository) WithAuctionLock(ctx context.Context, auctionID int64, fn func(ctx context.Context, tx AuctionTx) error) error {
	s := r.store()
	lock := s.lockFor(auctionID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock }()

	s.mu.RLock()
	auction, ok := s.auctions[auctionID]
	var tx *memoryAuctionTx
	if ok {
		tx = &memoryAuctionTx{
			store:   s,
			auction: cloneAuction(auction),
			bids:    cloneBids(s.bids[auctionID]),
		}
	}
	s.mu.RUnlock()

	if !ok {
		return &NotFoundError{Entity: "auction", ID: auctionID}
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.saved {
		s.auctions[auctionID] = cloneAuction(tx.auction)
	}
	s.bids[auctionID] = tx.bids
	s.raises[auctionID] = append(s.raises[auctionID], tx.raises...)
	return nil
}

// memoryAuctionTx stages changes on private copies; WithAuctionLock publishes
// them only when the callback succeeds.
type memoryAuctionTx struct {
	store   *MemoryStore
	auction *models.Auction
	bids    []*models.Bid
	raises  []*models.BidRaise
	saved   bool
}

func (t *memoryAuctionTx) Auction() *models.Auction {
	return t.auction
}

func (t *memoryAuctionTx) GetBidderBid(_ context.Context, bidderID string) (*models.Bid, error) {
	var best *models.Bid
	for _, bid := range t.bids {
		if bid.BidderID == bidderID && (best == nil || bid.Amount > best.Amount) {
			best = bid
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (t *memoryAuctionTx) GetLeadingBid(_ context.Context) (*models.Bid, error) {
	if len(t.bids) == 0 {
		return nil, nil
	}
	sorted := cloneBids(t.bids)
	sortBids(sorted)
	return sorted[0], nil
}

func (t *memoryAuctionTx) CountBids(_ context.Context) (int, error) {
	return len(t.bids), nil
}

func (t *memoryAuctionTx) InsertBid(_ context.Context, bid *models.Bid) error {
	for _, existing := range t.bids {
		if existing.BidderID == bid.BidderID {
			return &ConflictError{Entity: "bid", Field: "bidder_id", Value: bid.BidderID}
		}
	}
	bid.ID = t.store.bidSeq.Add(1)
	stored := *bid
	t.bids = append(t.bids, &stored)
	return nil
}

func (t *memoryAuctionTx) UpdateBidAmount(_ context.Context, bid *models.Bid) error {
	for _, existing := range t.bids {
		if existing.ID == bid.ID {
			existing.Amount = bid.Amount
			existing.UpdatedAt = bid.UpdatedAt
			return nil
		}
	}
	return &NotFoundError{Entity: "bid", ID: bid.ID}
}

func (t *memoryAuctionTx) MarkWinning(_ context.Context, bidID int64) error {
	for _, existing := range t.bids {
		if existing.ID == bidID {
			existing.Winning = true
			return nil
		}
	}
	return &NotFoundError{Entity: "bid", ID: bidID}
}

func (t *memoryAuctionTx) AppendRaise(_ context.Context, raise *models.BidRaise) error {
	raise.ID = t.store.raiseSeq.Add(1)
	stored := *raise
	t.raises = append(t.raises, &stored)
	return nil
}

func (t *memoryAuctionTx) SaveAuction(_ context.Context) error {
	t.saved = true
	return nil
}

type memoryListingRepository MemoryStore

func (r *memoryListingRepository) Create(_ context.Context, listing *models.Listing) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	listing.ID = s.listingSeq.Add(1)
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = time.Now()
	}
	stored := *listing
	s.listings[listing.ID] = &stored
	return nil
}

func (r *memoryListingRepository) GetByID(_ context.Context, id int64) (*models.Listing, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	listing, ok := s.listings[id]
	if !ok {
		return nil, &NotFoundError{Entity: "listing", ID: id}
	}
	out := *listing
	return &out, nil
}

type memorySaleRepository MemoryStore

func (r *memorySaleRepository) Create(_ context.Context, sale *models.Sale) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sales {
		if existing.ListingID == sale.ListingID {
			return &ConflictError{Entity: "sale", Field: "listing_id", Value: sale.ListingID}
		}
	}

	sale.ID = s.saleSeq.Add(1)
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now()
	}
	stored := *sale
	s.sales[sale.ID] = &stored
	return nil
}

func (r *memorySaleRepository) GetByID(_ context.Context, id int64) (*models.Sale, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, &NotFoundError{Entity: "sale", ID: id}
	}
	out := *sale
	return &out, nil
}

func (r *memorySaleRepository) GetByListingID(_ context.Context, listingID int64) (*models.Sale, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sale := range s.sales {
		if sale.ListingID == listingID {
			out := *sale
			return &out, nil
		}
	}
	return nil, &NotFoundError{Entity: "sale", ID: listingID}
}

func (r *memorySaleRepository) Transition(_ context.Context, sale *models.Sale, from ...models.SaleStatus) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sales[sale.ID]
	if !ok || !slices.Contains(from, stored.Status) {
		return &NotFoundError{Entity: "sale", ID: sale.ID}
	}
	stored.Status = sale.Status
	stored.BuyerID = sale.BuyerID
	stored.AnnouncementID = sale.AnnouncementID
	stored.SoldAt = sale.SoldAt
	return nil
}

func (r *memorySaleRepository) AddInterest(_ context.Context, interest *models.SaleInterest) error {
	s := (*MemoryStore)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sales[interest.SaleID]; !ok {
		return &NotFoundError{Entity: "sale", ID: interest.SaleID}
	}
	buyers := s.interests[interest.SaleID]
	if buyers == nil {
		buyers = make(map[string]*models.SaleInterest)
		s.interests[interest.SaleID] = buyers
	}
	if _, ok := buyers[interest.BuyerID]; ok {
		return &ConflictError{Entity: "sale_interest", Field: "sale_interests_sale_buyer", Value: interest.BuyerID}
	}

	interest.ID = s.interestSeq.Add(1)
	if interest.CreatedAt.IsZero() {
		interest.CreatedAt = time.Now()
	}
	stored := *interest
	buyers[interest.BuyerID] = &stored
	return nil
}

func (r *memorySaleRepository) CountInterests(_ context.Context, saleID int64) (int, error) {
	s := (*MemoryStore)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.interests[saleID]), nil
}

func cloneAuction(a *models.Auction) *models.Auction {
	out := *a
	return &out
}

func cloneBids(src []*models.Bid) []*models.Bid {
	out := make([]*models.Bid, 0, len(src))
	for _, bid := range src {
		b := *bid
		out = append(out, &b)
	}
	return out
}

// sortBids orders by amount descending, then first acceptance, then id.
func sortBids(bids []*models.Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].Amount != bids[j].Amount {
			return bids[i].Amount > bids[j].Amount
		}
		if !bids[i].CreatedAt.Equal(bids[j].CreatedAt) {
			return bids[i].CreatedAt.Before(bids[j].CreatedAt)
		}
		return bids[i].ID < bids[j].ID
	})
}
