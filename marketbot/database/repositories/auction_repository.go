package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
)

// AuctionRepository is the single source of truth for auctions and bids.
// Every mutation of an auction goes through WithAuctionLock, which serializes
// callers per auction id.
type AuctionRepository interface {
	Create(ctx context.Context, auction *models.Auction) error
	GetByID(ctx context.Context, id int64) (*models.Auction, error)
	GetByListingID(ctx context.Context, listingID int64) (*models.Auction, error)
	GetActive(ctx context.Context) ([]*models.Auction, error)
	GetExpired(ctx context.Context, now time.Time) ([]*models.Auction, error)
	GetAuctionBids(ctx context.Context, auctionID int64) ([]*models.Bid, error)
	GetBidHistory(ctx context.Context, auctionID int64) ([]*models.BidRaise, error)
	CountBids(ctx context.Context, auctionID int64) (int, error)
	WithAuctionLock(ctx context.Context, auctionID int64, fn func(ctx context.Context, tx AuctionTx) error) error
}

// AuctionTx is a unit of work over one locked auction. Changes are committed
// only if the callback passed to WithAuctionLock returns nil.
type AuctionTx interface {
	// Auction returns the locked row; callers mutate it and call SaveAuction.
	Auction() *models.Auction
	// GetBidderBid returns the bidder's highest bid, or nil when there is none.
	GetBidderBid(ctx context.Context, bidderID string) (*models.Bid, error)
	// GetLeadingBid returns the highest bid, earliest first on equal amounts, or nil.
	GetLeadingBid(ctx context.Context) (*models.Bid, error)
	CountBids(ctx context.Context) (int, error)
	InsertBid(ctx context.Context, bid *models.Bid) error
	UpdateBidAmount(ctx context.Context, bid *models.Bid) error
	MarkWinning(ctx context.Context, bidID int64) error
	AppendRaise(ctx context.Context, raise *models.BidRaise) error
	SaveAuction(ctx context.Context) error
}

type auctionRepository struct {
	*BaseRepository
}

func NewAuctionRepository(db *bun.DB) AuctionRepository {
	return &auctionRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *auctionRepository) Create(ctx context.Context, auction *models.Auction) error {
	now := time.Now()
	if auction.CreatedAt.IsZero() {
		auction.CreatedAt = now
	}
	auction.UpdatedAt = auction.CreatedAt

	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(auction).Returning("id").Exec(ctx)
	if err != nil {
		return handleError("create", "auction", auction.ListingID, err)
	}
	return nil
}

func (r *auctionRepository) GetByID(ctx context.Context, id int64) (*models.Auction, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	auction := new(models.Auction)
	err := r.db.NewSelect().
		Model(auction).
		Where("a.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, handleError("get", "auction", id, err)
	}
	return auction, nil
}

func (r *auctionRepository) GetByListingID(ctx context.Context, listingID int64) (*models.Auction, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	auction := new(models.Auction)
	err := r.db.NewSelect().
		Model(auction).
		Where("a.listing_id = ?", listingID).
		Scan(ctx)
	if err != nil {
		return nil, handleError("get_by_listing", "auction", listingID, err)
	}
	return auction, nil
}

func (r *auctionRepository) GetActive(ctx context.Context) ([]*models.Auction, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var auctions []*models.Auction
	err := r.db.NewSelect().
		Model(&auctions).
		Where("a.status = ?", models.AuctionStatusActive).
		OrderExpr("a.deadline ASC").
		Scan(ctx)
	if err != nil {
		return nil, handleError("get_active", "auction", "active", err)
	}
	return auctions, nil
}

func (r *auctionRepository) GetExpired(ctx context.Context, now time.Time) ([]*models.Auction, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var auctions []*models.Auction
	err := expiredAuctionsQuery(r.db, &auctions, now).Scan(ctx)
	if err != nil {
		return nil, handleError("get_expired", "auction", "expired", err)
	}
	return auctions, nil
}

func (r *auctionRepository) GetAuctionBids(ctx context.Context, auctionID int64) ([]*models.Bid, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var bids []*models.Bid
	err := r.db.NewSelect().
		Model(&bids).
		Where("b.auction_id = ?", auctionID).
		OrderExpr(bidOrder).
		Scan(ctx)
	if err != nil {
		return nil, handleError("get_bids", "bid", auctionID, err)
	}
	return bids, nil
}

func (r *auctionRepository) GetBidHistory(ctx context.Context, auctionID int64) ([]*models.BidRaise, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var raises []*models.BidRaise
	err := r.db.NewSelect().
		Model(&raises).
		Where("br.auction_id = ?", auctionID).
		OrderExpr("br.created_at DESC, br.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, handleError("get_history", "bid_raise", auctionID, err)
	}
	return raises, nil
}

func (r *auctionRepository) CountBids(ctx context.Context, auctionID int64) (int, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	count, err := r.db.NewSelect().
		Model((*models.Bid)(nil)).
		Where("b.auction_id = ?", auctionID).
		Count(ctx)
	if err != nil {
		return 0, handleError("count_bids", "bid", auctionID, err)
	}
	return count, nil
}

// WithAuctionLock runs fn inside a transaction holding SELECT ... FOR UPDATE
// on the auction row, so concurrent bids, activation and close on the same
// auction are applied one at a time.
func (r *auctionRepository) WithAuctionLock(ctx context.Context, auctionID int64, fn func(ctx context.Context, tx AuctionTx) error) error {
	start := time.Now()
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		auction := new(models.Auction)
		err := lockAuctionQuery(tx, auction, auctionID).Scan(ctx)
		if err != nil {
			return handleError("lock", "auction", auctionID, err)
		}

		return fn(ctx, &bunAuctionTx{tx: tx, auction: auction})
	})

	slog.Debug("Auction lock released",
		slog.String("type", "db"),
		slog.Int64("auction_id", auctionID),
		slog.Duration("took", time.Since(start)),
		slog.Bool("committed", err == nil))
	return err
}

// bidOrder ranks bids by amount; equal amounts go to the earlier bid.
const bidOrder = "b.amount DESC, b.created_at ASC, b.id ASC"

func lockAuctionQuery(db bun.IDB, auction *models.Auction, auctionID int64) *bun.SelectQuery {
	return db.NewSelect().
		Model(auction).
		Where("a.id = ?", auctionID).
		For("UPDATE")
}

func leadingBidQuery(db bun.IDB, bid *models.Bid, auctionID int64) *bun.SelectQuery {
	return db.NewSelect().
		Model(bid).
		Where("b.auction_id = ?", auctionID).
		OrderExpr(bidOrder).
		Limit(1)
}

func expiredAuctionsQuery(db bun.IDB, auctions *[]*models.Auction, now time.Time) *bun.SelectQuery {
	return db.NewSelect().
		Model(auctions).
		Where("a.status = ?", models.AuctionStatusActive).
		Where("a.deadline <= ?", now).
		OrderExpr("a.deadline ASC")
}

type bunAuctionTx struct {
	tx      bun.Tx
	auction *models.Auction
}

func (t *bunAuctionTx) Auction() *models.Auction {
	return t.auction
}

func (t *bunAuctionTx) GetBidderBid(ctx context.Context, bidderID string) (*models.Bid, error) {
	bid := new(models.Bid)
	err := t.tx.NewSelect().
		Model(bid).
		Where("b.auction_id = ? AND b.bidder_id = ?", t.auction.ID, bidderID).
		OrderExpr("b.amount DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, handleError("get_bidder_bid", "bid", bidderID, err)
	}
	return bid, nil
}

func (t *bunAuctionTx) GetLeadingBid(ctx context.Context) (*models.Bid, error) {
	bid := new(models.Bid)
	err := leadingBidQuery(t.tx, bid, t.auction.ID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, handleError("get_leading_bid", "bid", t.auction.ID, err)
	}
	return bid, nil
}

func (t *bunAuctionTx) CountBids(ctx context.Context) (int, error) {
	count, err := t.tx.NewSelect().
		Model((*models.Bid)(nil)).
		Where("b.auction_id = ?", t.auction.ID).
		Count(ctx)
	if err != nil {
		return 0, handleError("count_bids", "bid", t.auction.ID, err)
	}
	return count, nil
}

func (t *bunAuctionTx) InsertBid(ctx context.Context, bid *models.Bid) error {
	_, err := t.tx.NewInsert().Model(bid).Returning("id").Exec(ctx)
	if err != nil {
		return handleError("insert", "bid", bid.BidderID, err)
	}
	return nil
}

func (t *bunAuctionTx) UpdateBidAmount(ctx context.Context, bid *models.Bid) error {
	res, err := t.tx.NewUpdate().
		Model((*models.Bid)(nil)).
		Set("amount = ?", bid.Amount).
		Set("updated_at = ?", bid.UpdatedAt).
		Where("id = ?", bid.ID).
		Exec(ctx)
	if err != nil {
		return handleError("update_amount", "bid", bid.ID, err)
	}
	return expectOneRow(res, "bid", bid.ID)
}

func (t *bunAuctionTx) MarkWinning(ctx context.Context, bidID int64) error {
	res, err := t.tx.NewUpdate().
		Model((*models.Bid)(nil)).
		Set("winning = TRUE").
		Where("id = ? AND auction_id = ?", bidID, t.auction.ID).
		Exec(ctx)
	if err != nil {
		return handleError("mark_winning", "bid", bidID, err)
	}
	return expectOneRow(res, "bid", bidID)
}

func (t *bunAuctionTx) AppendRaise(ctx context.Context, raise *models.BidRaise) error {
	_, err := t.tx.NewInsert().Model(raise).Returning("id").Exec(ctx)
	if err != nil {
		return handleError("insert", "bid_raise", raise.BidID, err)
	}
	return nil
}

func (t *bunAuctionTx) SaveAuction(ctx context.Context) error {
	res, err := t.tx.NewUpdate().
		Model(t.auction).
		Column("current_price", "status", "started_at", "deadline", "finished_at",
			"winner_id", "announcement_id", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return handleError("save", "auction", t.auction.ID, err)
	}
	return expectOneRow(res, "auction", t.auction.ID)
}

func expectOneRow(res sql.Result, entity string, id interface{}) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
