package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AuctionStatus string

const (
	AuctionStatusPending   AuctionStatus = "pending"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusFinished  AuctionStatus = "finished"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionStatusFinished || s == AuctionStatusCancelled
}

type Auction struct {
	bun.BaseModel `bun:"table:auctions,alias:a"`

	ID           int64         `bun:"id,pk,autoincrement"`
	ListingID    int64         `bun:"listing_id,notnull,unique"`
	StartPrice   int64         `bun:"start_price,notnull"`
	CurrentPrice int64         `bun:"current_price,notnull"`
	Status       AuctionStatus `bun:"status,notnull"`
	StartedAt    time.Time     `bun:"started_at,nullzero"`
	Deadline     time.Time     `bun:"deadline,nullzero"`
	FinishedAt   time.Time     `bun:"finished_at,nullzero"`
	WinnerID     string        `bun:"winner_id,nullzero"`

	// Channel message carrying the public announcement.
	AnnouncementID string `bun:"announcement_id,nullzero"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (a *Auction) HasWinner() bool {
	return a.WinnerID != ""
}

// Bid is the single logical standing bid of one bidder on one auction.
// A raise by the same bidder updates Amount in place; CreatedAt keeps the
// time of the first accepted bid and is used for tie-breaks.
type Bid struct {
	bun.BaseModel `bun:"table:bids,alias:b"`

	ID        int64     `bun:"id,pk,autoincrement"`
	AuctionID int64     `bun:"auction_id,notnull,unique:bids_auction_bidder"`
	BidderID  string    `bun:"bidder_id,notnull,unique:bids_auction_bidder"`
	Amount    int64     `bun:"amount,notnull"`
	Winning   bool      `bun:"winning,notnull,default:false"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// BidRaise is an append-only record of every accepted bid, used for history display.
type BidRaise struct {
	bun.BaseModel `bun:"table:bid_raises,alias:br"`

	ID         int64     `bun:"id,pk,autoincrement"`
	AuctionID  int64     `bun:"auction_id,notnull"`
	BidID      int64     `bun:"bid_id,notnull"`
	BidderID   string    `bun:"bidder_id,notnull"`
	Amount     int64     `bun:"amount,notnull"`
	PrevAmount int64     `bun:"prev_amount,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}
