package models

import (
	"time"

	"github.com/uptrace/bun"
)

type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusActive    SaleStatus = "active"
	SaleStatusSold      SaleStatus = "sold"
	SaleStatusCancelled SaleStatus = "cancelled"
)

// Sale is a fixed-price offer for a listing, the counterpart of Auction.
type Sale struct {
	bun.BaseModel `bun:"table:sales,alias:s"`

	ID             int64      `bun:"id,pk,autoincrement"`
	ListingID      int64      `bun:"listing_id,notnull,unique"`
	Price          int64      `bun:"price,notnull"`
	Status         SaleStatus `bun:"status,notnull"`
	BuyerID        string     `bun:"buyer_id,nullzero"`
	AnnouncementID string     `bun:"announcement_id,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	SoldAt         time.Time  `bun:"sold_at,nullzero"`
}

// SaleInterest records one buyer pressing "Buy" on one sale. The
// (sale_id, buyer_id) pair is unique so contacts are exchanged once.
type SaleInterest struct {
	bun.BaseModel `bun:"table:sale_interests,alias:si"`

	ID        int64     `bun:"id,pk,autoincrement"`
	SaleID    int64     `bun:"sale_id,notnull,unique:sale_interests_sale_buyer"`
	BuyerID   string    `bun:"buyer_id,notnull,unique:sale_interests_sale_buyer"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
