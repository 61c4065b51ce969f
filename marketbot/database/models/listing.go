package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ListingKind string

const (
	ListingKindAuction    ListingKind = "auction"
	ListingKindFixedPrice ListingKind = "fixed_price"
)

// Listing is the item being sold. Auctions reference it one-to-one.
type Listing struct {
	bun.BaseModel `bun:"table:listings,alias:l"`

	ID          int64       `bun:"id,pk,autoincrement"`
	SellerID    string      `bun:"seller_id,notnull"`
	Title       string      `bun:"title,notnull"`
	Description string      `bun:"description"`
	ContactInfo string      `bun:"contact_info"`
	Kind        ListingKind `bun:"kind,notnull"`
	CreatedAt   time.Time   `bun:"created_at,notnull,default:current_timestamp"`
}
