package auction

import (
	"context"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
)

// Snapshot is the state handed to the Gateway after a committed change.
type Snapshot struct {
	Auction  models.Auction
	BidCount int
	// Leading is the highest bid, or the winning bid once finished. Nil when
	// nobody has bid.
	Leading *models.Bid
}

// Gateway renders auction state to the outside world. Every call is best
// effort: errors are logged by the caller and never undo a transition.
type Gateway interface {
	// AuctionOpened fires once after activation.
	AuctionOpened(ctx context.Context, snap Snapshot) error
	// AuctionChanged fires after each accepted bid and on periodic refresh.
	AuctionChanged(ctx context.Context, snap Snapshot) error
	// AuctionFinished fires exactly once per close.
	AuctionFinished(ctx context.Context, snap Snapshot) error
	// ExchangeContacts introduces winner and seller. Only called when there is a winner.
	ExchangeContacts(ctx context.Context, snap Snapshot) error
	AuctionCancelled(ctx context.Context, snap Snapshot) error
}

// NopGateway discards every notification.
type NopGateway struct{}

func (NopGateway) AuctionOpened(context.Context, Snapshot) error    { return nil }
func (NopGateway) AuctionChanged(context.Context, Snapshot) error   { return nil }
func (NopGateway) AuctionFinished(context.Context, Snapshot) error  { return nil }
func (NopGateway) ExchangeContacts(context.Context, Snapshot) error { return nil }
func (NopGateway) AuctionCancelled(context.Context, Snapshot) error { return nil }
