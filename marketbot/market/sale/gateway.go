package sale

import (
	"context"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
)

// Snapshot is a committed sale together with its listing.
type Snapshot struct {
	Sale    models.Sale
	Listing models.Listing
}

// Gateway renders sales to Discord. Errors are logged by the Service and
// never undo a transition.
type Gateway interface {
	// SaleClosed rewrites the announcement of a sold or cancelled sale.
	SaleClosed(ctx context.Context, snap Snapshot) error
	// ExchangeSaleContacts DMs the buyer the seller's contact and tells the
	// seller who is interested. Called once per buyer.
	ExchangeSaleContacts(ctx context.Context, snap Snapshot, buyerID string) error
}

type NopGateway struct{}

func (NopGateway) SaleClosed(context.Context, Snapshot) error                   { return nil }
func (NopGateway) ExchangeSaleContacts(context.Context, Snapshot, string) error { return nil }
