package auction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/repositories"
)

var (
	ErrNotFound      = errors.New("auction not found")
	ErrInvalidState  = errors.New("invalid auction state")
	ErrStaleBid      = errors.New("bid too low")
	ErrInvalidAmount = errors.New("amount must be positive")
)

// StateError reports an operation attempted in the wrong lifecycle state.
type StateError struct {
	AuctionID int64
	Op        string
	Status    models.AuctionStatus
	Want      []models.AuctionStatus
}

func (e *StateError) Error() string {
	want := make([]string, len(e.Want))
	for i, s := range e.Want {
		want[i] = string(s)
	}
	return fmt.Sprintf("cannot %s auction %d: status is %s, want %s",
		e.Op, e.AuctionID, e.Status, strings.Join(want, " or "))
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// StaleBidError is returned when a bid does not beat the current price or the
// bidder's own standing bid. CurrentPrice is always set so callers can show it.
type StaleBidError struct {
	AuctionID    int64
	Amount       int64
	CurrentPrice int64
	// OwnBid is the bidder's standing amount, zero if they have not bid yet.
	OwnBid int64
}

func (e *StaleBidError) Error() string {
	if e.OwnBid > 0 && e.Amount <= e.OwnBid {
		return fmt.Sprintf("bid %d on auction %d must exceed your bid of %d (current price %d)",
			e.Amount, e.AuctionID, e.OwnBid, e.CurrentPrice)
	}
	return fmt.Sprintf("bid %d on auction %d must exceed current price %d",
		e.Amount, e.AuctionID, e.CurrentPrice)
}

func (e *StaleBidError) Is(target error) bool {
	return target == ErrStaleBid
}

func stateError(a *models.Auction, op string, want ...models.AuctionStatus) error {
	return &StateError{AuctionID: a.ID, Op: op, Status: a.Status, Want: want}
}

// translate maps repository errors onto the auction taxonomy.
func translate(auctionID int64, err error) error {
	if err == nil {
		return nil
	}
	var nfe *repositories.NotFoundError
	if errors.As(err, &nfe) && nfe.Entity == "auction" {
		return fmt.Errorf("auction %d: %w", auctionID, ErrNotFound)
	}
	return err
}
