package auction

import (
	"errors"
	"fmt"
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/repositories"
)

func TestStateError(t *testing.T) {
	err := stateError(&models.Auction{ID: 3, Status: models.AuctionStatusFinished}, "cancel",
		models.AuctionStatusPending, models.AuctionStatusActive)

	check.True(t, errors.Is(err, ErrInvalidState))
	check.False(t, errors.Is(err, ErrStaleBid))
	check.Equal(t, "cannot cancel auction 3: status is finished, want pending or active", err.Error())
}

func TestStaleBidError(t *testing.T) {
	var err error = &StaleBidError{AuctionID: 1, Amount: 120, CurrentPrice: 150}
	check.True(t, errors.Is(fmt.Errorf("wrapped: %w", err), ErrStaleBid))
	check.Equal(t, "bid 120 on auction 1 must exceed current price 150", err.Error())

	err = &StaleBidError{AuctionID: 1, Amount: 140, CurrentPrice: 150, OwnBid: 140}
	check.Equal(t, "bid 140 on auction 1 must exceed your bid of 140 (current price 150)", err.Error())
}

func TestTranslate(t *testing.T) {
	check.True(t, translate(1, nil) == nil)

	err := translate(9, &repositories.NotFoundError{Entity: "auction", ID: int64(9)})
	check.True(t, errors.Is(err, ErrNotFound))

	err = translate(9, &repositories.NotFoundError{Entity: "bid", ID: int64(2)})
	check.False(t, errors.Is(err, ErrNotFound))

	state := &StateError{AuctionID: 9, Status: models.AuctionStatusPending}
	check.True(t, translate(9, state) == error(state))
}
