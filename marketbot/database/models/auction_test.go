package models

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestAuctionStatusTerminal(t *testing.T) {
	check.False(t, AuctionStatusPending.Terminal())
	check.False(t, AuctionStatusActive.Terminal())
	check.True(t, AuctionStatusFinished.Terminal())
	check.True(t, AuctionStatusCancelled.Terminal())
}
