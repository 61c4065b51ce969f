package commands

import (
	"github.com/disgoorg/disgo/discord"
)

var Commands = []discord.ApplicationCommandCreate{
	SellCommand,
	AuctionCommand,
	SaleCommand,
	ModerationCommand,
}

func intPtr(i int) *int {
	return &i
}
