package commands

import (
	"errors"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ellavondegurechaff/marketbot/marketbot/config"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/auction"
	"github.com/ellavondegurechaff/marketbot/marketbot/utils"
)

func errorEmbed(description string) discord.Embed {
	return discord.Embed{
		Title:       "❌ Error",
		Description: description,
		Color:       config.ErrorColor,
	}
}

func successEmbed(title, description string) discord.Embed {
	return discord.Embed{
		Title:       title,
		Description: description,
		Color:       config.SuccessColor,
	}
}

func replyError(e *handler.CommandEvent, description string) error {
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{errorEmbed(description)},
		Flags:  discord.MessageFlagEphemeral,
	})
}

func updateWith(embed discord.Embed) discord.MessageUpdate {
	embeds := []discord.Embed{embed}
	return discord.MessageUpdate{Embeds: &embeds}
}

// bidErrorMessage turns a PlaceBid failure into the text shown to the bidder.
// Stale bids always carry the current price.
func bidErrorMessage(err error, currency string) string {
	var stale *auction.StaleBidError
	switch {
	case errors.As(err, &stale):
		if stale.OwnBid > 0 && stale.Amount <= stale.OwnBid {
			return fmt.Sprintf("You already bid %s. A raise must be higher than that. Current price: %s.",
				utils.FormatPrice(stale.OwnBid, currency), utils.FormatPrice(stale.CurrentPrice, currency))
		}
		return fmt.Sprintf("Your bid of %s is not above the current price of %s.",
			utils.FormatPrice(stale.Amount, currency), utils.FormatPrice(stale.CurrentPrice, currency))
	case errors.Is(err, auction.ErrInvalidAmount):
		return "The bid amount must be a positive number."
	case errors.Is(err, auction.ErrNotFound):
		return "Auction not found."
	case errors.Is(err, auction.ErrInvalidState):
		return "This auction is not accepting bids."
	default:
		return "Failed to place your bid, please try again."
	}
}
