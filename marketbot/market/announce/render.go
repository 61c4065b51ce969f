package announce

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"

	"github.com/ellavondegurechaff/marketbot/marketbot/config"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/auction"
	"github.com/ellavondegurechaff/marketbot/marketbot/utils"
)

const bidButtonPrefix = "/auction-bid/"

// BidButtonID encodes a quick-bid button: "/auction-bid/<auction>/<amount>".
func BidButtonID(auctionID, amount int64) string {
	return fmt.Sprintf("%s%d/%d", bidButtonPrefix, auctionID, amount)
}

func ParseBidButtonID(customID string) (auctionID, amount int64, err error) {
	rest, ok := strings.CutPrefix(customID, bidButtonPrefix)
	if !ok {
		return 0, 0, fmt.Errorf("not a bid button: %q", customID)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed bid button: %q", customID)
	}
	if auctionID, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return 0, 0, fmt.Errorf("malformed auction id in %q: %w", customID, err)
	}
	if amount, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
		return 0, 0, fmt.Errorf("malformed amount in %q: %w", customID, err)
	}
	return auctionID, amount, nil
}

// Renderer builds the public announcement for an auction.
type Renderer struct {
	Currency string
}

func (r Renderer) Embed(listing *models.Listing, snap auction.Snapshot, now time.Time) discord.Embed {
	a := snap.Auction

	title := fmt.Sprintf("Listing #%d", a.ListingID)
	if listing != nil && listing.Title != "" {
		title = listing.Title
	}

	builder := discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("Auction #%d: %s", a.ID, title)).
		SetColor(config.EmbedDefaultColor)

	var desc strings.Builder
	if listing != nil && listing.Description != "" {
		desc.WriteString(listing.Description)
		desc.WriteString("\n\n")
	}
	if listing != nil {
		fmt.Fprintf(&desc, "Seller: <@%s>\n", listing.SellerID)
	}
	fmt.Fprintf(&desc, "Start price: %s", utils.FormatPrice(a.StartPrice, r.Currency))
	builder.SetDescription(desc.String())

	builder.AddField("Current price", utils.FormatPrice(a.CurrentPrice, r.Currency), true)
	builder.AddField("Bids", strconv.Itoa(snap.BidCount), true)

	switch a.Status {
	case models.AuctionStatusActive:
		builder.AddField("Time remaining", utils.FormatRemaining(a.Deadline.Sub(now)), true)
		if snap.Leading != nil {
			builder.AddField("Leading bidder", fmt.Sprintf("<@%s>", snap.Leading.BidderID), true)
		}
	case models.AuctionStatusFinished:
		builder.SetColor(config.SoldColor)
		if a.HasWinner() {
			builder.AddField("Sold to", fmt.Sprintf("<@%s> for %s", a.WinnerID,
				utils.FormatPrice(a.CurrentPrice, r.Currency)), false)
		} else {
			builder.AddField("Status", "Ended without bids", false)
		}
	case models.AuctionStatusCancelled:
		builder.SetColor(config.ErrorColor)
		builder.AddField("Status", "Cancelled", false)
	case models.AuctionStatusPending:
		builder.AddField("Status", "Awaiting start", false)
	}

	builder.SetTimestamp(now)
	return builder.Build()
}

// Components returns the quick-bid buttons while the auction is active.
func (r Renderer) Components(snap auction.Snapshot) []discord.ContainerComponent {
	a := snap.Auction
	if a.Status != models.AuctionStatusActive {
		return []discord.ContainerComponent{}
	}

	steps := auction.QuickBidSteps(a.CurrentPrice, config.QuickBidPercents)
	buttons := make([]discord.InteractiveComponent, 0, len(steps))
	for _, amount := range steps {
		buttons = append(buttons, discord.NewPrimaryButton(
			utils.FormatPrice(amount, r.Currency),
			BidButtonID(a.ID, amount)))
	}
	if len(buttons) == 0 {
		return []discord.ContainerComponent{}
	}
	return []discord.ContainerComponent{discord.NewActionRow(buttons...)}
}
