package announce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/ellavondegurechaff/marketbot/marketbot/config"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/repositories"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/auction"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/sale"
	"github.com/ellavondegurechaff/marketbot/marketbot/utils"
)

// Messenger is the part of the Discord REST client the gateway uses.
// bot.Client.Rest() satisfies it.
type Messenger interface {
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
	UpdateMessage(channelID snowflake.ID, messageID snowflake.ID, messageUpdate discord.MessageUpdate, opts ...rest.RequestOpt) (*discord.Message, error)
	DeleteMessage(channelID snowflake.ID, messageID snowflake.ID, opts ...rest.RequestOpt) error
	CreateDMChannel(userID snowflake.ID, opts ...rest.RequestOpt) (*discord.DMChannel, error)
}

// Gateway publishes auctions and fixed-price sales to the announcement channel
// and handles the buyer/seller handoff over DMs.
type Gateway struct {
	messenger Messenger
	listings  repositories.ListingRepository
	channelID snowflake.ID
	renderer  Renderer
	clock     auction.Clock
	dmCache   *lru.Cache
}

func NewGateway(messenger Messenger, listings repositories.ListingRepository, channelID snowflake.ID, currency string) *Gateway {
	cache, _ := lru.New(config.DMChannelCacheSize)
	return &Gateway{
		messenger: messenger,
		listings:  listings,
		channelID: channelID,
		renderer:  Renderer{Currency: currency},
		clock:     auction.SystemClock,
		dmCache:   cache,
	}
}

func (g *Gateway) SetClock(c auction.Clock) {
	g.clock = c
}

// Publish posts the announcement for a freshly approved auction and returns
// the message id to pass to Manager.Activate.
func (g *Gateway) Publish(ctx context.Context, listing *models.Listing, a *models.Auction) (string, error) {
	snap := auction.Snapshot{Auction: *a}
	msg, err := g.messenger.CreateMessage(g.channelID, discord.MessageCreate{
		Embeds: []discord.Embed{g.renderer.Embed(listing, snap, g.clock.Now())},
	}, rest.WithCtx(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to post announcement: %w", err)
	}
	return msg.ID.String(), nil
}

// Retract deletes an announcement that never became live, e.g. when
// activation lost a race after Publish.
func (g *Gateway) Retract(ctx context.Context, announcementID string) error {
	messageID, err := snowflake.Parse(announcementID)
	if err != nil {
		return fmt.Errorf("invalid announcement id %q: %w", announcementID, err)
	}
	err = g.messenger.DeleteMessage(g.channelID, messageID, rest.WithCtx(ctx))
	if err != nil && !isUnknownMessage(err) {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}
	return nil
}

func (g *Gateway) AuctionOpened(ctx context.Context, snap auction.Snapshot) error {
	return g.refresh(ctx, snap)
}

func (g *Gateway) AuctionChanged(ctx context.Context, snap auction.Snapshot) error {
	return g.refresh(ctx, snap)
}

func (g *Gateway) AuctionFinished(ctx context.Context, snap auction.Snapshot) error {
	return g.refresh(ctx, snap)
}

func (g *Gateway) AuctionCancelled(ctx context.Context, snap auction.Snapshot) error {
	return g.refresh(ctx, snap)
}

// ExchangeContacts sends the winner the seller's contact details and tells
// the seller who won.
func (g *Gateway) ExchangeContacts(ctx context.Context, snap auction.Snapshot) error {
	a := snap.Auction
	if !a.HasWinner() {
		return nil
	}

	listing, err := g.listings.GetByID(ctx, a.ListingID)
	if err != nil {
		return fmt.Errorf("failed to load listing %d: %w", a.ListingID, err)
	}

	price := utils.FormatPrice(a.CurrentPrice, g.renderer.Currency)
	contact := listing.ContactInfo
	if contact == "" {
		contact = fmt.Sprintf("<@%s>", listing.SellerID)
	}

	winnerEmbed := discord.NewEmbedBuilder().
		SetTitle("Auction won").
		SetDescription(fmt.Sprintf("You won **%s** for %s.\nSeller contact: %s\nPayment is arranged directly with the seller.",
			listing.Title, price, contact)).
		SetColor(config.SoldColor).
		Build()
	sellerEmbed := discord.NewEmbedBuilder().
		SetTitle("Auction finished").
		SetDescription(fmt.Sprintf("**%s** sold to <@%s> for %s. They have received your contact details.",
			listing.Title, a.WinnerID, price)).
		SetColor(config.SoldColor).
		Build()

	return errors.Join(
		g.sendDM(ctx, a.WinnerID, winnerEmbed),
		g.sendDM(ctx, listing.SellerID, sellerEmbed),
	)
}

func (g *Gateway) refresh(ctx context.Context, snap auction.Snapshot) error {
	a := snap.Auction
	if a.AnnouncementID == "" {
		return nil
	}

	listing, err := g.listings.GetByID(ctx, a.ListingID)
	if err != nil {
		slog.Warn("Rendering announcement without listing",
			slog.String("type", "sys"),
			slog.Int64("listing_id", a.ListingID),
			slog.String("error", err.Error()))
		listing = nil
	}

	embeds := []discord.Embed{g.renderer.Embed(listing, snap, g.clock.Now())}
	components := g.renderer.Components(snap)
	return g.editAnnouncement(ctx, a.AnnouncementID, discord.MessageUpdate{
		Embeds:     &embeds,
		Components: &components,
	})
}

func (g *Gateway) sendDM(ctx context.Context, userID string, embed discord.Embed) error {
	channelID, err := g.dmChannel(ctx, userID)
	if err != nil {
		return err
	}
	_, err = g.messenger.CreateMessage(channelID, discord.MessageCreate{
		Embeds: []discord.Embed{embed},
	}, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to DM user %s: %w", userID, err)
	}
	return nil
}

func (g *Gateway) dmChannel(ctx context.Context, userID string) (snowflake.ID, error) {
	if cached, ok := g.dmCache.Get(userID); ok {
		return cached.(snowflake.ID), nil
	}

	id, err := snowflake.Parse(userID)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	channel, err := g.messenger.CreateDMChannel(id, rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to open DM with %s: %w", userID, err)
	}
	g.dmCache.Add(userID, channel.ID())
	return channel.ID(), nil
}

func (g *Gateway) editAnnouncement(ctx context.Context, announcementID string, update discord.MessageUpdate) error {
	messageID, err := snowflake.Parse(announcementID)
	if err != nil {
		return fmt.Errorf("invalid announcement id %q: %w", announcementID, err)
	}
	_, err = g.messenger.UpdateMessage(g.channelID, messageID, update, rest.WithCtx(ctx))
	if isUnknownMessage(err) {
		slog.Warn("Announcement message is gone",
			slog.String("type", "sys"),
			slog.String("message_id", announcementID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to update announcement: %w", err)
	}
	return nil
}

// jsonErrorCodeUnknownMessage is Discord's "Unknown Message" API error code;
// disgo's rest package declares the type but not the constant.
const jsonErrorCodeUnknownMessage rest.JSONErrorCode = 10008

// isUnknownMessage reports whether Discord rejected an edit because the
// message was deleted.
func isUnknownMessage(err error) bool {
	var restErr *rest.Error
	return errors.As(err, &restErr) && restErr.Code == jsonErrorCodeUnknownMessage
}

var (
	_ auction.Gateway = (*Gateway)(nil)
	_ sale.Gateway    = (*Gateway)(nil)
)
