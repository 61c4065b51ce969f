package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/ellavondegurechaff/marketbot/marketbot"
	"github.com/ellavondegurechaff/marketbot/marketbot/config"
	"github.com/ellavondegurechaff/marketbot/marketbot/handlers"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/announce"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/auction"
	"github.com/ellavondegurechaff/marketbot/marketbot/utils"
)

var auctionIDOption = discord.ApplicationCommandOptionInt{
	Name:        "auction",
	Description: "Auction number",
	Required:    true,
	MinValue:    intPtr(1),
}

var AuctionCommand = discord.SlashCommandCreate{
	Name:        "auction",
	Description: "Auction related commands",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "bid",
			Description: "Place a bid or raise your own",
			Options: []discord.ApplicationCommandOption{
				auctionIDOption,
				discord.ApplicationCommandOptionInt{
					Name:        "amount",
					Description: "Bid amount, must exceed the current price",
					Required:    true,
					MinValue:    intPtr(1),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "bids",
			Description: "Show the bid history of an auction",
			Options:     []discord.ApplicationCommandOption{auctionIDOption},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "info",
			Description: "Show the current state of an auction",
			Options:     []discord.ApplicationCommandOption{auctionIDOption},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "close",
			Description: "Close an auction now (moderators)",
			Options:     []discord.ApplicationCommandOption{auctionIDOption},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "cancel",
			Description: "Cancel an auction (seller or moderators)",
			Options:     []discord.ApplicationCommandOption{auctionIDOption},
		},
	},
}

type AuctionHandler struct {
	b *marketbot.Bot
}

func NewAuctionHandler(b *marketbot.Bot) *AuctionHandler {
	return &AuctionHandler{b: b}
}

func (h *AuctionHandler) Register(r handler.Router) {
	r.Route("/auction", func(r handler.Router) {
		r.Command("/bid", handlers.WrapWithLogging("auction-bid", h.HandleBid))
		r.Command("/bids", handlers.WrapWithLogging("auction-bids", h.HandleBids))
		r.Command("/info", handlers.WrapWithLogging("auction-info", h.HandleInfo))
		r.Command("/close", handlers.WrapWithLogging("auction-close", h.HandleClose))
		r.Command("/cancel", handlers.WrapWithLogging("auction-cancel", h.HandleCancel))
	})
	r.Component("/auction-bid/{auction}/{amount}", handlers.WrapComponentWithLogging("quick-bid", h.HandleQuickBid))
}

func (h *AuctionHandler) currency() string {
	return h.b.Cfg.Auction.Currency
}

func (h *AuctionHandler) HandleBid(e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	auctionID := int64(data.Int("auction"))
	amount := int64(data.Int("amount"))

	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.CommandExecutionTimeout)
	defer cancel()

	embed := h.placeBid(ctx, auctionID, e.User().ID.String(), amount)
	_, err := e.UpdateInteractionResponse(updateWith(embed))
	return err
}

// HandleQuickBid serves the "+N%" buttons under an announcement.
func (h *AuctionHandler) HandleQuickBid(e *handler.ComponentEvent) error {
	auctionID, amount, err := announce.ParseBidButtonID(e.Data.CustomID())
	if err != nil {
		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{errorEmbed("This button is no longer valid.")},
			Flags:  discord.MessageFlagEphemeral,
		})
	}

	if err = e.DeferCreateMessage(true); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.CommandExecutionTimeout)
	defer cancel()

	embed := h.placeBid(ctx, auctionID, e.User().ID.String(), amount)
	_, err = e.UpdateInteractionResponse(updateWith(embed))
	return err
}

func (h *AuctionHandler) placeBid(ctx context.Context, auctionID int64, bidderID string, amount int64) discord.Embed {
	snap, err := h.b.AuctionManager.Get(ctx, auctionID)
	if err != nil {
		return errorEmbed(bidErrorMessage(err, h.currency()))
	}
	listing, err := h.b.ListingRepository.GetByID(ctx, snap.Auction.ListingID)
	if err != nil {
		slog.Error("Failed to load listing for bid",
			slog.String("type", "db"),
			slog.Int64("auction_id", auctionID),
			slog.String("error", err.Error()))
		return errorEmbed("Failed to place your bid, please try again.")
	}
	if listing.SellerID == bidderID {
		return errorEmbed("You cannot bid on your own listing.")
	}

	placed, err := h.b.AuctionManager.PlaceBid(ctx, auctionID, bidderID, amount)
	if err != nil {
		if !errors.Is(err, auction.ErrStaleBid) && !errors.Is(err, auction.ErrInvalidState) {
			slog.Error("Failed to place bid",
				slog.String("type", "cmd"),
				slog.Int64("auction_id", auctionID),
				slog.String("bidder_id", bidderID),
				slog.String("error", err.Error()))
		}
		return errorEmbed(bidErrorMessage(err, h.currency()))
	}

	return successEmbed("Bid accepted", fmt.Sprintf(
		"You lead auction #%d at %s. The auction now ends <t:%d:R>.",
		auctionID, utils.FormatPrice(placed.Bid.Amount, h.currency()), placed.Auction.Deadline.Unix()))
}

func (h *AuctionHandler) HandleBids(e *handler.CommandEvent) error {
	auctionID := int64(e.SlashCommandInteractionData().Int("auction"))

	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
	defer cancel()

	history, err := h.b.AuctionManager.BidHistory(ctx, auctionID)
	if err != nil {
		if errors.Is(err, auction.ErrNotFound) {
			return replyError(e, "Auction not found.")
		}
		return replyError(e, "Failed to load the bid history.")
	}
	if len(history) == 0 {
		return replyError(e, fmt.Sprintf("Auction #%d has no bids yet.", auctionID))
	}

	totalPages := (len(history) + config.BidHistoryPerPage - 1) / config.BidHistoryPerPage

	return h.b.Paginator.Create(e.Respond, paginator.Pages{
		ID:      e.ID().String(),
		Creator: e.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			start := page * config.BidHistoryPerPage
			end := min(start+config.BidHistoryPerPage, len(history))

			var description strings.Builder
			for i, raise := range history[start:end] {
				description.WriteString(fmt.Sprintf("`%d.` <@%s> %s <t:%d:R>\n",
					start+i+1, raise.BidderID, utils.FormatPrice(raise.Amount, h.currency()), raise.CreatedAt.Unix()))
			}

			embed.
				SetTitle(fmt.Sprintf("Bids on auction #%d", auctionID)).
				SetDescription(description.String()).
				SetColor(config.EmbedDefaultColor).
				SetFooter(fmt.Sprintf("Page %d/%d • %d bids", page+1, totalPages, len(history)), "")
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, false)
}

func (h *AuctionHandler) HandleInfo(e *handler.CommandEvent) error {
	auctionID := int64(e.SlashCommandInteractionData().Int("auction"))

	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
	defer cancel()

	snap, err := h.b.AuctionManager.Get(ctx, auctionID)
	if err != nil {
		if errors.Is(err, auction.ErrNotFound) {
			return replyError(e, "Auction not found.")
		}
		return replyError(e, "Failed to load the auction.")
	}
	// A missing listing only costs the title.
	listing, _ := h.b.ListingRepository.GetByID(ctx, snap.Auction.ListingID)

	renderer := announce.Renderer{Currency: h.currency()}
	return e.CreateMessage(discord.MessageCreate{
		Embeds:     []discord.Embed{renderer.Embed(listing, *snap, auction.SystemClock.Now())},
		Components: renderer.Components(*snap),
		Flags:      discord.MessageFlagEphemeral,
	})
}

func (h *AuctionHandler) HandleClose(e *handler.CommandEvent) error {
	if !h.b.Cfg.Bot.IsModerator(e.User().ID) {
		return replyError(e, "Only moderators can close auctions early.")
	}
	auctionID := int64(e.SlashCommandInteractionData().Int("auction"))

	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.CommandExecutionTimeout)
	defer cancel()

	result, err := h.b.AuctionScheduler.CloseNow(ctx, auctionID)
	var embed discord.Embed
	switch {
	case errors.Is(err, auction.ErrNotFound):
		embed = errorEmbed("Auction not found.")
	case errors.Is(err, auction.ErrInvalidState):
		embed = errorEmbed(fmt.Sprintf("Auction #%d is not running.", auctionID))
	case err != nil:
		embed = errorEmbed("Failed to close the auction.")
	case !result.Closed:
		embed = errorEmbed(fmt.Sprintf("Auction #%d was already closed.", auctionID))
	case result.Winner != nil:
		embed = successEmbed("Auction closed", fmt.Sprintf("Auction #%d sold to <@%s> for %s.",
			auctionID, result.Winner.BidderID, utils.FormatPrice(result.Winner.Amount, h.currency())))
	default:
		embed = successEmbed("Auction closed", fmt.Sprintf("Auction #%d ended without bids.", auctionID))
	}

	_, err = e.UpdateInteractionResponse(updateWith(embed))
	return err
}

func (h *AuctionHandler) HandleCancel(e *handler.CommandEvent) error {
	auctionID := int64(e.SlashCommandInteractionData().Int("auction"))

	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
	defer cancel()

	snap, err := h.b.AuctionManager.Get(ctx, auctionID)
	if err != nil {
		if errors.Is(err, auction.ErrNotFound) {
			return replyError(e, "Auction not found.")
		}
		return replyError(e, "Failed to load the auction.")
	}

	if !h.b.Cfg.Bot.IsModerator(e.User().ID) {
		listing, err := h.b.ListingRepository.GetByID(ctx, snap.Auction.ListingID)
		if err != nil || listing.SellerID != e.User().ID.String() {
			return replyError(e, "Only the seller or a moderator can cancel this auction.")
		}
		if snap.BidCount > 0 {
			return replyError(e, "Auctions with bids can only be cancelled by a moderator.")
		}
	}

	if _, err = h.b.AuctionManager.Cancel(ctx, auctionID); err != nil {
		if errors.Is(err, auction.ErrInvalidState) {
			return replyError(e, fmt.Sprintf("Auction #%d has already finished.", auctionID))
		}
		return replyError(e, "Failed to cancel the auction.")
	}

	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{successEmbed("Auction cancelled", fmt.Sprintf("Auction #%d was cancelled.", auctionID))},
		Flags:  discord.MessageFlagEphemeral,
	})
}
