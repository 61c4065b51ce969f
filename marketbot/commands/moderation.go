package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ellavondegurechaff/marketbot/marketbot"
	"github.com/ellavondegurechaff/marketbot/marketbot/config"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/repositories"
	"github.com/ellavondegurechaff/marketbot/marketbot/handlers"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/auction"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/sale"
)

var ModerationCommand = discord.SlashCommandCreate{
	Name:        "moderation",
	Description: "Review submitted listings",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "approve",
			Description: "Approve a listing and publish its auction or sale",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "listing",
					Description: "Listing number",
					Required:    true,
					MinValue:    intPtr(1),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "reject",
			Description: "Reject a listing",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "listing",
					Description: "Listing number",
					Required:    true,
					MinValue:    intPtr(1),
				},
			},
		},
	},
}

type ModerationHandler struct {
	b *marketbot.Bot
}

func NewModerationHandler(b *marketbot.Bot) *ModerationHandler {
	return &ModerationHandler{b: b}
}

func (h *ModerationHandler) Register(r handler.Router) {
	r.Route("/moderation", func(r handler.Router) {
		r.Command("/approve", handlers.WrapWithLogging("moderation-approve", h.requireModerator(h.HandleApprove)))
		r.Command("/reject", handlers.WrapWithLogging("moderation-reject", h.requireModerator(h.HandleReject)))
	})
}

func (h *ModerationHandler) requireModerator(next handler.CommandHandler) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if !h.b.Cfg.Bot.IsModerator(e.User().ID) {
			return replyError(e, "Only moderators can do this.")
		}
		return next(e)
	}
}

// HandleApprove publishes the listing and then activates its auction or sale
// with the posted message as its handle.
func (h *ModerationHandler) HandleApprove(e *handler.CommandEvent) error {
	listingID := int64(e.SlashCommandInteractionData().Int("listing"))

	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
	defer cancel()

	listing, err := h.b.ListingRepository.GetByID(ctx, listingID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return replyError(e, fmt.Sprintf("Listing #%d not found.", listingID))
		}
		return replyError(e, "Failed to load the listing.")
	}

	if listing.Kind == models.ListingKindFixedPrice {
		return h.approveSale(ctx, e, listing)
	}
	return h.approveAuction(ctx, e, listing)
}

func (h *ModerationHandler) approveAuction(ctx context.Context, e *handler.CommandEvent, listing *models.Listing) error {
	a, err := h.b.AuctionManager.GetByListing(ctx, listing.ID)
	if err != nil {
		if errors.Is(err, auction.ErrNotFound) {
			return replyError(e, fmt.Sprintf("Listing #%d has no auction.", listing.ID))
		}
		return replyError(e, "Failed to load the auction.")
	}
	if a.Status != models.AuctionStatusPending {
		return replyError(e, fmt.Sprintf("Auction #%d is already %s.", a.ID, a.Status))
	}

	if err = e.DeferCreateMessage(true); err != nil {
		return err
	}

	var activated *models.Auction
	err = publishAndActivate(ctx, "auction", a.ID,
		func(ctx context.Context) (string, error) {
			return h.b.Announcer.Publish(ctx, listing, a)
		},
		func(ctx context.Context, messageID string) (err error) {
			activated, err = h.b.AuctionManager.Activate(ctx, a.ID, messageID)
			return err
		},
		h.b.Announcer.Retract)
	if err != nil {
		msg := fmt.Sprintf("Auction #%d was already processed.", a.ID)
		if errors.Is(err, errPublishFailed) {
			msg = "Failed to post the announcement."
		}
		_, err = e.UpdateInteractionResponse(updateWith(errorEmbed(msg)))
		return err
	}

	_, err = e.UpdateInteractionResponse(updateWith(successEmbed("Auction opened",
		fmt.Sprintf("Auction #%d for **%s** is live until <t:%d:t>.",
			activated.ID, listing.Title, activated.Deadline.Unix()))))
	return err
}

func (h *ModerationHandler) approveSale(ctx context.Context, e *handler.CommandEvent, listing *models.Listing) error {
	s, err := h.b.SaleService.GetByListing(ctx, listing.ID)
	if err != nil {
		if errors.Is(err, sale.ErrNotFound) {
			return replyError(e, fmt.Sprintf("Listing #%d has no sale.", listing.ID))
		}
		return replyError(e, "Failed to load the sale.")
	}
	if s.Status != models.SaleStatusPending {
		return replyError(e, fmt.Sprintf("Sale #%d is already %s.", s.ID, s.Status))
	}

	if err = e.DeferCreateMessage(true); err != nil {
		return err
	}

	err = publishAndActivate(ctx, "sale", s.ID,
		func(ctx context.Context) (string, error) {
			return h.b.Announcer.PublishSale(ctx, listing, s)
		},
		func(ctx context.Context, messageID string) error {
			_, err := h.b.SaleService.Activate(ctx, s.ID, messageID)
			return err
		},
		h.b.Announcer.Retract)
	if err != nil {
		msg := fmt.Sprintf("Sale #%d was already processed.", s.ID)
		if errors.Is(err, errPublishFailed) {
			msg = "Failed to post the announcement."
		}
		_, err = e.UpdateInteractionResponse(updateWith(errorEmbed(msg)))
		return err
	}

	_, err = e.UpdateInteractionResponse(updateWith(successEmbed("Sale published",
		fmt.Sprintf("Sale #%d for **%s** is live.", s.ID, listing.Title))))
	return err
}

var errPublishFailed = errors.New("failed to publish announcement")

// publishAndActivate posts the announcement and then activates the item with
// the new message as its handle. If activation is refused, typically because
// another moderator got there first, the fresh post is deleted again so the
// channel keeps a single live announcement.
func publishAndActivate(ctx context.Context, kind string, id int64,
	publish func(ctx context.Context) (string, error),
	activate func(ctx context.Context, messageID string) error,
	retract func(ctx context.Context, messageID string) error) error {
	messageID, err := publish(ctx)
	if err != nil {
		slog.Error("Failed to publish announcement",
			slog.String("type", "cmd"),
			slog.String("kind", kind),
			slog.Int64("id", id),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", errPublishFailed, err)
	}

	if err = activate(ctx, messageID); err != nil {
		slog.Warn("Activation rejected after publishing",
			slog.String("type", "cmd"),
			slog.String("kind", kind),
			slog.Int64("id", id),
			slog.String("message_id", messageID),
			slog.String("error", err.Error()))
		if rerr := retract(ctx, messageID); rerr != nil {
			slog.Error("Failed to delete orphaned announcement",
				slog.String("type", "cmd"),
				slog.String("message_id", messageID),
				slog.String("error", rerr.Error()))
		}
		return err
	}
	return nil
}

func (h *ModerationHandler) HandleReject(e *handler.CommandEvent) error {
	listingID := int64(e.SlashCommandInteractionData().Int("listing"))

	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
	defer cancel()

	listing, err := h.b.ListingRepository.GetByID(ctx, listingID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return replyError(e, fmt.Sprintf("Listing #%d not found.", listingID))
		}
		return replyError(e, "Failed to load the listing.")
	}

	var done, refusal string
	if listing.Kind == models.ListingKindFixedPrice {
		done, refusal = h.rejectSale(ctx, listingID)
	} else {
		done, refusal = h.rejectAuction(ctx, listingID)
	}
	if refusal != "" {
		return replyError(e, refusal)
	}

	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{successEmbed("Listing rejected",
			fmt.Sprintf("Listing #%d was rejected and %s cancelled.", listingID, done))},
		Flags: discord.MessageFlagEphemeral,
	})
}

// rejectAuction and rejectSale return the cancelled item's name, or the
// refusal shown to the moderator.
func (h *ModerationHandler) rejectAuction(ctx context.Context, listingID int64) (string, string) {
	a, err := h.b.AuctionManager.GetByListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, auction.ErrNotFound) {
			return "", fmt.Sprintf("Listing #%d has no auction.", listingID)
		}
		return "", "Failed to load the auction."
	}

	if _, err = h.b.AuctionManager.Cancel(ctx, a.ID); err != nil {
		if errors.Is(err, auction.ErrInvalidState) {
			return "", fmt.Sprintf("Auction #%d has already finished.", a.ID)
		}
		return "", "Failed to reject the listing."
	}
	return fmt.Sprintf("auction #%d", a.ID), ""
}

func (h *ModerationHandler) rejectSale(ctx context.Context, listingID int64) (string, string) {
	s, err := h.b.SaleService.GetByListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, sale.ErrNotFound) {
			return "", fmt.Sprintf("Listing #%d has no sale.", listingID)
		}
		return "", "Failed to load the sale."
	}

	if _, err = h.b.SaleService.Cancel(ctx, s.ID); err != nil {
		if errors.Is(err, sale.ErrInvalidState) {
			return "", fmt.Sprintf("Sale #%d is already sold.", s.ID)
		}
		return "", "Failed to reject the listing."
	}
	return fmt.Sprintf("sale #%d", s.ID), ""
}
