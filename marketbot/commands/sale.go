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
	"github.com/ellavondegurechaff/marketbot/marketbot/handlers"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/announce"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/sale"
	"github.com/ellavondegurechaff/marketbot/marketbot/utils"
)

var saleIDOption = discord.ApplicationCommandOptionInt{
	Name:        "sale",
	Description: "Sale number",
	Required:    true,
	MinValue:    intPtr(1),
}

var SaleCommand = discord.SlashCommandCreate{
	Name:        "sale",
	Description: "Manage your fixed-price sales",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "sold",
			Description: "Mark a sale as sold",
			Options: []discord.ApplicationCommandOption{
				saleIDOption,
				discord.ApplicationCommandOptionUser{
					Name:        "buyer",
					Description: "Who bought it",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "cancel",
			Description: "Withdraw a sale (seller or moderators)",
			Options:     []discord.ApplicationCommandOption{saleIDOption},
		},
	},
}

type SaleHandler struct {
	b *marketbot.Bot
}

func NewSaleHandler(b *marketbot.Bot) *SaleHandler {
	return &SaleHandler{b: b}
}

func (h *SaleHandler) Register(r handler.Router) {
	r.Route("/sale", func(r handler.Router) {
		r.Command("/sold", handlers.WrapWithLogging("sale-sold", h.HandleSold))
		r.Command("/cancel", handlers.WrapWithLogging("sale-cancel", h.HandleCancel))
	})
	r.Component("/sale-buy/{sale}", handlers.WrapComponentWithLogging("sale-buy", h.HandleBuy))
}

// HandleBuy serves the Buy button. The first press per buyer exchanges
// contacts over DM; the reply always carries the seller's contact so a buyer
// with closed DMs is not stuck.
func (h *SaleHandler) HandleBuy(e *handler.ComponentEvent) error {
	saleID, err := announce.ParseBuyButtonID(e.Data.CustomID())
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

	interest, err := h.b.SaleService.RegisterInterest(ctx, saleID, e.User().ID.String())
	if err != nil {
		if !errors.Is(err, sale.ErrInvalidState) && !errors.Is(err, sale.ErrOwnSale) {
			slog.Error("Failed to register buy interest",
				slog.String("type", "cmd"),
				slog.Int64("sale_id", saleID),
				slog.String("error", err.Error()))
		}
		_, err = e.UpdateInteractionResponse(updateWith(errorEmbed(buyErrorMessage(err))))
		return err
	}

	_, err = e.UpdateInteractionResponse(updateWith(successEmbed("Seller contact", buyReply(interest, h.b.Cfg.Auction.Currency))))
	return err
}

func buyReply(interest *sale.Interest, currency string) string {
	listing := interest.Listing
	contact := listing.ContactInfo
	if contact == "" {
		contact = fmt.Sprintf("<@%s>", listing.SellerID)
	}
	details := fmt.Sprintf("**%s** for %s\nSeller: <@%s>\nContact: %s",
		listing.Title, utils.FormatPrice(interest.Sale.Price, currency), listing.SellerID, contact)

	switch {
	case !interest.First:
		return "You already asked about this item.\n" + details
	case interest.Delivered:
		return "Sent to your DMs, the seller knows you are interested.\n" + details
	default:
		return "We could not DM you, so here are the details.\n" + details
	}
}

func buyErrorMessage(err error) string {
	switch {
	case errors.Is(err, sale.ErrOwnSale):
		return "You cannot buy your own item."
	case errors.Is(err, sale.ErrNotFound):
		return "Sale not found."
	case errors.Is(err, sale.ErrInvalidState):
		return "This item is no longer available."
	default:
		return "Something went wrong, please try again."
	}
}

// authorize checks the caller is the sale's seller or a moderator and returns
// the refusal to show otherwise.
func (h *SaleHandler) authorize(ctx context.Context, e *handler.CommandEvent, saleID int64) string {
	s, err := h.b.SaleService.Get(ctx, saleID)
	if err != nil {
		if errors.Is(err, sale.ErrNotFound) {
			return "Sale not found."
		}
		return "Failed to load the sale."
	}
	if h.b.Cfg.Bot.IsModerator(e.User().ID) {
		return ""
	}
	listing, err := h.b.ListingRepository.GetByID(ctx, s.ListingID)
	if err != nil || listing.SellerID != e.User().ID.String() {
		return "Only the seller or a moderator can do this."
	}
	return ""
}

func (h *SaleHandler) HandleSold(e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	saleID := int64(data.Int("sale"))

	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
	defer cancel()

	if msg := h.authorize(ctx, e, saleID); msg != "" {
		return replyError(e, msg)
	}

	var buyerID string
	if buyer, ok := data.OptUser("buyer"); ok {
		buyerID = buyer.ID.String()
	}

	if _, err := h.b.SaleService.MarkSold(ctx, saleID, buyerID); err != nil {
		if errors.Is(err, sale.ErrInvalidState) {
			return replyError(e, fmt.Sprintf("Sale #%d is not open.", saleID))
		}
		return replyError(e, "Failed to update the sale.")
	}

	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{successEmbed("Sale closed", fmt.Sprintf("Sale #%d is marked as sold.", saleID))},
		Flags:  discord.MessageFlagEphemeral,
	})
}

func (h *SaleHandler) HandleCancel(e *handler.CommandEvent) error {
	saleID := int64(e.SlashCommandInteractionData().Int("sale"))

	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
	defer cancel()

	if msg := h.authorize(ctx, e, saleID); msg != "" {
		return replyError(e, msg)
	}

	if _, err := h.b.SaleService.Cancel(ctx, saleID); err != nil {
		if errors.Is(err, sale.ErrInvalidState) {
			return replyError(e, fmt.Sprintf("Sale #%d is already sold.", saleID))
		}
		return replyError(e, "Failed to cancel the sale.")
	}

	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{successEmbed("Sale withdrawn", fmt.Sprintf("Sale #%d was withdrawn.", saleID))},
		Flags:  discord.MessageFlagEphemeral,
	})
}
