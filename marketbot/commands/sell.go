package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/go-playground/validator/v10"

	"github.com/ellavondegurechaff/marketbot/marketbot"
	"github.com/ellavondegurechaff/marketbot/marketbot/config"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/utils"
)

var SellCommand = discord.SlashCommandCreate{
	Name:        "sell",
	Description: "Put an item up for sale",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "auction",
			Description: "Submit an item for auction, it opens after moderation",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "title",
					Description: "What you are selling",
					Required:    true,
					MaxLength:   intPtr(100),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "start_price",
					Description: "Starting price",
					Required:    true,
					MinValue:    intPtr(1),
				},
				discord.ApplicationCommandOptionString{
					Name:        "contact",
					Description: "How the winner can reach you",
					Required:    true,
					MaxLength:   intPtr(200),
				},
				descriptionOption,
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "fixed",
			Description: "Offer an item at a fixed price, it is published after moderation",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "title",
					Description: "What you are selling",
					Required:    true,
					MaxLength:   intPtr(100),
				},
				discord.ApplicationCommandOptionInt{
					Name:        "price",
					Description: "Asking price",
					Required:    true,
					MinValue:    intPtr(1),
				},
				discord.ApplicationCommandOptionString{
					Name:        "contact",
					Description: "How buyers can reach you",
					Required:    true,
					MaxLength:   intPtr(200),
				},
				descriptionOption,
			},
		},
	},
}

var descriptionOption = discord.ApplicationCommandOptionString{
	Name:        "description",
	Description: "Condition, size, pickup details",
	Required:    false,
	MaxLength:   intPtr(1000),
}

type sellForm struct {
	Title       string `validate:"required,max=100"`
	Description string `validate:"max=1000"`
	Contact     string `validate:"required,max=200"`
	Price       int64  `validate:"gt=0"`
}

var formValidator = validator.New()

func SellAuctionHandler(b *marketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		form := sellForm{
			Title:       data.String("title"),
			Description: data.String("description"),
			Contact:     data.String("contact"),
			Price:       int64(data.Int("start_price")),
		}
		if err := formValidator.Struct(form); err != nil {
			return replyError(e, "Please fill in a title, a contact and a positive start price.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
		defer cancel()

		listing, err := createListing(ctx, b, e, form, models.ListingKindAuction)
		if err != nil {
			return replyError(e, "Failed to save your listing, please try again.")
		}

		a, err := b.AuctionManager.Create(ctx, listing.ID, form.Price)
		if err != nil {
			slog.Error("Failed to create auction",
				slog.String("type", "db"),
				slog.Int64("listing_id", listing.ID),
				slog.String("error", err.Error()))
			return replyError(e, "Failed to create the auction, please try again.")
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{successEmbed("Submitted for moderation",
				fmt.Sprintf("Listing #%d **%s** will open as auction #%d at %s once a moderator approves it.",
					listing.ID, listing.Title, a.ID, utils.FormatPrice(a.StartPrice, b.Cfg.Auction.Currency)))},
			Flags: discord.MessageFlagEphemeral,
		})
	}
}

func SellFixedHandler(b *marketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		form := sellForm{
			Title:       data.String("title"),
			Description: data.String("description"),
			Contact:     data.String("contact"),
			Price:       int64(data.Int("price")),
		}
		if err := formValidator.Struct(form); err != nil {
			return replyError(e, "Please fill in a title, a contact and a positive price.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultQueryTimeout)
		defer cancel()

		listing, err := createListing(ctx, b, e, form, models.ListingKindFixedPrice)
		if err != nil {
			return replyError(e, "Failed to save your listing, please try again.")
		}

		s, err := b.SaleService.Create(ctx, listing.ID, form.Price)
		if err != nil {
			slog.Error("Failed to create sale",
				slog.String("type", "db"),
				slog.Int64("listing_id", listing.ID),
				slog.String("error", err.Error()))
			return replyError(e, "Failed to create the sale, please try again.")
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{successEmbed("Submitted for moderation",
				fmt.Sprintf("Listing #%d **%s** will be offered as sale #%d for %s once a moderator approves it.",
					listing.ID, listing.Title, s.ID, utils.FormatPrice(s.Price, b.Cfg.Auction.Currency)))},
			Flags: discord.MessageFlagEphemeral,
		})
	}
}

func createListing(ctx context.Context, b *marketbot.Bot, e *handler.CommandEvent, form sellForm, kind models.ListingKind) (*models.Listing, error) {
	listing := &models.Listing{
		SellerID:    e.User().ID.String(),
		Title:       form.Title,
		Description: form.Description,
		ContactInfo: form.Contact,
		Kind:        kind,
	}
	if err := b.ListingRepository.Create(ctx, listing); err != nil {
		slog.Error("Failed to create listing",
			slog.String("type", "db"),
			slog.String("seller_id", listing.SellerID),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		return nil, err
	}
	return listing, nil
}
