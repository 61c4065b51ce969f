package announce

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"

	"github.com/ellavondegurechaff/marketbot/marketbot/config"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/sale"
	"github.com/ellavondegurechaff/marketbot/marketbot/utils"
)

const buyButtonPrefix = "/sale-buy/"

// BuyButtonID encodes the Buy button of a fixed-price sale: "/sale-buy/<sale>".
func BuyButtonID(saleID int64) string {
	return buyButtonPrefix + strconv.FormatInt(saleID, 10)
}

func ParseBuyButtonID(customID string) (int64, error) {
	raw, ok := strings.CutPrefix(customID, buyButtonPrefix)
	if !ok {
		return 0, fmt.Errorf("not a buy button: %q", customID)
	}
	saleID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed sale id in %q: %w", customID, err)
	}
	return saleID, nil
}

func (r Renderer) SaleEmbed(listing *models.Listing, s *models.Sale) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("For sale #%d: %s", s.ID, listing.Title)).
		SetColor(config.EmbedDefaultColor)

	var desc strings.Builder
	if listing.Description != "" {
		desc.WriteString(listing.Description)
		desc.WriteString("\n\n")
	}
	fmt.Fprintf(&desc, "Seller: <@%s>", listing.SellerID)
	builder.SetDescription(desc.String())
	builder.AddField("Price", utils.FormatPrice(s.Price, r.Currency), true)

	switch s.Status {
	case models.SaleStatusSold:
		builder.SetColor(config.SoldColor)
		if s.BuyerID != "" {
			builder.AddField("Sold to", fmt.Sprintf("<@%s>", s.BuyerID), true)
		} else {
			builder.AddField("Status", "Sold", true)
		}
	case models.SaleStatusCancelled:
		builder.SetColor(config.ErrorColor)
		builder.AddField("Status", "Withdrawn", true)
	}
	return builder.Build()
}

// SaleComponents returns the Buy button while the sale is open. Pending sales
// get it too, since they are published right before activation.
func (r Renderer) SaleComponents(s *models.Sale) []discord.ContainerComponent {
	if s.Status != models.SaleStatusActive && s.Status != models.SaleStatusPending {
		return []discord.ContainerComponent{}
	}
	return []discord.ContainerComponent{discord.NewActionRow(
		discord.NewSuccessButton("Buy 🛍️", BuyButtonID(s.ID)),
	)}
}

// PublishSale posts a fixed-price sale and returns the message id to pass to
// sale.Service.Activate.
func (g *Gateway) PublishSale(ctx context.Context, listing *models.Listing, s *models.Sale) (string, error) {
	msg, err := g.messenger.CreateMessage(g.channelID, discord.MessageCreate{
		Embeds:     []discord.Embed{g.renderer.SaleEmbed(listing, s)},
		Components: g.renderer.SaleComponents(s),
	}, rest.WithCtx(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to post sale: %w", err)
	}
	return msg.ID.String(), nil
}

func (g *Gateway) SaleClosed(ctx context.Context, snap sale.Snapshot) error {
	if snap.Sale.AnnouncementID == "" {
		return nil
	}
	embeds := []discord.Embed{g.renderer.SaleEmbed(&snap.Listing, &snap.Sale)}
	components := g.renderer.SaleComponents(&snap.Sale)
	return g.editAnnouncement(ctx, snap.Sale.AnnouncementID, discord.MessageUpdate{
		Embeds:     &embeds,
		Components: &components,
	})
}

// ExchangeSaleContacts sends the buyer the seller's contact and the seller
// the buyer's mention. DM channels come from the same cache as auctions.
func (g *Gateway) ExchangeSaleContacts(ctx context.Context, snap sale.Snapshot, buyerID string) error {
	listing := snap.Listing
	price := utils.FormatPrice(snap.Sale.Price, g.renderer.Currency)
	contact := listing.ContactInfo
	if contact == "" {
		contact = fmt.Sprintf("<@%s>", listing.SellerID)
	}

	buyerEmbed := discord.NewEmbedBuilder().
		SetTitle("Seller contact").
		SetDescription(fmt.Sprintf("**%s** costs %s.\nSeller: <@%s>\nContact: %s",
			listing.Title, price, listing.SellerID, contact)).
		SetColor(config.SuccessColor).
		Build()
	sellerEmbed := discord.NewEmbedBuilder().
		SetTitle("Interested buyer").
		SetDescription(fmt.Sprintf("<@%s> wants to buy **%s** for %s. They have received your contact details.",
			buyerID, listing.Title, price)).
		SetColor(config.SuccessColor).
		Build()

	return errors.Join(
		g.sendDM(ctx, buyerID, buyerEmbed),
		g.sendDM(ctx, listing.SellerID, sellerEmbed),
	)
}
