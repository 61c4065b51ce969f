package announce

import (
	"context"
	"strings"
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/sale"
)

func TestBuyButtonID(t *testing.T) {
	id := BuyButtonID(31)
	check.Equal(t, "/sale-buy/31", id)

	saleID, err := ParseBuyButtonID(id)
	assert.NoError(t, err)
	check.Equal(t, int64(31), saleID)

	_, err = ParseBuyButtonID("/auction-bid/1/2")
	check.Error(t, err)
	_, err = ParseBuyButtonID("/sale-buy/x")
	check.Error(t, err)
}

func buyButton(t *testing.T, components []discord.ContainerComponent) discord.ButtonComponent {
	t.Helper()
	assert.Equal(t, 1, len(components))
	row, ok := components[0].(discord.ActionRowComponent)
	assert.True(t, ok)
	assert.Equal(t, 1, len(row.Components()))
	button, ok := row.Components()[0].(discord.ButtonComponent)
	assert.True(t, ok)
	return button
}

func TestGatewayPublishSaleAndClose(t *testing.T) {
	g, m, listing := newTestGateway(t)
	ctx := context.Background()

	s := &models.Sale{ID: 5, ListingID: listing.ID, Price: 300000, Status: models.SaleStatusPending}
	handle, err := g.PublishSale(ctx, listing, s)
	assert.NoError(t, err)
	check.Equal(t, "9001", handle)

	created := m.sent[0].create
	assert.NotNil(t, created)
	check.Equal(t, "For sale #5: Vintage camera", created.Embeds[0].Title)
	price, _ := fieldValue(created.Embeds[0], "Price")
	check.Equal(t, "300 000 sum", price)
	check.Equal(t, "/sale-buy/5", buyButton(t, created.Components).CustomID)

	s.Status = models.SaleStatusSold
	s.BuyerID = "222"
	s.AnnouncementID = handle
	assert.NoError(t, g.SaleClosed(ctx, sale.Snapshot{Sale: *s, Listing: *listing}))

	assert.Equal(t, 2, len(m.sent))
	update := m.sent[1].update
	assert.NotNil(t, update)
	check.Equal(t, 0, len(*update.Components))
	soldTo, _ := fieldValue((*update.Embeds)[0], "Sold to")
	check.Equal(t, "<@222>", soldTo)
}

func TestSaleClosedWithoutAnnouncement(t *testing.T) {
	g, m, listing := newTestGateway(t)
	snap := sale.Snapshot{Sale: models.Sale{ID: 5, Status: models.SaleStatusCancelled}, Listing: *listing}

	assert.NoError(t, g.SaleClosed(context.Background(), snap))
	check.Equal(t, 0, len(m.sent))
}

func TestExchangeSaleContacts(t *testing.T) {
	g, m, listing := newTestGateway(t)
	ctx := context.Background()
	snap := sale.Snapshot{Sale: models.Sale{ID: 5, ListingID: listing.ID, Price: 300000, Status: models.SaleStatusActive}, Listing: *listing}

	assert.NoError(t, g.ExchangeSaleContacts(ctx, snap, "222"))
	assert.Equal(t, 2, len(m.sent))
	check.Equal(t, snowflake.ID(223), m.sent[0].channelID)
	check.Equal(t, snowflake.ID(112), m.sent[1].channelID)
	check.True(t, strings.Contains(m.sent[0].create.Embeds[0].Description, listing.ContactInfo))
	check.True(t, strings.Contains(m.sent[1].create.Embeds[0].Description, "<@222>"))

	// A second buyer reuses the cached seller channel.
	assert.NoError(t, g.ExchangeSaleContacts(ctx, snap, "333"))
	check.Equal(t, 3, m.dmOpened)
}
