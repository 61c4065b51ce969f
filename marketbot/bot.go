package marketbot

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"

	"github.com/ellavondegurechaff/marketbot/marketbot/database"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/repositories"
	marketevents "github.com/ellavondegurechaff/marketbot/marketbot/events"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/announce"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/auction"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/sale"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string

	DB                *database.DB
	ListingRepository repositories.ListingRepository
	AuctionRepository repositories.AuctionRepository
	SaleRepository    repositories.SaleRepository
	Events            marketevents.Publisher

	Announcer        *announce.Gateway
	AuctionManager   *auction.Manager
	AuctionScheduler *auction.Scheduler
	SaleService      *sale.Service
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

// SetupStorage connects to Postgres, or to the in-process store when
// db.in_memory is set.
func (b *Bot) SetupStorage(ctx context.Context) error {
	if b.Cfg.DB.InMemory {
		store := repositories.NewMemoryStore()
		b.ListingRepository = store.Listings()
		b.AuctionRepository = store.Auctions()
		b.SaleRepository = store.Sales()
		slog.Warn("Using in-memory storage, data is lost on restart", slog.String("type", "db"))
		return nil
	}

	db, err := database.New(ctx, b.Cfg.DB.Settings())
	if err != nil {
		return err
	}
	if err = db.Ping(ctx); err != nil {
		db.Close()
		return err
	}
	if err = db.InitializeSchema(ctx); err != nil {
		db.Close()
		return err
	}

	b.DB = db
	b.ListingRepository = repositories.NewListingRepository(db.BunDB())
	b.AuctionRepository = repositories.NewAuctionRepository(db.BunDB())
	b.SaleRepository = repositories.NewSaleRepository(db.BunDB())
	return nil
}

// SetupAuctions wires the announcement gateway, the auction manager and
// scheduler, and the fixed-price sale service. It needs the Discord client,
// so it runs after SetupBot.
func (b *Bot) SetupAuctions(publisher marketevents.Publisher) {
	b.Events = publisher
	b.Announcer = announce.NewGateway(b.Client.Rest(), b.ListingRepository,
		b.Cfg.Bot.AnnouncementChannelID, b.Cfg.Auction.Currency)
	b.AuctionManager = auction.NewManager(b.AuctionRepository, b.Announcer, b.Cfg.AuctionSettings(),
		auction.WithPublisher(publisher))
	b.AuctionScheduler = auction.NewScheduler(b.AuctionManager)
	b.SaleService = sale.NewService(b.SaleRepository, b.ListingRepository, b.Announcer)
}

func (b *Bot) Close(ctx context.Context) {
	if b.AuctionScheduler != nil {
		if err := b.AuctionScheduler.Shutdown(10 * time.Second); err != nil {
			slog.Error("Failed to stop auction scheduler",
				slog.String("type", "sys"),
				slog.String("error", err.Error()))
		}
	}
	if b.Client != nil {
		b.Client.Close(ctx)
	}
	if b.Events != nil {
		if err := b.Events.Close(); err != nil {
			slog.Error("Failed to close event publisher",
				slog.String("type", "sys"),
				slog.String("error", err.Error()))
		}
	}
	if b.DB != nil {
		b.DB.Close()
	}
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("Marketbot is now ready",
		slog.String("type", "sys"),
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithWatchingActivity("the auction floor"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence",
			slog.String("type", "sys"),
			slog.String("error", err.Error()))
	}
}
