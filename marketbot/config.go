package marketbot

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/ellavondegurechaff/marketbot/marketbot/database"
	"github.com/ellavondegurechaff/marketbot/marketbot/events"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/auction"
)

const (
	defaultAuctionDuration  = 2 * time.Hour
	defaultSweepInterval    = time.Minute
	defaultRefreshInterval  = 15 * time.Minute
	defaultNotifyTimeout    = 10 * time.Second
	defaultSweepConcurrency = 4
	defaultCurrency         = "sum"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log     LogConfig     `toml:"log"`
	Bot     BotConfig     `toml:"bot"`
	DB      DBConfig      `toml:"db"`
	Auction AuctionConfig `toml:"auction"`
	Events  EventsConfig  `toml:"events"`
}

type BotConfig struct {
	DevGuilds             []snowflake.ID `toml:"dev_guilds"`
	Token                 string         `toml:"token" validate:"required"`
	AnnouncementChannelID snowflake.ID   `toml:"announcement_channel_id" validate:"required"`
	ModeratorIDs          []snowflake.ID `toml:"moderator_ids"`
}

// IsModerator reports whether the user may approve, reject and force-close listings.
func (c BotConfig) IsModerator(id snowflake.ID) bool {
	for _, m := range c.ModeratorIDs {
		if m == id {
			return true
		}
	}
	return false
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	Host         string `toml:"host" validate:"required_unless=InMemory true"`
	Port         int    `toml:"port" validate:"min=0,max=65535"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database" validate:"required_unless=InMemory true"`
	PoolSize     int    `toml:"pool_size" validate:"min=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"min=0"`
	MaxLifetime  int    `toml:"max_lifetime" validate:"min=0"`
	InMemory     bool   `toml:"in_memory"`
}

type AuctionConfig struct {
	Duration         Duration `toml:"duration" validate:"gt=0"`
	SweepInterval    Duration `toml:"sweep_interval" validate:"gt=0"`
	RefreshInterval  Duration `toml:"refresh_interval" validate:"gt=0"`
	NotifyTimeout    Duration `toml:"notify_timeout" validate:"gt=0"`
	SweepConcurrency int      `toml:"sweep_concurrency" validate:"min=1,max=64"`
	Currency         string   `toml:"currency" validate:"required"`
}

type EventsConfig struct {
	Backend       string `toml:"backend" validate:"omitempty,oneof=none nats redis"`
	NatsURL       string `toml:"nats_url" validate:"required_if=Backend nats"`
	NatsStream    string `toml:"nats_stream"`
	RedisAddr     string `toml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db" validate:"min=0"`
}

// Duration decodes TOML strings such as "2h" or "90s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (c *Config) applyDefaults() {
	if c.Auction.Duration == 0 {
		c.Auction.Duration = Duration(defaultAuctionDuration)
	}
	if c.Auction.SweepInterval == 0 {
		c.Auction.SweepInterval = Duration(defaultSweepInterval)
	}
	if c.Auction.RefreshInterval == 0 {
		c.Auction.RefreshInterval = Duration(defaultRefreshInterval)
	}
	if c.Auction.NotifyTimeout == 0 {
		c.Auction.NotifyTimeout = Duration(defaultNotifyTimeout)
	}
	if c.Auction.SweepConcurrency == 0 {
		c.Auction.SweepConcurrency = defaultSweepConcurrency
	}
	if c.Auction.Currency == "" {
		c.Auction.Currency = defaultCurrency
	}
	if c.Events.Backend == "" {
		c.Events.Backend = "none"
	}
	if c.Events.NatsStream == "" {
		c.Events.NatsStream = "AUCTION_EVENTS"
	}
}

// Validate checks struct tags; it expects defaults to have been applied.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// AuctionSettings is the explicit settings object handed to the auction core.
func (c *Config) AuctionSettings() auction.Config {
	return auction.Config{
		Duration:         c.Auction.Duration.Std(),
		SweepInterval:    c.Auction.SweepInterval.Std(),
		RefreshInterval:  c.Auction.RefreshInterval.Std(),
		NotifyTimeout:    c.Auction.NotifyTimeout.Std(),
		SweepConcurrency: c.Auction.SweepConcurrency,
	}
}

func (c DBConfig) Settings() database.Config {
	return database.Config{
		Host:         c.Host,
		Port:         c.Port,
		User:         c.User,
		Password:     c.Password,
		Database:     c.Database,
		PoolSize:     c.PoolSize,
		MaxIdleConns: c.MaxIdleConns,
		MaxLifetime:  time.Duration(c.MaxLifetime) * time.Second,
	}
}

func (c EventsConfig) Options() events.Options {
	return events.Options{
		Backend:       c.Backend,
		NatsURL:       c.NatsURL,
		NatsStream:    c.NatsStream,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
	}
}
