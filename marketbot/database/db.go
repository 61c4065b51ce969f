package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
)

const (
	defaultConnTimeout   = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = time.Second
)

type Config struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	PoolSize     int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DB holds the pgx pool used for raw statements and the bun DB used by repositories.
type DB struct {
	pool  *pgxpool.Pool
	bunDB *bun.DB
}

func New(ctx context.Context, cfg Config) (*DB, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	var err error
	for i := 0; i < defaultMaxRetries; i++ {
		var conn net.Conn
		conn, err = net.DialTimeout("tcp", addr, defaultConnTimeout)
		if err == nil {
			conn.Close()
			break
		}
		time.Sleep(defaultRetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("database server unreachable after %d attempts: %w", defaultMaxRetries, err)
	}

	poolConfig, err := pgxpool.ParseConfig(connString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(bunDSN(cfg))))
	if cfg.PoolSize > 0 {
		sqldb.SetMaxOpenConns(cfg.PoolSize)
	}
	return &DB{pool: pool, bunDB: bun.NewDB(sqldb, pgdialect.New())}, nil
}

func connString(cfg Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?connect_timeout=5",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

func bunDSN(cfg Config) string {
	sslMode := os.Getenv("PG_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslMode)
}

func (db *DB) BunDB() *bun.DB {
	return db.bunDB
}

func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
	if db.bunDB != nil {
		db.bunDB.Close()
	}
}

func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pgxpool ping failed: %w", err)
	}
	if err := db.bunDB.PingContext(ctx); err != nil {
		return fmt.Errorf("bun ping failed: %w", err)
	}
	return nil
}

func (db *DB) ExecWithLog(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	start := time.Now()
	result, err := db.pool.Exec(ctx, query, args...)
	took := time.Since(start)

	if err != nil {
		slog.Error("Query failed",
			slog.String("type", "db"),
			slog.String("query", query),
			slog.Duration("took", took),
			slog.String("error", err.Error()))
		return result, err
	}

	slog.Debug("Query executed",
		slog.String("type", "db"),
		slog.String("query", query),
		slog.Duration("took", took),
		slog.Int64("affected_rows", result.RowsAffected()))
	return result, nil
}

// Tables lists the models in creation order.
var Tables = []any{
	(*models.Listing)(nil),
	(*models.Auction)(nil),
	(*models.Bid)(nil),
	(*models.BidRaise)(nil),
	(*models.Sale)(nil),
	(*models.SaleInterest)(nil),
}

// Indexes backs the sweep query and the ordered bid scans. Unique ones guard
// against a second winner and repeated buy interest.
var Indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_auctions_status_deadline ON auctions(status, deadline);",
	"CREATE INDEX IF NOT EXISTS idx_auctions_active ON auctions(deadline) WHERE status = 'active';",
	"CREATE INDEX IF NOT EXISTS idx_bids_auction_order ON bids(auction_id, amount DESC, created_at ASC, id ASC);",
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_bids_one_winner ON bids(auction_id) WHERE winning;",
	"CREATE INDEX IF NOT EXISTS idx_bid_raises_auction ON bid_raises(auction_id, created_at DESC);",
	"CREATE INDEX IF NOT EXISTS idx_listings_seller ON listings(seller_id);",
	"CREATE INDEX IF NOT EXISTS idx_sales_status ON sales(status);",
	"CREATE UNIQUE INDEX IF NOT EXISTS uq_sale_interests_sale_buyer ON sale_interests(sale_id, buyer_id);",
}

// InitializeSchema creates tables and indexes if they do not exist.
func (db *DB) InitializeSchema(ctx context.Context) error {
	for _, model := range Tables {
		_, err := db.bunDB.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	for _, idx := range Indexes {
		if _, err := db.ExecWithLog(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	slog.Info("Database schema ready",
		slog.String("type", "db"),
		slog.Int("tables", len(Tables)))
	return nil
}
