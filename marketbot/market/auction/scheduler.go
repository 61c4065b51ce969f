package auction

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/events"
	"github.com/ellavondegurechaff/marketbot/marketbot/utils"
)

const (
	sweepProcess   = "auction-sweep"
	refreshProcess = "auction-refresh"
)

// Scheduler closes expired auctions and refreshes live announcements. It
// keeps no state of its own: every tick re-reads the store, so overlapping
// ticks and restarts are safe.
type Scheduler struct {
	manager   *Manager
	processes *utils.ProcessGroup
}

func NewScheduler(manager *Manager) *Scheduler {
	return &Scheduler{manager: manager}
}

// Start runs Tick every SweepInterval and RefreshTick every RefreshInterval
// until ctx is cancelled or Shutdown is called.
func (s *Scheduler) Start(ctx context.Context) {
	cfg := s.manager.cfg
	s.processes = utils.NewProcessGroup(ctx)

	s.processes.Go(sweepProcess, func(ctx context.Context) {
		utils.Every(ctx, cfg.SweepInterval, func(ctx context.Context) {
			if _, err := s.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Auction sweep failed",
					slog.String("type", "sys"),
					slog.String("error", err.Error()))
			}
		})
	})
	s.processes.Go(refreshProcess, func(ctx context.Context) {
		utils.Every(ctx, cfg.RefreshInterval, func(ctx context.Context) {
			if _, err := s.RefreshTick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Announcement refresh failed",
					slog.String("type", "sys"),
					slog.String("error", err.Error()))
			}
		})
	})

	slog.Info("Auction scheduler started",
		slog.String("type", "sys"),
		slog.Duration("sweep_interval", cfg.SweepInterval),
		slog.Duration("refresh_interval", cfg.RefreshInterval))
}

func (s *Scheduler) Shutdown(timeout time.Duration) error {
	if s.processes == nil {
		return nil
	}
	err := s.processes.Shutdown(timeout)
	slog.Info("Auction scheduler shutdown completed", slog.String("type", "sys"))
	return err
}

// Tick runs one expiry sweep and returns how many auctions it closed.
// Failures on individual auctions are logged and do not stop the sweep.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	m := s.manager
	expired, err := m.repo.GetExpired(ctx, m.clock.Now())
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	var closed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.SweepConcurrency)
	for _, a := range expired {
		id := a.ID
		g.Go(func() error {
			result, err := s.finish(gctx, id, true)
			if err != nil {
				if errors.Is(err, ErrInvalidState) {
					slog.Debug("Skipping auction no longer active",
						slog.String("type", "sys"),
						slog.Int64("auction_id", id))
					return nil
				}
				slog.Error("Failed to close expired auction",
					slog.String("type", "sys"),
					slog.Int64("auction_id", id),
					slog.String("error", err.Error()))
				return nil
			}
			if result.Closed {
				closed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.Debug("Auction sweep done",
		slog.String("type", "sys"),
		slog.Int("expired", len(expired)),
		slog.Int64("closed", closed.Load()))
	return int(closed.Load()), nil
}

// CloseNow closes an active auction regardless of its deadline and runs the
// same notifications as the sweep.
func (s *Scheduler) CloseNow(ctx context.Context, auctionID int64) (*CloseResult, error) {
	return s.finish(ctx, auctionID, false)
}

func (s *Scheduler) finish(ctx context.Context, auctionID int64, onlyExpired bool) (*CloseResult, error) {
	m := s.manager
	var (
		result *CloseResult
		err    error
	)
	if onlyExpired {
		result, err = m.closeExpired(ctx, auctionID)
	} else {
		result, err = m.Close(ctx, auctionID)
	}
	if err != nil {
		return nil, err
	}
	if result.Closed {
		s.afterClose(ctx, result)
	}
	return result, nil
}

// afterClose runs once per transition to finished.
func (s *Scheduler) afterClose(ctx context.Context, result *CloseResult) {
	m := s.manager
	snap := Snapshot{Auction: *result.Auction, BidCount: result.BidCount, Leading: result.Winner}
	id := snap.Auction.ID

	m.announce(ctx, "finished", id, models.AuctionStatusFinished, m.gateway.AuctionFinished)
	if result.Winner != nil {
		m.notify(ctx, "contacts", id, func(ctx context.Context) error {
			return m.gateway.ExchangeContacts(ctx, snap)
		})
	}
	m.publish(ctx, events.AuctionFinished, snap)
}

// RefreshTick re-renders the announcement of every active auction so the
// remaining time stays current. Each auction is re-read right before its
// edit; one that closed since the listing is left to the close. It returns
// the number refreshed successfully.
func (s *Scheduler) RefreshTick(ctx context.Context) (int, error) {
	m := s.manager
	active, err := m.repo.GetActive(ctx)
	if err != nil {
		return 0, err
	}

	var refreshed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.SweepConcurrency)
	for _, a := range active {
		if a.AnnouncementID == "" {
			continue
		}
		g.Go(func() error {
			if m.announce(gctx, "refresh", a.ID, models.AuctionStatusActive, m.gateway.AuctionChanged) {
				refreshed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(refreshed.Load()), nil
}
