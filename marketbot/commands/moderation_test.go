package commands

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/ellavondegurechaff/marketbot/marketbot/database/models"
	"github.com/ellavondegurechaff/marketbot/marketbot/database/repositories"
	"github.com/ellavondegurechaff/marketbot/marketbot/market/auction"
)

type announcements struct {
	next    int
	live    []string
	deleted []string
}

func (a *announcements) publish(context.Context) (string, error) {
	a.next++
	id := strconv.Itoa(a.next)
	a.live = append(a.live, id)
	return id, nil
}

func (a *announcements) retract(_ context.Context, messageID string) error {
	a.deleted = append(a.deleted, messageID)
	return nil
}

func TestSecondApprovalDeletesItsAnnouncement(t *testing.T) {
	ctx := context.Background()
	manager := auction.NewManager(repositories.NewMemoryStore().Auctions(), nil, auction.DefaultConfig())
	a, err := manager.Create(ctx, 1, 100)
	assert.NoError(t, err)

	posts := &announcements{}
	activate := func(ctx context.Context, messageID string) error {
		_, err := manager.Activate(ctx, a.ID, messageID)
		return err
	}

	assert.NoError(t, publishAndActivate(ctx, "auction", a.ID, posts.publish, activate, posts.retract))
	check.Equal(t, 0, len(posts.deleted))

	// A second moderator approving the same listing posts again and loses.
	err = publishAndActivate(ctx, "auction", a.ID, posts.publish, activate, posts.retract)
	check.True(t, errors.Is(err, auction.ErrInvalidState))
	check.False(t, errors.Is(err, errPublishFailed))
	check.Equal(t, []string{"2"}, posts.deleted)

	snap, err := manager.Get(ctx, a.ID)
	assert.NoError(t, err)
	check.Equal(t, models.AuctionStatusActive, snap.Auction.Status)
	check.Equal(t, "1", snap.Auction.AnnouncementID)
}

func TestPublishFailureSkipsActivation(t *testing.T) {
	posts := &announcements{}
	activated := false

	err := publishAndActivate(context.Background(), "sale", 3,
		func(context.Context) (string, error) { return "", errors.New("missing access") },
		func(context.Context, string) error { activated = true; return nil },
		posts.retract)
	check.True(t, errors.Is(err, errPublishFailed))
	check.False(t, activated)
	check.Equal(t, 0, len(posts.deleted))
}

func TestRetractFailureKeepsActivationError(t *testing.T) {
	refused := errors.New("already active")
	err := publishAndActivate(context.Background(), "sale", 3,
		func(context.Context) (string, error) { return "77", nil },
		func(context.Context, string) error { return refused },
		func(context.Context, string) error { return errors.New("rate limited") })
	check.True(t, errors.Is(err, refused))
}
