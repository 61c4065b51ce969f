package handlers

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/peterldowns/testy/check"
)

var alice = discord.User{ID: 1, Username: "alice"}

func TestObservePassesResult(t *testing.T) {
	check.NoError(t, observeWithin("Command", "auction", alice, time.Second, func() error { return nil }))

	boom := errors.New("boom")
	err := observeWithin("Command", "auction", alice, time.Second, func() error { return boom })
	check.True(t, errors.Is(err, boom))
}

func TestObserveTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	err := observeWithin("Component", "auction-bid", alice, 10*time.Millisecond, func() error {
		<-release
		return nil
	})
	check.Error(t, err)
	check.True(t, strings.Contains(err.Error(), "timed out"))
}
