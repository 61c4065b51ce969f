package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	AuctionOpened    Type = "auction.opened"
	AuctionChanged   Type = "auction.changed"
	AuctionFinished  Type = "auction.finished"
	AuctionCancelled Type = "auction.cancelled"
)

// Event is a lifecycle notification for one auction. Consumers must tolerate
// duplicates; EventID lets them deduplicate.
type Event struct {
	EventID      string    `json:"event_id"`
	Type         Type      `json:"type"`
	AuctionID    int64     `json:"auction_id"`
	ListingID    int64     `json:"listing_id"`
	Status       string    `json:"status"`
	CurrentPrice int64     `json:"current_price"`
	Deadline     time.Time `json:"deadline,omitempty"`
	BidderID     string    `json:"bidder_id,omitempty"`
	WinnerID     string    `json:"winner_id,omitempty"`
	BidCount     int       `json:"bid_count"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewEvent(t Type, auctionID int64) *Event {
	return &Event{
		EventID:   uuid.New().String(),
		Type:      t,
		AuctionID: auctionID,
		Timestamp: time.Now().UTC(),
	}
}

// Subject is the routing key, e.g. "auction.finished.42".
func (e *Event) Subject() string {
	return fmt.Sprintf("%s.%d", e.Type, e.AuctionID)
}

func (e *Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", e.EventID, err)
	}
	return data, nil
}

// Publisher delivers lifecycle events on a best-effort basis.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, *Event) error { return nil }
func (Nop) Close() error                          { return nil }
