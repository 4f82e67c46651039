package domain

import "time"

// AuctionEventType names a committed state change
type AuctionEventType string

const (
	EventBidPlaced     AuctionEventType = "bid_placed"
	EventAuctionClosed AuctionEventType = "auction_closed"
)

// AuctionEvent is emitted after a bid or close has been committed
type AuctionEvent struct {
	Type       AuctionEventType `json:"type"`
	AuctionID  string           `json:"auction_id"`
	BidID      string           `json:"bid_id"`
	BidderID   string           `json:"bidder_id"`
	Amount     float64          `json:"amount"`
	OccurredAt time.Time        `json:"occurred_at"`
}
