package domain

import (
	"time"
)

// Auction is a time-boxed sale whose current price only moves upward.
type Auction struct {
	ID            string    `json:"id" db:"id"`
	SellerID      string    `json:"seller_id" db:"seller_id"`
	Title         string    `json:"title" db:"title"`
	Description   string    `json:"description" db:"description"`
	ImageURL      string    `json:"image_url,omitempty" db:"image_url"`
	StartingPrice float64   `json:"starting_price" db:"starting_price"`
	CurrentPrice  float64   `json:"current_price" db:"current_price"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	ExpiresAt     time.Time `json:"expires_at" db:"expires_at"`
	IsClosed      bool      `json:"is_closed" db:"is_closed"`
	ChosenBidID   *string   `json:"chosen_bid_id,omitempty" db:"chosen_bid_id"`
}

// IsExpired reports whether the expiry time has been reached at now.
func (a *Auction) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// IsActive reports whether the auction still accepts bids at now.
func (a *Auction) IsActive(now time.Time) bool {
	return !a.IsClosed && !a.IsExpired(now)
}

// IsSeller reports whether userID owns the auction.
func (a *Auction) IsSeller(userID string) bool {
	return userID != "" && a.SellerID == userID
}

// Bid is an immutable offer placed on an auction.
type Bid struct {
	ID        string    `json:"id" db:"id"`
	AuctionID string    `json:"auction_id" db:"auction_id"`
	BidderID  string    `json:"bidder_id" db:"bidder_id"`
	Amount    float64   `json:"amount" db:"amount"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BidWithBidder is a bid joined with its bidder's display name.
type BidWithBidder struct {
	Bid
	BidderName string `json:"bidder_name"`
}
