package service

import "errors"

// Auction errors. Transport maps them to HTTP statuses.
var (
	ErrAuctionNotFound        = errors.New("auction not found")
	ErrBidNotFound            = errors.New("bid not found")
	ErrForbidden              = errors.New("only the seller can close this auction")
	ErrInvalidAmount          = errors.New("bid must be greater than the current price")
	ErrAuctionClosed          = errors.New("auction is closed or has expired")
	ErrAuctionAlreadyClosed   = errors.New("auction is already closed")
	ErrConcurrentModification = errors.New("auction price changed, please retry with a new amount")
	ErrNoBids                 = errors.New("auction has no bids")
	ErrInvalidAuction         = errors.New("invalid auction")
)

// ErrUnknownUser means the authenticated caller's account no longer exists
var ErrUnknownUser = errors.New("user account no longer exists")

// Note errors
var (
	ErrNoteNotFound   = errors.New("note not found")
	ErrInvalidNote    = errors.New("invalid note")
	ErrInvalidComment = errors.New("invalid comment")
	ErrNoteForbidden  = errors.New("only the author or an admin can delete this note")
)
