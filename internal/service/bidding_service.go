package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"pianote/internal/domain"
	"pianote/internal/repository"

	"go.uber.org/zap"
)

// DisplayTimeLayout is the layout of timestamps returned to bidders
const DisplayTimeLayout = "2006-01-02 15:04:05"

// EventPublisher fans committed auction changes out to listeners
type EventPublisher interface {
	Publish(ctx context.Context, event domain.AuctionEvent) error
}

// BidSummary is returned to the bidder after an accepted bid
type BidSummary struct {
	ID         string  `json:"id"`
	BidderName string  `json:"bidder_name"`
	Amount     float64 `json:"amount"`
	CreatedAt  string  `json:"created_at"`
}

// BiddingService places bids with an optimistic price advance
type BiddingService interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (*BidSummary, error)
}

type biddingService struct {
	auctionRepo repository.AuctionRepository
	bidRepo     repository.BidRepository
	userRepo    repository.UserRepository
	tx          repository.Transactor
	publisher   EventPublisher
	location    *time.Location
	logger      *zap.Logger
	clock       func() time.Time
}

// NewBiddingService creates a new instance of BiddingService.
// A nil location renders timestamps in UTC.
func NewBiddingService(
	auctionRepo repository.AuctionRepository,
	bidRepo repository.BidRepository,
	userRepo repository.UserRepository,
	tx repository.Transactor,
	publisher EventPublisher,
	location *time.Location,
	logger *zap.Logger,
) BiddingService {
	if location == nil {
		location = time.UTC
	}
	return &biddingService{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		userRepo:    userRepo,
		tx:          tx,
		publisher:   publisher,
		location:    location,
		logger:      logger,
		clock:       time.Now,
	}
}

// PlaceBid validates the bid against the price read at entry, then advances
// the price from that value to amount and records the bid in one transaction.
// Losing the advance yields ErrConcurrentModification and writes nothing.
func (s *biddingService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (*BidSummary, error) {
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}

	auction, err := s.auctionRepo.FindByID(ctx, auctionID)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to load auction: %w", err)
	}

	now := s.clock()
	if !auction.IsActive(now) {
		return nil, ErrAuctionClosed
	}

	minValid := auction.CurrentPrice
	if amount <= minValid {
		return nil, ErrInvalidAmount
	}

	bidder, err := s.userRepo.FindByID(ctx, bidderID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("failed to load bidder: %w", err)
	}

	bid := &domain.Bid{
		ID:        domain.NewObjectID(),
		AuctionID: auction.ID,
		BidderID:  bidder.ID,
		Amount:    amount,
		CreatedAt: now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		advanced, err := s.auctionRepo.ConditionalAdvance(ctx, auction.ID, minValid, amount)
		if err != nil {
			return err
		}
		if advanced == 0 {
			return ErrConcurrentModification
		}
		return s.bidRepo.Create(ctx, bid)
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			s.logger.Info("Bid lost price race",
				zap.String("auction_id", auction.ID),
				zap.String("bidder_id", bidder.ID),
				zap.Float64("expected_price", minValid),
				zap.Float64("amount", amount),
			)
			return nil, err
		}
		return nil, fmt.Errorf("failed to place bid: %w", err)
	}

	s.logger.Info("Bid placed",
		zap.String("auction_id", auction.ID),
		zap.String("bid_id", bid.ID),
		zap.String("bidder_id", bidder.ID),
		zap.Float64("amount", amount),
	)

	publish(ctx, s.publisher, s.logger, domain.AuctionEvent{
		Type:       domain.EventBidPlaced,
		AuctionID:  auction.ID,
		BidID:      bid.ID,
		BidderID:   bidder.ID,
		Amount:     amount,
		OccurredAt: now,
	})

	return &BidSummary{
		ID:         bid.ID,
		BidderName: bidder.FullName,
		Amount:     bid.Amount,
		CreatedAt:  bid.CreatedAt.In(s.location).Format(DisplayTimeLayout),
	}, nil
}

func validAmount(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// publish is best-effort: a failure is logged and never reaches the caller
func publish(ctx context.Context, p EventPublisher, logger *zap.Logger, event domain.AuctionEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish auction event",
			zap.String("type", string(event.Type)),
			zap.String("auction_id", event.AuctionID),
			zap.Error(err),
		)
	}
}
