package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"pianote/internal/domain"
	"pianote/internal/repository"

	"go.uber.org/zap"
)

const (
	MaxTitleLength     = 200
	DefaultDurationHrs = 24
)

// CreateAuctionInput carries the seller-supplied fields of a new auction.
// A zero DurationHours uses the configured default.
type CreateAuctionInput struct {
	Title         string
	Description   string
	ImageURL      string
	StartingPrice float64
	DurationHours int
}

// AuctionListing splits open auctions by ownership for one viewer
type AuctionListing struct {
	UserAuctions  []*domain.Auction `json:"user_auctions"`
	OtherAuctions []*domain.Auction `json:"other_auctions"`
}

// AuctionDetail is an auction with its bids, newest first
type AuctionDetail struct {
	Auction  *domain.Auction         `json:"auction"`
	Bids     []*domain.BidWithBidder `json:"bids"`
	IsSeller bool                    `json:"is_seller"`
	IsActive bool                    `json:"is_active"`
}

// AuctionService defines the interface for auction business logic
type AuctionService interface {
	Create(ctx context.Context, sellerID string, in CreateAuctionInput) (*domain.Auction, error)
	List(ctx context.Context, viewerID string) (*AuctionListing, error)
	Get(ctx context.Context, auctionID, viewerID string) (*AuctionDetail, error)
	// Close records the winner and closes the auction for good. An empty
	// chosenBidID selects the highest bid.
	Close(ctx context.Context, auctionID, actorID, chosenBidID string) (*domain.Bid, error)
}

type auctionService struct {
	auctionRepo     repository.AuctionRepository
	bidRepo         repository.BidRepository
	publisher       EventPublisher
	defaultDuration int
	logger          *zap.Logger
	clock           func() time.Time
}

// NewAuctionService creates a new instance of AuctionService
func NewAuctionService(
	auctionRepo repository.AuctionRepository,
	bidRepo repository.BidRepository,
	publisher EventPublisher,
	defaultDurationHours int,
	logger *zap.Logger,
) AuctionService {
	if defaultDurationHours < 1 {
		defaultDurationHours = DefaultDurationHrs
	}
	return &auctionService{
		auctionRepo:     auctionRepo,
		bidRepo:         bidRepo,
		publisher:       publisher,
		defaultDuration: defaultDurationHours,
		logger:          logger,
		clock:           time.Now,
	}
}

// Create opens a new auction priced at its starting price
func (s *auctionService) Create(ctx context.Context, sellerID string, in CreateAuctionInput) (*domain.Auction, error) {
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidAuction)
	case utf8.RuneCountInString(title) > MaxTitleLength:
		return nil, fmt.Errorf("%w: title must be at most %d characters", ErrInvalidAuction, MaxTitleLength)
	case !validAmount(in.StartingPrice):
		return nil, fmt.Errorf("%w: starting price must be a positive number", ErrInvalidAuction)
	case in.DurationHours < 0:
		return nil, fmt.Errorf("%w: duration must be at least one hour", ErrInvalidAuction)
	}

	duration := in.DurationHours
	if duration == 0 {
		duration = s.defaultDuration
	}

	now := s.clock()
	auction := &domain.Auction{
		ID:            domain.NewObjectID(),
		SellerID:      sellerID,
		Title:         title,
		Description:   in.Description,
		ImageURL:      in.ImageURL,
		StartingPrice: in.StartingPrice,
		CurrentPrice:  in.StartingPrice,
		CreatedAt:     now,
		ExpiresAt:     now.Add(time.Duration(duration) * time.Hour),
	}

	if err := s.auctionRepo.Create(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	s.logger.Info("Auction created",
		zap.String("auction_id", auction.ID),
		zap.String("seller_id", sellerID),
		zap.Float64("starting_price", auction.StartingPrice),
		zap.Time("expires_at", auction.ExpiresAt),
	)

	return auction, nil
}

// List returns open auctions. The viewer's own auctions include expired ones
// so they can still be closed; everyone else's are active only.
func (s *auctionService) List(ctx context.Context, viewerID string) (*AuctionListing, error) {
	now := s.clock()
	listing := &AuctionListing{UserAuctions: []*domain.Auction{}}

	if viewerID != "" {
		own, err := s.auctionRepo.List(ctx, repository.AuctionFilter{SellerID: viewerID})
		if err != nil {
			return nil, fmt.Errorf("failed to list user auctions: %w", err)
		}
		listing.UserAuctions = own
	}

	others, err := s.auctionRepo.List(ctx, repository.AuctionFilter{
		ExcludeSellerID: viewerID,
		ActiveAt:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	listing.OtherAuctions = others

	return listing, nil
}

// Get returns one auction and its bids
func (s *auctionService) Get(ctx context.Context, auctionID, viewerID string) (*AuctionDetail, error) {
	auction, err := s.findAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	bids, err := s.bidRepo.ListByAuction(ctx, auction.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}

	return &AuctionDetail{
		Auction:  auction,
		Bids:     bids,
		IsSeller: auction.IsSeller(viewerID),
		IsActive: auction.IsActive(s.clock()),
	}, nil
}

// Close is guarded on the price observed at entry, so a bid committing
// between choosing the winner and closing makes the close fail instead.
func (s *auctionService) Close(ctx context.Context, auctionID, actorID, chosenBidID string) (*domain.Bid, error) {
	auction, err := s.findAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if !auction.IsSeller(actorID) {
		return nil, ErrForbidden
	}
	if auction.IsClosed {
		return nil, ErrAuctionAlreadyClosed
	}

	winner, err := s.chooseWinner(ctx, auction, chosenBidID)
	if err != nil {
		return nil, err
	}

	if err := s.auctionRepo.Close(ctx, auction.ID, winner.ID, auction.CurrentPrice); err != nil {
		if !errors.Is(err, repository.ErrStaleAuction) {
			return nil, fmt.Errorf("failed to close auction: %w", err)
		}
		current, findErr := s.findAuction(ctx, auction.ID)
		if findErr != nil {
			return nil, findErr
		}
		if current.IsClosed {
			return nil, ErrAuctionAlreadyClosed
		}
		return nil, ErrConcurrentModification
	}

	s.logger.Info("Auction closed",
		zap.String("auction_id", auction.ID),
		zap.String("bid_id", winner.ID),
		zap.String("bidder_id", winner.BidderID),
		zap.Float64("amount", winner.Amount),
		zap.Bool("explicit", chosenBidID != ""),
	)

	publish(ctx, s.publisher, s.logger, domain.AuctionEvent{
		Type:       domain.EventAuctionClosed,
		AuctionID:  auction.ID,
		BidID:      winner.ID,
		BidderID:   winner.BidderID,
		Amount:     winner.Amount,
		OccurredAt: s.clock(),
	})

	return winner, nil
}

func (s *auctionService) chooseWinner(ctx context.Context, auction *domain.Auction, chosenBidID string) (*domain.Bid, error) {
	if chosenBidID != "" {
		bid, err := s.bidRepo.FindByID(ctx, chosenBidID)
		if err != nil {
			if errors.Is(err, repository.ErrBidNotFound) {
				return nil, ErrBidNotFound
			}
			return nil, fmt.Errorf("failed to load bid: %w", err)
		}
		// a bid on another auction is reported as absent from this one
		if bid.AuctionID != auction.ID {
			return nil, ErrBidNotFound
		}
		return bid, nil
	}

	bid, err := s.bidRepo.FindHighestByAuction(ctx, auction.ID)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, ErrNoBids
		}
		return nil, fmt.Errorf("failed to load highest bid: %w", err)
	}
	return bid, nil
}

func (s *auctionService) findAuction(ctx context.Context, id string) (*domain.Auction, error) {
	auction, err := s.auctionRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAuctionNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to load auction: %w", err)
	}
	return auction, nil
}
