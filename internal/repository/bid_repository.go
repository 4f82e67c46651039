package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pianote/internal/domain"
)

var (
	ErrBidNotFound = errors.New("bid not found")
)

// BidRepository defines the interface for bid data access. Bids are write-once.
type BidRepository interface {
	Create(ctx context.Context, bid *domain.Bid) error
	FindByID(ctx context.Context, id string) (*domain.Bid, error)
	// FindHighestByAuction returns the largest bid, earliest first on ties
	FindHighestByAuction(ctx context.Context, auctionID string) (*domain.Bid, error)
	ListByAuction(ctx context.Context, auctionID string) ([]*domain.BidWithBidder, error)
}

type bidRepository struct {
	db *sql.DB
}

// NewBidRepository creates a new instance of BidRepository
func NewBidRepository(db *sql.DB) BidRepository {
	return &bidRepository{db: db}
}

// Create inserts a new bid using parameterized queries
func (r *bidRepository) Create(ctx context.Context, bid *domain.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, bidder_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		bid.ID,
		bid.AuctionID,
		bid.BidderID,
		bid.Amount,
		bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bid: %w", err)
	}

	return nil
}

func (r *bidRepository) findOne(ctx context.Context, query string, arg string) (*domain.Bid, error) {
	bid := &domain.Bid{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(
		&bid.ID,
		&bid.AuctionID,
		&bid.BidderID,
		&bid.Amount,
		&bid.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBidNotFound
		}
		return nil, err
	}
	return bid, nil
}

// FindByID retrieves a bid by ID
func (r *bidRepository) FindByID(ctx context.Context, id string) (*domain.Bid, error) {
	query := `
		SELECT id, auction_id, bidder_id, amount, created_at
		FROM bids
		WHERE id = $1
	`

	bid, err := r.findOne(ctx, query, id)
	if err != nil && !errors.Is(err, ErrBidNotFound) {
		return nil, fmt.Errorf("failed to find bid by ID: %w", err)
	}
	return bid, err
}

// FindHighestByAuction retrieves the winning candidate for an implicit close
func (r *bidRepository) FindHighestByAuction(ctx context.Context, auctionID string) (*domain.Bid, error) {
	query := `
		SELECT id, auction_id, bidder_id, amount, created_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC, created_at ASC, id ASC
		LIMIT 1
	`

	bid, err := r.findOne(ctx, query, auctionID)
	if err != nil && !errors.Is(err, ErrBidNotFound) {
		return nil, fmt.Errorf("failed to find highest bid: %w", err)
	}
	return bid, err
}

// ListByAuction retrieves an auction's bids newest first with bidder names
func (r *bidRepository) ListByAuction(ctx context.Context, auctionID string) ([]*domain.BidWithBidder, error) {
	query := `
		SELECT b.id, b.auction_id, b.bidder_id, b.amount, b.created_at, u.full_name
		FROM bids b
		JOIN users u ON u.id = b.bidder_id
		WHERE b.auction_id = $1
		ORDER BY b.created_at DESC, b.id DESC
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	bids := []*domain.BidWithBidder{}
	for rows.Next() {
		bid := &domain.BidWithBidder{}
		err := rows.Scan(
			&bid.ID,
			&bid.AuctionID,
			&bid.BidderID,
			&bid.Amount,
			&bid.CreatedAt,
			&bid.BidderName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, bid)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}
