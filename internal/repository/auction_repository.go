package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pianote/internal/domain"

	sq "github.com/Masterminds/squirrel"
)

var (
	ErrAuctionNotFound = errors.New("auction not found")
	// ErrStaleAuction means a conditional write matched no row: the auction
	// is gone, closed, or its price moved since it was read.
	ErrStaleAuction = errors.New("auction changed since it was read")
)

// AuctionFilter narrows List. Zero values disable a condition.
type AuctionFilter struct {
	SellerID        string
	ExcludeSellerID string
	// ActiveAt keeps only auctions whose expiry is after this instant
	ActiveAt      time.Time
	IncludeClosed bool
}

// AuctionRepository defines the interface for auction data access
type AuctionRepository interface {
	Create(ctx context.Context, auction *domain.Auction) error
	FindByID(ctx context.Context, id string) (*domain.Auction, error)
	List(ctx context.Context, filter AuctionFilter) ([]*domain.Auction, error)
	// ConditionalAdvance moves current_price from expectedPrice to newPrice
	// only while the auction is open and still priced at expectedPrice.
	ConditionalAdvance(ctx context.Context, id string, expectedPrice, newPrice float64) (int64, error)
	// Close marks the auction closed with chosenBidID as winner, guarded the same way.
	Close(ctx context.Context, id, chosenBidID string, expectedPrice float64) error
}

type auctionRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewAuctionRepository creates a new instance of AuctionRepository
func NewAuctionRepository(db *sql.DB) AuctionRepository {
	return &auctionRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const auctionColumns = `id, seller_id, title, description, image_url, starting_price, current_price,
		created_at, expires_at, is_closed, chosen_bid_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	auction := &domain.Auction{}
	var chosenBidID sql.NullString

	err := row.Scan(
		&auction.ID,
		&auction.SellerID,
		&auction.Title,
		&auction.Description,
		&auction.ImageURL,
		&auction.StartingPrice,
		&auction.CurrentPrice,
		&auction.CreatedAt,
		&auction.ExpiresAt,
		&auction.IsClosed,
		&chosenBidID,
	)
	if err != nil {
		return nil, err
	}

	if chosenBidID.Valid {
		auction.ChosenBidID = &chosenBidID.String
	}
	return auction, nil
}

// Create inserts a new auction using parameterized queries
func (r *auctionRepository) Create(ctx context.Context, auction *domain.Auction) error {
	query := `
		INSERT INTO auctions (id, seller_id, title, description, image_url, starting_price, current_price,
			created_at, expires_at, is_closed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := conn(ctx, r.db).ExecContext(
		ctx,
		query,
		auction.ID,
		auction.SellerID,
		auction.Title,
		auction.Description,
		auction.ImageURL,
		auction.StartingPrice,
		auction.CurrentPrice,
		auction.CreatedAt,
		auction.ExpiresAt,
		auction.IsClosed,
	)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}

	return nil
}

// FindByID retrieves an auction by ID
func (r *auctionRepository) FindByID(ctx context.Context, id string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	auction, err := scanAuction(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to find auction by ID: %w", err)
	}

	return auction, nil
}

// List retrieves auctions newest first
func (r *auctionRepository) List(ctx context.Context, filter AuctionFilter) ([]*domain.Auction, error) {
	q := r.builder.
		Select(auctionColumns).
		From("auctions").
		OrderBy("created_at DESC", "id ASC")

	if !filter.IncludeClosed {
		q = q.Where(sq.Eq{"is_closed": false})
	}
	if filter.SellerID != "" {
		q = q.Where(sq.Eq{"seller_id": filter.SellerID})
	}
	if filter.ExcludeSellerID != "" {
		q = q.Where(sq.NotEq{"seller_id": filter.ExcludeSellerID})
	}
	if !filter.ActiveAt.IsZero() {
		q = q.Where(sq.Gt{"expires_at": filter.ActiveAt})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build auction list query: %w", err)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer rows.Close()

	auctions := []*domain.Auction{}
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, auction)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return auctions, nil
}

// ConditionalAdvance is the compare-and-swap on (current_price, is_closed = false)
func (r *auctionRepository) ConditionalAdvance(ctx context.Context, id string, expectedPrice, newPrice float64) (int64, error) {
	query := `
		UPDATE auctions
		SET current_price = $3
		WHERE id = $1 AND current_price = $2 AND is_closed = FALSE
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, expectedPrice, newPrice)
	if err != nil {
		return 0, fmt.Errorf("failed to advance auction price: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// Close records the winner and closes the auction in one conditional update
func (r *auctionRepository) Close(ctx context.Context, id, chosenBidID string, expectedPrice float64) error {
	query := `
		UPDATE auctions
		SET is_closed = TRUE, chosen_bid_id = $2
		WHERE id = $1 AND is_closed = FALSE AND current_price = $3
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, id, chosenBidID, expectedPrice)
	if err != nil {
		return fmt.Errorf("failed to close auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrStaleAuction
	}

	return nil
}
