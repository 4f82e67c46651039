package repository

import (
	"context"
	"testing"
	"time"

	"pianote/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestBidRepository_FindByID(t *testing.T) {
	ctx := context.Background()
	repo := NewBidRepository(testDB)
	seller := createTestUser(t, "Sally Seller")
	bidder := createTestUser(t, "Alice A")
	auction := createTestAuction(t, seller.ID, 10, time.Hour)

	bid := createTestBid(t, auction.ID, bidder.ID, 25.5, now())

	found, err := repo.FindByID(ctx, bid.ID)
	require.NoError(t, err)
	require.Equal(t, auction.ID, found.AuctionID)
	require.Equal(t, bidder.ID, found.BidderID)
	require.Equal(t, 25.5, found.Amount)
	require.True(t, bid.CreatedAt.Equal(found.CreatedAt))

	_, err = repo.FindByID(ctx, domain.NewObjectID())
	require.ErrorIs(t, err, ErrBidNotFound)
}

func TestBidRepository_FindHighestBreaksTiesByTime(t *testing.T) {
	ctx := context.Background()
	repo := NewBidRepository(testDB)
	seller := createTestUser(t, "Sally Seller")
	bidder := createTestUser(t, "Alice A")
	auction := createTestAuction(t, seller.ID, 10, time.Hour)

	base := now()
	createTestBid(t, auction.ID, bidder.ID, 80, base)
	createTestBid(t, auction.ID, bidder.ID, 95, base.Add(2*time.Second))
	earliest := createTestBid(t, auction.ID, bidder.ID, 95, base.Add(time.Second))
	createTestBid(t, auction.ID, bidder.ID, 60, base.Add(3*time.Second))

	highest, err := repo.FindHighestByAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, earliest.ID, highest.ID)
	require.Equal(t, 95.0, highest.Amount)

	empty := createTestAuction(t, seller.ID, 10, time.Hour)
	_, err = repo.FindHighestByAuction(ctx, empty.ID)
	require.ErrorIs(t, err, ErrBidNotFound)
}

func TestBidRepository_ListByAuctionNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewBidRepository(testDB)
	seller := createTestUser(t, "Sally Seller")
	alice := createTestUser(t, "Alice A")
	bob := createTestUser(t, "Bob B")
	auction := createTestAuction(t, seller.ID, 10, time.Hour)
	other := createTestAuction(t, seller.ID, 10, time.Hour)

	base := now()
	createTestBid(t, auction.ID, alice.ID, 20, base)
	createTestBid(t, auction.ID, bob.ID, 30, base.Add(time.Second))
	createTestBid(t, other.ID, bob.ID, 40, base)

	bids, err := repo.ListByAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, "Bob B", bids[0].BidderName)
	require.Equal(t, 30.0, bids[0].Amount)
	require.Equal(t, "Alice A", bids[1].BidderName)
}

func TestBidRepository_RejectsNonPositiveAmount(t *testing.T) {
	seller := createTestUser(t, "Sally Seller")
	bidder := createTestUser(t, "Alice A")
	auction := createTestAuction(t, seller.ID, 10, time.Hour)

	err := NewBidRepository(testDB).Create(context.Background(), &domain.Bid{
		ID: domain.NewObjectID(), AuctionID: auction.ID, BidderID: bidder.ID, Amount: 0, CreatedAt: now(),
	})
	require.Error(t, err)
}
