package transport

import (
	"context"
	"net/http"
	"testing"
	"time"

	"pianote/internal/domain"
	"pianote/internal/middleware"
	"pianote/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func bearer(t *testing.T, userID string) string {
	t.Helper()
	return bearerAs(t, userID, domain.RoleUser)
}

func bearerAs(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

type stubAuctionService struct {
	create func(ctx context.Context, sellerID string, in service.CreateAuctionInput) (*domain.Auction, error)
	list   func(ctx context.Context, viewerID string) (*service.AuctionListing, error)
	get    func(ctx context.Context, auctionID, viewerID string) (*service.AuctionDetail, error)
	close  func(ctx context.Context, auctionID, actorID, chosenBidID string) (*domain.Bid, error)
}

func (s *stubAuctionService) Create(ctx context.Context, sellerID string, in service.CreateAuctionInput) (*domain.Auction, error) {
	return s.create(ctx, sellerID, in)
}

func (s *stubAuctionService) List(ctx context.Context, viewerID string) (*service.AuctionListing, error) {
	return s.list(ctx, viewerID)
}

func (s *stubAuctionService) Get(ctx context.Context, auctionID, viewerID string) (*service.AuctionDetail, error) {
	return s.get(ctx, auctionID, viewerID)
}

func (s *stubAuctionService) Close(ctx context.Context, auctionID, actorID, chosenBidID string) (*domain.Bid, error) {
	return s.close(ctx, auctionID, actorID, chosenBidID)
}

type stubBiddingService struct {
	placeBid func(ctx context.Context, auctionID, bidderID string, amount float64) (*service.BidSummary, error)
}

func (s *stubBiddingService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (*service.BidSummary, error) {
	return s.placeBid(ctx, auctionID, bidderID, amount)
}

type stubUserService struct {
	register     func(ctx context.Context, in service.RegisterInput) (*domain.User, error)
	login        func(ctx context.Context, username, password string) (string, string, *domain.User, error)
	logout       func(ctx context.Context, refreshToken string) error
	logoutAll    func(ctx context.Context, userID string) (int64, error)
	refreshToken func(ctx context.Context, refreshToken string) (string, string, error)
	getUserByID  func(ctx context.Context, userID string) (*domain.User, error)
}

func (s *stubUserService) Register(ctx context.Context, in service.RegisterInput) (*domain.User, error) {
	return s.register(ctx, in)
}

func (s *stubUserService) Login(ctx context.Context, username, password string) (string, string, *domain.User, error) {
	return s.login(ctx, username, password)
}

func (s *stubUserService) Logout(ctx context.Context, refreshToken string) error {
	return s.logout(ctx, refreshToken)
}

func (s *stubUserService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	return s.logoutAll(ctx, userID)
}

func (s *stubUserService) RefreshToken(ctx context.Context, refreshToken string) (string, string, error) {
	return s.refreshToken(ctx, refreshToken)
}

func (s *stubUserService) ValidateToken(tokenString string) (*service.Claims, error) {
	return nil, service.ErrInvalidToken
}

func (s *stubUserService) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return s.getUserByID(ctx, userID)
}

type stubNoteService struct {
	list       func(ctx context.Context) ([]*domain.Note, error)
	search     func(ctx context.Context, query string) ([]*domain.Note, error)
	get        func(ctx context.Context, noteID string) (*service.NoteDetail, error)
	create     func(ctx context.Context, creatorID string, in service.CreateNoteInput) (*domain.Note, error)
	delete     func(ctx context.Context, noteID, actorID, role string) error
	addComment func(ctx context.Context, noteID, userID, text string) (*domain.NoteCommentWithAuthor, error)
	stats      func(ctx context.Context) (*domain.SiteStats, error)
}

func (s *stubNoteService) List(ctx context.Context) ([]*domain.Note, error) {
	return s.list(ctx)
}

func (s *stubNoteService) Search(ctx context.Context, query string) ([]*domain.Note, error) {
	return s.search(ctx, query)
}

func (s *stubNoteService) Get(ctx context.Context, noteID string) (*service.NoteDetail, error) {
	return s.get(ctx, noteID)
}

func (s *stubNoteService) Create(ctx context.Context, creatorID string, in service.CreateNoteInput) (*domain.Note, error) {
	return s.create(ctx, creatorID, in)
}

func (s *stubNoteService) Delete(ctx context.Context, noteID, actorID, role string) error {
	return s.delete(ctx, noteID, actorID, role)
}

func (s *stubNoteService) AddComment(ctx context.Context, noteID, userID, text string) (*domain.NoteCommentWithAuthor, error) {
	return s.addComment(ctx, noteID, userID, text)
}

func (s *stubNoteService) Stats(ctx context.Context) (*domain.SiteStats, error) {
	return s.stats(ctx)
}

func newAuctionRouter(auctions service.AuctionService, bidding service.BiddingService) http.Handler {
	logger := zap.NewNop()
	r := chi.NewRouter()
	NewAuctionHandler(auctions, bidding, logger).RegisterRoutes(
		r,
		middleware.AuthMiddleware(testSecret, logger),
		middleware.OptionalAuthMiddleware(testSecret, logger),
		nil,
	)
	return r
}

func newUserRouter(users service.UserService) http.Handler {
	logger := zap.NewNop()
	r := chi.NewRouter()
	NewUserHandler(users, logger).RegisterRoutes(r, middleware.AuthMiddleware(testSecret, logger))
	return r
}

func newNoteRouter(notes service.NoteService) http.Handler {
	logger := zap.NewNop()
	r := chi.NewRouter()
	NewNoteHandler(notes, logger).RegisterRoutes(r, middleware.AuthMiddleware(testSecret, logger))
	return r
}
