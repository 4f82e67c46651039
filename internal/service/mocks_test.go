package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"pianote/internal/domain"
	"pianote/internal/repository"
)

// Mock repositories for testing

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return repository.ErrUsernameTaken
		}
		if u.Email == user.Email {
			return repository.ErrUserAlreadyExists
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) find(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Username == username })
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Email == email })
}

func (m *mockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func (m *mockUserRepository) add(id, fullName string) *domain.User {
	u := &domain.User{ID: id, Username: id, FullName: fullName, Email: id + "@example.com"}
	m.mu.Lock()
	m.users[id] = u
	m.mu.Unlock()
	return u
}

type mockRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	copied := *refreshToken
	return &copied, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return repository.ErrRefreshTokenRevoked
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) Rotate(ctx context.Context, current string, next *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	refreshToken, exists := m.tokens[current]
	switch {
	case !exists:
		return repository.ErrRefreshTokenNotFound
	case refreshToken.Revoked:
		return repository.ErrRefreshTokenRevoked
	case refreshToken.IsExpired(next.CreatedAt):
		return repository.ErrRefreshTokenExpired
	}
	refreshToken.Revoked = true
	next.UserID = refreshToken.UserID
	m.tokens[next.Token] = next
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var revoked int64
	for _, t := range m.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			revoked++
		}
	}
	return revoked, nil
}

func (m *mockRefreshTokenRepository) live(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tokens {
		if t.UserID == userID && !t.Revoked {
			n++
		}
	}
	return n
}

// mockAuctionRepository stores copies so callers never share state with it.
// ConditionalAdvance and Close compare and swap under the mutex.
type mockAuctionRepository struct {
	mu       sync.Mutex
	auctions map[string]domain.Auction
	// afterFind runs once, after the next FindByID, to interleave a competing writer
	afterFind func()
}

func newMockAuctionRepository() *mockAuctionRepository {
	return &mockAuctionRepository{auctions: make(map[string]domain.Auction)}
}

func (m *mockAuctionRepository) Create(ctx context.Context, auction *domain.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auctions[auction.ID] = *auction
	return nil
}

func (m *mockAuctionRepository) FindByID(ctx context.Context, id string) (*domain.Auction, error) {
	m.mu.Lock()
	a, ok := m.auctions[id]
	hook := m.afterFind
	m.afterFind = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return nil, repository.ErrAuctionNotFound
	}
	return &a, nil
}

func (m *mockAuctionRepository) List(ctx context.Context, filter repository.AuctionFilter) ([]*domain.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*domain.Auction{}
	for _, a := range m.auctions {
		a := a
		if !filter.IncludeClosed && a.IsClosed {
			continue
		}
		if filter.SellerID != "" && a.SellerID != filter.SellerID {
			continue
		}
		if filter.ExcludeSellerID != "" && a.SellerID == filter.ExcludeSellerID {
			continue
		}
		if !filter.ActiveAt.IsZero() && !a.ExpiresAt.After(filter.ActiveAt) {
			continue
		}
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *mockAuctionRepository) ConditionalAdvance(ctx context.Context, id string, expectedPrice, newPrice float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[id]
	if !ok || a.IsClosed || a.CurrentPrice != expectedPrice {
		return 0, nil
	}
	a.CurrentPrice = newPrice
	m.auctions[id] = a
	return 1, nil
}

func (m *mockAuctionRepository) Close(ctx context.Context, id, chosenBidID string, expectedPrice float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[id]
	if !ok || a.IsClosed || a.CurrentPrice != expectedPrice {
		return repository.ErrStaleAuction
	}
	a.IsClosed = true
	a.ChosenBidID = &chosenBidID
	m.auctions[id] = a
	return nil
}

func (m *mockAuctionRepository) get(id string) domain.Auction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auctions[id]
}

type mockBidRepository struct {
	mu        sync.Mutex
	bids      []domain.Bid
	users     *mockUserRepository
	createErr error
}

func newMockBidRepository(users *mockUserRepository) *mockBidRepository {
	return &mockBidRepository{users: users}
}

func (m *mockBidRepository) Create(ctx context.Context, bid *domain.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.bids = append(m.bids, *bid)
	return nil
}

func (m *mockBidRepository) FindByID(ctx context.Context, id string) (*domain.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bids {
		if b.ID == id {
			b := b
			return &b, nil
		}
	}
	return nil, repository.ErrBidNotFound
}

func (m *mockBidRepository) FindHighestByAuction(ctx context.Context, auctionID string) (*domain.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.Bid
	for i := range m.bids {
		b := m.bids[i]
		if b.AuctionID != auctionID {
			continue
		}
		if best == nil || b.Amount > best.Amount ||
			(b.Amount == best.Amount && b.CreatedAt.Before(best.CreatedAt)) ||
			(b.Amount == best.Amount && b.CreatedAt.Equal(best.CreatedAt) && b.ID < best.ID) {
			best = &b
		}
	}
	if best == nil {
		return nil, repository.ErrBidNotFound
	}
	return best, nil
}

func (m *mockBidRepository) ListByAuction(ctx context.Context, auctionID string) ([]*domain.BidWithBidder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.BidWithBidder{}
	for i := len(m.bids) - 1; i >= 0; i-- {
		b := m.bids[i]
		if b.AuctionID != auctionID {
			continue
		}
		name := ""
		if u, err := m.users.FindByID(ctx, b.BidderID); err == nil {
			name = u.FullName
		}
		out = append(out, &domain.BidWithBidder{Bid: b, BidderName: name})
	}
	return out, nil
}

func (m *mockBidRepository) forAuction(auctionID string) []domain.Bid {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Bid{}
	for _, b := range m.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	return out
}

type mockNoteRepository struct {
	mu       sync.Mutex
	notes    map[string]domain.Note
	comments []domain.NoteComment
	users    *mockUserRepository
	// lastFilter is the filter of the most recent List call
	lastFilter repository.NoteFilter
}

func newMockNoteRepository(users *mockUserRepository) *mockNoteRepository {
	return &mockNoteRepository{notes: make(map[string]domain.Note), users: users}
}

func (m *mockNoteRepository) Create(ctx context.Context, note *domain.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[note.ID] = *note
	return nil
}

func (m *mockNoteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.DeleteFlag {
		return nil, repository.ErrNoteNotFound
	}
	return &n, nil
}

func (m *mockNoteRepository) List(ctx context.Context, filter repository.NoteFilter) ([]*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter

	out := []*domain.Note{}
	needle := strings.ToLower(filter.NameContains)
	for _, n := range m.notes {
		n := n
		if n.DeleteFlag || !strings.Contains(strings.ToLower(n.Name), needle) {
			continue
		}
		out = append(out, &n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && uint64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockNoteRepository) SoftDelete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.DeleteFlag {
		return repository.ErrNoteNotFound
	}
	n.DeleteFlag = true
	m.notes[id] = n
	return nil
}

func (m *mockNoteRepository) AddComment(ctx context.Context, comment *domain.NoteComment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[comment.NoteID]
	if !ok || n.DeleteFlag {
		return repository.ErrNoteNotFound
	}
	m.comments = append(m.comments, *comment)
	return nil
}

func (m *mockNoteRepository) ListComments(ctx context.Context, noteID string) ([]*domain.NoteCommentWithAuthor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.NoteCommentWithAuthor{}
	for _, c := range m.comments {
		if c.NoteID != noteID {
			continue
		}
		name := ""
		if u, err := m.users.FindByID(ctx, c.UserID); err == nil {
			name = u.FullName
		}
		out = append(out, &domain.NoteCommentWithAuthor{NoteComment: c, AuthorName: name})
	}
	return out, nil
}

func (m *mockNoteRepository) Stats(ctx context.Context) (*domain.SiteStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.SiteStats{}
	for _, n := range m.notes {
		if !n.DeleteFlag {
			stats.Notes++
		}
	}
	for _, c := range m.comments {
		if !m.notes[c.NoteID].DeleteFlag {
			stats.Comments++
		}
	}
	m.users.mu.Lock()
	stats.Users = int64(len(m.users.users))
	m.users.mu.Unlock()
	return stats, nil
}

// passThroughTransactor runs fn directly; atomicity is covered by the repository tests
type passThroughTransactor struct{}

func (passThroughTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.AuctionEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.AuctionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []domain.AuctionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.AuctionEvent(nil), p.events...)
}

var errBoom = errors.New("boom")
