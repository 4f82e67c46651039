package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pianote/internal/domain"
	"pianote/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	DefaultAccessTokenExpiration  = 15 * time.Minute
	DefaultRefreshTokenExpiration = 7 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
)

// RegisterInput carries the fields of a new account
type RegisterInput struct {
	Username    string
	FullName    string
	Email       string
	Password    string
	PhoneNumber string
}

// UserService defines the interface for user business logic
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, username, password string) (accessToken, refreshToken string, user *domain.User, err error)
	Logout(ctx context.Context, refreshToken string) error
	// LogoutAll revokes every refresh token of the user and returns how many were live
	LogoutAll(ctx context.Context, userID string) (int64, error)
	// RefreshToken exchanges a refresh token for a new access token and its successor
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken, newRefreshToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
}

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenTTL sets access and refresh token lifetimes. Zero values fall back to defaults.
type TokenTTL struct {
	Access  time.Duration
	Refresh time.Duration
}

type userService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	jwtSecret        string
	ttl              TokenTTL
	clock            func() time.Time
}

// NewUserService creates a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	jwtSecret string,
	ttl TokenTTL,
) UserService {
	if ttl.Access <= 0 {
		ttl.Access = DefaultAccessTokenExpiration
	}
	if ttl.Refresh <= 0 {
		ttl.Refresh = DefaultRefreshTokenExpiration
	}
	return &userService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		jwtSecret:        jwtSecret,
		ttl:              ttl,
		clock:            time.Now,
	}
}

// Register creates a new user account with hashed password
func (s *userService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if _, err := s.userRepo.FindByUsername(ctx, in.Username); err == nil {
		return nil, repository.ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	if _, err := s.userRepo.FindByEmail(ctx, in.Email); err == nil {
		return nil, repository.ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hashedPassword, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.clock()
	user := &domain.User{
		ID:           domain.NewObjectID(),
		Username:     in.Username,
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hashedPassword,
		PhoneNumber:  in.PhoneNumber,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The unique constraints still decide a registration race
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) || errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login authenticates a user and returns JWT tokens
func (s *userService) Login(ctx context.Context, username, password string) (accessToken, refreshToken string, user *domain.User, err error) {
	user, err = s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.verifyPassword(user.PasswordHash, password); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	accessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = s.generateRefreshToken(ctx, user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, user, nil
}

// Logout invalidates the refresh token
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	err := s.refreshTokenRepo.Revoke(ctx, refreshToken)
	switch {
	case err == nil,
		errors.Is(err, repository.ErrRefreshTokenNotFound),
		errors.Is(err, repository.ErrRefreshTokenRevoked):
		// already logged out
		return nil
	default:
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
}

func (s *userService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	revoked, err := s.refreshTokenRepo.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return revoked, nil
}

// RefreshToken rotates the refresh token. Presenting a token that was already
// exchanged or logged out revokes every token of its user.
func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (string, string, error) {
	stored, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return "", "", ErrInvalidToken
		}
		return "", "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if stored.Revoked {
		if _, err := s.refreshTokenRepo.RevokeAllForUser(ctx, stored.UserID); err != nil {
			return "", "", fmt.Errorf("failed to revoke reused token family: %w", err)
		}
		return "", "", ErrInvalidToken
	}

	now := s.clock()
	if stored.IsExpired(now) {
		return "", "", ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", "", ErrInvalidToken
		}
		return "", "", fmt.Errorf("failed to find user: %w", err)
	}

	next := s.newRefreshToken(user, now)
	if err := s.refreshTokenRepo.Rotate(ctx, refreshTokenString, next); err != nil {
		switch {
		case errors.Is(err, repository.ErrRefreshTokenExpired):
			return "", "", ErrTokenExpired
		case errors.Is(err, repository.ErrRefreshTokenRevoked), errors.Is(err, repository.ErrRefreshTokenNotFound):
			// a concurrent exchange won
			return "", "", ErrInvalidToken
		}
		return "", "", fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return accessToken, next.Token, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *userService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *userService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *userService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// generateAccessToken generates a JWT access token with user ID and role claims
func (s *userService) generateAccessToken(user *domain.User) (string, error) {
	now := s.clock()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl.Access)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *userService) newRefreshToken(user *domain.User, now time.Time) *domain.RefreshToken {
	return &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.ttl.Refresh),
		CreatedAt: now,
	}
}

// generateRefreshToken issues a refresh token and stores it
func (s *userService) generateRefreshToken(ctx context.Context, user *domain.User) (string, error) {
	refreshToken := s.newRefreshToken(user, s.clock())
	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}
	return refreshToken.Token, nil
}
