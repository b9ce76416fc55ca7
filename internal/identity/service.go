package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	repo      *Repository
	jwtSecret string
}

type chatClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func NewService(repo *Repository, secret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: secret,
	}
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashedPwd),
	}

	if _, err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	return &User{ID: u.ID, Name: u.Name, Email: u.Email}, nil
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	u, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, chatClaims{
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "studio-chat",
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	})

	ss, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	membership, err := s.repo.GetMembership(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken: ss,
		ID:          u.ID,
		Name:        u.Name,
		Role:        membership.Role,
	}, nil
}

// ValidateToken checks the signature and expiry and returns the subject
// user ID and display name.
func (s *Service) ValidateToken(tokenString string) (string, string, error) {
	claims := &chatClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", "", err
	}
	if !token.Valid {
		return "", "", fmt.Errorf("invalid token")
	}

	return claims.Subject, claims.Name, nil
}

// Resolve builds the full identity for a validated user: profile plus role
// claim. A client-role identity is pinned to its own client here; the chat
// core treats the result as read-only.
func (s *Service) Resolve(ctx context.Context, userID string) (Identity, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve identity: %w", err)
	}

	membership, err := s.repo.GetMembership(ctx, userID)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve membership: %w", err)
	}

	name := u.Name
	if name == "" {
		name = u.Email
	}

	return Identity{
		UserID:         u.ID,
		DisplayName:    name,
		Email:          u.Email,
		Role:           membership.Role,
		ClientID:       membership.ClientID,
		IsStudioMember: membership.Role.IsStudio(),
	}, nil
}

func (s *Service) SearchUsers(ctx context.Context, query string) ([]User, error) {
	return s.repo.SearchUsers(ctx, query)
}
