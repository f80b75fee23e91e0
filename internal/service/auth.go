// Package service implements the credential store, token validation and the
// communication log operations on top of repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/atinyakov/commlog/internal/auth"
	"github.com/atinyakov/commlog/internal/config"
	"github.com/atinyakov/commlog/internal/models"
	"github.com/atinyakov/commlog/internal/validation"
)

// UserRepository defines the persistence operations
// required by the authentication service.
type UserRepository interface {
	// Create inserts a user; a taken username or email yields models.ErrConflict.
	Create(ctx context.Context, u *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByToken finds the user holding the opaque session token.
	GetByToken(ctx context.Context, token string) (*models.User, error)
	// SetToken replaces the stored session token; "" clears it.
	SetToken(ctx context.Context, userID, token string) error
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

// AuthService registers users, checks passwords and validates bearer tokens.
type AuthService struct {
	repo   UserRepository
	signer *auth.Signer
	hasher *auth.Hasher
	scheme string
}

// NewAuthService constructs an AuthService. scheme selects the token handed
// out and accepted: config.SchemeSigned or config.SchemeOpaque.
func NewAuthService(repo UserRepository, signer *auth.Signer, hasher *auth.Hasher, scheme string) *AuthService {
	return &AuthService{repo: repo, signer: signer, hasher: hasher, scheme: scheme}
}

// Register creates a user with the user role and signs it in.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*AuthResult, error) {
	u, err := s.CreateUser(ctx, req, models.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// CreateUser validates req and stores a new user with role. It always sets a
// fresh opaque token on the row.
func (s *AuthService) CreateUser(ctx context.Context, req models.RegisterRequest, role models.Role) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, models.NewValidationError("role", "must be one of: admin, user")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	token, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, err
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Token:        token,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies the password and rotates the opaque token. Unknown users and
// wrong passwords both yield models.ErrInvalidCredentials after a bcrypt
// comparison of the same cost.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*AuthResult, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}

	u, err := s.repo.GetByUsername(ctx, req.Username)
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.hasher.Verify(nil, req.Password)
		return nil, models.ErrInvalidCredentials
	case err != nil:
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !s.hasher.Verify(u.PasswordHash, req.Password) {
		return nil, models.ErrInvalidCredentials
	}

	token, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetToken(ctx, u.ID, token); err != nil {
		return nil, fmt.Errorf("rotate token: %w", err)
	}
	u.Token = token

	return s.issue(u)
}

// Authenticate resolves a bearer credential to an Identity. Every rejection is
// models.ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, credential string) (models.Identity, error) {
	if credential == "" {
		return models.Identity{}, models.ErrUnauthenticated
	}
	if s.scheme != config.SchemeOpaque {
		return s.signer.Verify(credential)
	}

	u, err := s.repo.GetByToken(ctx, credential)
	if errors.Is(err, models.ErrNotFound) {
		return models.Identity{}, models.ErrUnauthenticated
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("lookup token: %w", err)
	}
	return identityOf(u), nil
}

// CurrentUser returns the public projection of the actor's account.
func (s *AuthService) CurrentUser(ctx context.Context, actor models.Identity) (*models.PublicUser, error) {
	u, err := s.repo.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}

// Logout clears the actor's stored opaque token. Signed tokens stay valid
// until they expire.
func (s *AuthService) Logout(ctx context.Context, actor models.Identity) error {
	return s.repo.SetToken(ctx, actor.UserID, "")
}

func (s *AuthService) issue(u *models.User) (*AuthResult, error) {
	token := u.Token
	if s.scheme != config.SchemeOpaque {
		signed, err := s.signer.Issue(identityOf(u))
		if err != nil {
			return nil, err
		}
		token = signed
	}
	return &AuthResult{Token: token, User: u.Public()}, nil
}

func identityOf(u *models.User) models.Identity {
	return models.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}
}
