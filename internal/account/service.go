// Package account upgrades guest profiles into password-backed client
// accounts, the follow-up flow offered after a confirmed booking.
package account

import (
	"context"
	"fmt"

	"github.com/alexedwards/argon2id"

	"github.com/stillpoint/massage-bookings/internal/domain"
	"github.com/stillpoint/massage-bookings/internal/utils"
	"github.com/stillpoint/massage-bookings/pkg/auth"
	"github.com/stillpoint/massage-bookings/pkg/config"
	"github.com/stillpoint/massage-bookings/pkg/logger"
)

type ClientsRepo interface {
	FindByEmail(ctx context.Context, email string) (*domain.Client, error)
	SetCredentials(ctx context.Context, clientID int64, passwordHash string) error
	CredentialsByEmail(ctx context.Context, email string) (clientID int64, passwordHash string, err error)
}

type CreateAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	ClientID    int64  `json:"client_id"`
	AccessToken string `json:"access_token"`
}

type Service struct {
	clients ClientsRepo
	cfg     *config.Config
}

func NewService(clients ClientsRepo, cfg *config.Config) *Service {
	return &Service{clients: clients, cfg: cfg}
}

// CreateFromBooking sets a password on the profile a guest booking just
// created. The profile must already exist; this never creates identities
// out of thin air.
func (s *Service) CreateFromBooking(ctx context.Context, req *CreateAccountRequest) (*SessionResponse, error) {
	email := utils.NormalizeEmail(req.Email)
	if !utils.IsValidEmail(email) {
		return nil, fmt.Errorf("a valid email address is required")
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	client, err := s.clients.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("no booking found for this email")
	}

	existingID, existingHash, err := s.clients.CredentialsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check credentials: %w", err)
	}
	if existingID != 0 && existingHash != "" {
		return nil, fmt.Errorf("an account already exists for this email")
	}

	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.clients.SetCredentials(ctx, client.ID, hash); err != nil {
		return nil, fmt.Errorf("failed to store credentials: %w", err)
	}

	logger.InfoContext(ctx, "Client account created", "client_id", client.ID)
	return s.issueSession(client.ID, email)
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*SessionResponse, error) {
	email := utils.NormalizeEmail(req.Email)

	clientID, hash, err := s.clients.CredentialsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check credentials: %w", err)
	}
	if clientID == 0 || hash == "" {
		return nil, fmt.Errorf("invalid email or password")
	}

	match, err := argon2id.ComparePasswordAndHash(req.Password, hash)
	if err != nil || !match {
		return nil, fmt.Errorf("invalid email or password")
	}

	return s.issueSession(clientID, email)
}

func (s *Service) issueSession(clientID int64, email string) (*SessionResponse, error) {
	token, err := auth.NewClientSession(clientID, email, s.cfg.Auth.JWTSecret, s.cfg.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}
	return &SessionResponse{ClientID: clientID, AccessToken: token}, nil
}
