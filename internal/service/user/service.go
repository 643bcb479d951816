package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/internal/repository"
	"github.com/jwalitptl/patient-intake/pkg/auth"
	"github.com/jwalitptl/patient-intake/pkg/logger"
)

var ErrUserNotFound = errors.New("user not found")

type UserServicer interface {
	CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.CreateUserResponse, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type Service struct {
	repo   repository.UserRepository
	tokens auth.JWTService
	logger *logger.Logger
}

func NewService(repo repository.UserRepository, tokens auth.JWTService, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:   repo,
		tokens: tokens,
		logger: log,
	}
}

// CreateUser registers a new account. An existing account with the same
// email is returned instead of failing, together with a fresh token.
func (s *Service) CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.CreateUserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.respond(existing, false)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user := &model.User{
		Base:  model.Base{ID: uuid.New()},
		Name:  strings.TrimSpace(req.Name),
		Email: email,
		Phone: strings.TrimSpace(req.Phone),
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user event: %w", err)
	}
	evt := &model.OutboxEvent{EventType: model.EventUserCreated, Payload: payload}

	if err := s.repo.Create(ctx, user, evt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// lost a race with a concurrent create for the same email
			existing, getErr := s.repo.GetByEmail(ctx, email)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load existing user: %w", getErr)
			}
			return s.respond(existing, false)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User created", "user_id", user.ID.String())
	return s.respond(user, true)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *Service) respond(user *model.User, created bool) (*model.CreateUserResponse, error) {
	token, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &model.CreateUserResponse{User: user, Token: token, Created: created}, nil
}
