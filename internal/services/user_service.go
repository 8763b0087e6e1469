package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"eshop_back_end/internal/apperr"
	"eshop_back_end/internal/logger"
	"eshop_back_end/internal/models"
	"eshop_back_end/internal/repository"
	"eshop_back_end/internal/utils"
)

// NewUserInput is the registration / admin creation payload.
type NewUserInput struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6,max=72"`
	Phone     string `json:"phone"`
	IsAdmin   bool   `json:"isAdmin"`
	Street    string `json:"street"`
	Apartment string `json:"apartment"`
	Zip       string `json:"zip"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

// UpdateUserInput sets the fields present in the payload. A new password is re-hashed.
type UpdateUserInput struct {
	Name      *string `json:"name" binding:"omitnil,min=1"`
	Email     *string `json:"email" binding:"omitnil,email"`
	Password  *string `json:"password" binding:"omitnil,min=6,max=72"`
	Phone     *string `json:"phone"`
	IsAdmin   *bool   `json:"isAdmin"`
	Street    *string `json:"street"`
	Apartment *string `json:"apartment"`
	Zip       *string `json:"zip"`
	City      *string `json:"city"`
	Country   *string `json:"country"`
}

type LoginResult struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type UserService struct {
	users    repository.UserStore
	secret   []byte
	tokenTTL time.Duration
	log      *zap.Logger
}

func NewUserService(users repository.UserStore, secret []byte, tokenTTL time.Duration, log *zap.Logger) *UserService {
	return &UserService{users: users, secret: secret, tokenTTL: tokenTTL, log: logger.OrNop(log)}
}

// Register creates a regular account; any isAdmin flag in the payload is ignored.
func (s *UserService) Register(ctx context.Context, in NewUserInput) (models.User, error) {
	in.IsAdmin = false
	return s.create(ctx, in)
}

// CreateUser is the administrator path and may grant isAdmin.
func (s *UserService) CreateUser(ctx context.Context, in NewUserInput) (models.User, error) {
	return s.create(ctx, in)
}

func (s *UserService) create(ctx context.Context, in NewUserInput) (models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := apperr.ValidateStruct(in); err != nil {
		return models.User{}, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.users.InsertUser(ctx, models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        in.Phone,
		IsAdmin:      in.IsAdmin,
		Street:       in.Street,
		Apartment:    in.Apartment,
		Zip:          in.Zip,
		City:         in.City,
		Country:      in.Country,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.User{}, apperr.Conflict("a user with this email already exists")
		}
		return models.User{}, apperr.Upstream("the user cannot be created", err)
	}
	s.log.Info("user created", zap.String("user_id", user.ID), zap.Bool("is_admin", user.IsAdmin))
	return user, nil
}

func (s *UserService) hash(password string) (string, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return "", apperr.Validation(fmt.Sprintf("password must be at most %d bytes", utils.MaxPasswordBytes))
		}
		return "", apperr.Upstream("failed to hash password", err)
	}
	return hash, nil
}

// Login checks the credentials and issues a signed token.
func (s *UserService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, apperr.Validation("invalid email or password")
		}
		return LoginResult{}, apperr.Upstream("failed to load user", err)
	}

	ok, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, apperr.Upstream("failed to verify password", err)
	}
	if !ok {
		return LoginResult{}, apperr.Validation("invalid email or password")
	}

	token, err := utils.GenerateJWT(s.secret, user, s.tokenTTL)
	if err != nil {
		return LoginResult{}, apperr.Upstream("failed to sign token", err)
	}
	return LoginResult{Email: user.Email, Token: token}, nil
}

// UpdateUser is the administrator edit path.
func (s *UserService) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (models.User, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &email
	}
	if err := apperr.ValidateStruct(in); err != nil {
		return models.User{}, err
	}

	patch := repository.UserPatch{
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		IsAdmin:   in.IsAdmin,
		Street:    in.Street,
		Apartment: in.Apartment,
		Zip:       in.Zip,
		City:      in.City,
		Country:   in.Country,
	}
	if in.Password != nil {
		hash, err := s.hash(*in.Password)
		if err != nil {
			return models.User{}, err
		}
		patch.PasswordHash = &hash
	}

	user, err := s.users.UpdateUser(ctx, id, patch)
	switch {
	case err == nil:
		s.log.Info("user updated", zap.String("user_id", user.ID), zap.Bool("is_admin", user.IsAdmin))
		return user, nil
	case errors.Is(err, repository.ErrInvalidID):
		return models.User{}, apperr.Validation("invalid user id")
	case errors.Is(err, repository.ErrNotFound):
		return models.User{}, apperr.NotFound("user not found")
	case errors.Is(err, repository.ErrDuplicate):
		return models.User{}, apperr.Conflict("a user with this email already exists")
	default:
		return models.User{}, apperr.Upstream("failed to update user", err)
	}
}

func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	err := s.users.DeleteUser(ctx, id)
	switch {
	case err == nil:
		s.log.Info("user deleted", zap.String("user_id", id))
		return nil
	case errors.Is(err, repository.ErrInvalidID):
		return apperr.Validation("invalid user id")
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("user not found")
	default:
		return apperr.Upstream("failed to delete user", err)
	}
}

func (s *UserService) GetUser(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.FindUser(ctx, id)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, repository.ErrInvalidID), errors.Is(err, repository.ErrNotFound):
		return models.User{}, apperr.NotFound("user not found")
	default:
		return models.User{}, apperr.Upstream("failed to load user", err)
	}
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Upstream("failed to list users", err)
	}
	return users, nil
}

func (s *UserService) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.users.CountUsers(ctx)
	if err != nil {
		return 0, apperr.Upstream("failed to count users", err)
	}
	return n, nil
}
