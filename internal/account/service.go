// Package account implements member registration, login and profile edits.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movieclub/internal/auth"
	"github.com/Clark-Hu/movieclub/internal/domain"
	"github.com/Clark-Hu/movieclub/internal/repository"
)

const (
	MinPasswordLength = 8
	MaxNameLength     = 50
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// Service manages club members.
type Service struct {
	users      *repository.UsersRepository
	bcryptCost int
	logger     *zap.Logger
}

func NewService(users *repository.UsersRepository, bcryptCost int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, bcryptCost: bcryptCost, logger: logger.Named("account")}
}

// RegisterParams describes a new member.
type RegisterParams struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates a member. A taken username or email fails with
// domain.ErrConstraintViolation.
func (s *Service) Register(ctx context.Context, params RegisterParams) (domain.User, error) {
	username := strings.TrimSpace(params.Username)
	email := strings.TrimSpace(params.Email)
	if err := validateGeneral(username, email); err != nil {
		return domain.User{}, err
	}
	if err := validatePassword(params.Password); err != nil {
		return domain.User{}, err
	}
	if err := validateNames(params.FirstName, params.LastName); err != nil {
		return domain.User{}, err
	}

	hash, err := auth.HashPassword(params.Password, s.bcryptCost)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.Create(ctx, repository.UserCreateParams{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
	})
	if err != nil {
		return domain.User{}, describeConflict(err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login checks credentials. login may be a username or an email. Unknown
// members and wrong passwords both fail with domain.ErrUnauthorized.
func (s *Service) Login(ctx context.Context, login, password string) (domain.User, error) {
	user, err := s.users.GetByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	if err != nil {
		return domain.User{}, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	return user, nil
}

// Get returns a member by id.
func (s *Service) Get(ctx context.Context, id string) (domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// EditProfile replaces the member's first and last names.
func (s *Service) EditProfile(ctx context.Context, id, firstName, lastName string) (domain.User, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if err := validateNames(firstName, lastName); err != nil {
		return domain.User{}, err
	}
	return s.users.UpdateProfile(ctx, id, firstName, lastName)
}

// UpdateGeneral changes username and email after re-checking the password.
func (s *Service) UpdateGeneral(ctx context.Context, id, username, email, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := validateGeneral(username, email); err != nil {
		return domain.User{}, err
	}
	if err := s.checkPassword(ctx, id, password); err != nil {
		return domain.User{}, err
	}
	user, err := s.users.UpdateGeneral(ctx, id, username, email)
	if err != nil {
		return domain.User{}, describeConflict(err)
	}
	return user, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if err := s.checkPassword(ctx, id, oldPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, id, hash)
}

func (s *Service) checkPassword(ctx context.Context, id, password string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return domain.NewValidationError("password", "is incorrect")
	}
	return nil
}

func validateGeneral(username, email string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return domain.NewValidationError("username", fmt.Sprintf("must be between %d and %d characters", MinUsernameLength, MaxUsernameLength))
	}
	if strings.Contains(username, "@") {
		return domain.NewValidationError("username", "cannot contain @")
	}
	if at := strings.Index(email, "@"); at < 1 || at == len(email)-1 {
		return domain.NewValidationError("email", "is invalid")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	return nil
}

func validateNames(firstName, lastName string) error {
	if utf8.RuneCountInString(firstName) > MaxNameLength || utf8.RuneCountInString(lastName) > MaxNameLength {
		return domain.NewValidationError("name", "too long")
	}
	return nil
}

func describeConflict(err error) error {
	if !errors.Is(err, domain.ErrConstraintViolation) {
		return err
	}
	switch repository.ConstraintName(err) {
	case "users_username_key":
		return fmt.Errorf("%w: username already exists", domain.ErrConstraintViolation)
	case "users_email_key":
		return fmt.Errorf("%w: email already exists", domain.ErrConstraintViolation)
	}
	return err
}
