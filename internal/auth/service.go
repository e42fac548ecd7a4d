package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/entity"
	"github.com/joseph-ayodele/reckon/internal/repository"
)

var genders = []string{"male", "female", "other", "prefer-not-to-say"}

// maxPasswordBytes is the most bcrypt will hash.
const maxPasswordBytes = 72

const (
	msgMissingFields      = "Please provide all required fields: firstName, lastName, email, username, password"
	msgEmailTaken         = "An account with this email already exists"
	msgUsernameTaken      = "This username is already taken"
	msgMissingCredentials = "Email and password are required"
	msgInvalidCredentials = "Invalid credentials"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password alike.
var ErrInvalidCredentials = common.NewAppError("INVALID_CREDENTIALS", msgInvalidCredentials, common.ErrUnauthorized)

type SignupRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	IsDoctor    bool   `json:"isDoctor"`
	Specialty   string `json:"specialty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is a user together with a freshly issued token.
type Session struct {
	User  *entity.User
	Token string
}

type Config struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

type Service struct {
	users  repository.UserRepository
	tokens *TokenIssuer
	cost   int
	logger *slog.Logger
}

func NewService(users repository.UserRepository, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		users:  users,
		tokens: NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		cost:   cost,
		logger: logger,
	}
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = normalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)

	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Username == "" || req.Password == "" {
		return nil, common.NewAppError("VALIDATION_ERROR", msgMissingFields, common.ErrValidation)
	}

	v := common.NewValidator().
		Field("firstName", req.FirstName, common.MaxLength(50)).
		Field("lastName", req.LastName, common.MaxLength(50)).
		Field("email", req.Email, common.Email).
		Field("username", req.Username, common.MinLength(4), common.MaxLength(30)).
		Field("password", req.Password, common.MinLength(6), common.MaxBytes(maxPasswordBytes)).
		Field("gender", req.Gender, common.OneOf(genders...)).
		Field("dateOfBirth", req.DateOfBirth, common.Date)
	if err := v.Err(); err != nil {
		return nil, err
	}

	emailTaken, usernameTaken, err := s.users.ExistsByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return nil, err
	}
	if emailTaken {
		return nil, common.NewAppError("EMAIL_TAKEN", msgEmailTaken, common.ErrConflict)
	}
	if usernameTaken {
		return nil, common.NewAppError("USERNAME_TAKEN", msgUsernameTaken, common.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, common.KindError(common.ErrInternal, err)
	}

	user := &entity.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		Gender:       req.Gender,
		IsDoctor:     req.IsDoctor,
		Specialty:    strings.TrimSpace(req.Specialty),
	}
	if req.DateOfBirth != "" {
		dob, _ := common.ParseDate(req.DateOfBirth)
		dob = dob.UTC()
		user.DateOfBirth = &dob
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			// lost a race with a concurrent signup
			return nil, common.NewAppError("EMAIL_TAKEN", msgEmailTaken, err)
		}
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, common.KindError(common.ErrInternal, err)
	}
	s.logger.Info("auth.signup", "user_id", user.ID, "username", user.Username)
	return &Session{User: user, Token: token}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, common.NewAppError("VALIDATION_ERROR", msgMissingCredentials, common.ErrValidation)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Debug("auth.login.rejected", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, common.KindError(common.ErrInternal, err)
	}
	s.logger.Info("auth.login", "user_id", user.ID)
	return &Session{User: user, Token: token}, nil
}

// Verify resolves a bearer token to the user id it was issued for.
func (s *Service) Verify(token string) (uuid.UUID, error) {
	return s.tokens.Verify(strings.TrimSpace(token))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
