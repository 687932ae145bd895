package auth

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-studio/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
)

type Service struct {
	db       *gorm.DB
	jwt      *JWTService
	starters StarterAssigner
	logger   *slog.Logger
}

func NewService(db *gorm.DB, jwt *JWTService, starters StarterAssigner, logger *slog.Logger) *Service {
	return &Service{db: db, jwt: jwt, starters: starters, logger: logger}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	OrgName  string // Optional: create an organization administered by the new user
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token        string               `json:"token"`
	User         *models.User         `json:"user"`
	Organization *models.Organization `json:"organization,omitempty"`
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         input.Name,
		IsActive:     true,
	}
	var org *models.Organization

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if input.OrgName == "" {
			return nil
		}

		org = &models.Organization{
			Name:   input.OrgName,
			Domain: generateDomain(input.OrgName, user.ID),
		}
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrganizationUser{
			OrganizationID: org.ID,
			UserID:         user.ID,
			Role:           models.OrgRoleAdmin,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	// Starter projects are copied asynchronously; registration succeeds
	// even when the queue is unavailable.
	if s.starters != nil {
		if err := s.starters.AssignStarterProjects(ctx, user.ID); err != nil {
			s.logger.Warn("failed to queue starter projects", "user_id", user.ID, "error", err)
		}
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token:        token,
		User:         &user,
		Organization: org,
	}, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token: token,
		User:  &user,
	}, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

var nonDomainChars = regexp.MustCompile(`[^a-z0-9]+`)

// generateDomain derives a unique organization domain from its name.
func generateDomain(name string, owner uuid.UUID) string {
	slug := strings.Trim(nonDomainChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "org"
	}
	return slug + "-" + owner.String()[:8]
}
