package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/velora-im/velora-chat-api/internal/models"
)

// Duplicate-kind errors surfaced from the store's uniqueness constraints. The
// registration flow must distinguish which field collided.
var (
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateNickname = errors.New("nickname already taken")
)

// UserRepository persists registration records and credentials.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByNickname(ctx context.Context, nickname string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateStatus(ctx context.Context, id uint, status string) (models.User, error)
	AttachDocument(ctx context.Context, doc *models.RegistrationDocument) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return classifyDuplicate(err)
	}

	return err
}

// classifyDuplicate maps a uniqueness violation onto the colliding field. The
// constraint name carries the column on both postgres and sqlite.
func classifyDuplicate(err error) error {
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "nickname") {
		return ErrDuplicateNickname
	}
	return ErrDuplicateEmail
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique") || strings.Contains(message, "duplicate")
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("Documents").Where("email = ?", email).First(&user).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByNickname(ctx context.Context, nickname string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("Documents").Where("nickname = ?", nickname).First(&user).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Preload("Documents").Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpdateStatus(ctx context.Context, id uint, status string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}

	if err := r.db.WithContext(ctx).Model(&user).Update("status", status).Error; err != nil {
		return models.User{}, err
	}

	user.Status = status
	return user, nil
}

func (r *userRepository) AttachDocument(ctx context.Context, doc *models.RegistrationDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}
