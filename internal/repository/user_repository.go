package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"task-tracker/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// TelegramProfile is the subset of a Telegram account mirrored into User.
type TelegramProfile struct {
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
	Role       model.Role
}

// UpsertFromTelegram finds or creates a user based on TelegramID and updates basic profile info.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, p TelegramProfile) (*model.User, error) {
	if p.Role == "" {
		p.Role = model.RoleEmployee
	}
	var user model.User
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", p.TelegramID).First(&user).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"first_name": p.FirstName,
			"last_name":  p.LastName,
			"username":   p.Username,
			"role":       p.Role,
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		user.FirstName, user.LastName, user.Username, user.Role = p.FirstName, p.LastName, p.Username, p.Role
		return &user, nil
	case err == gorm.ErrRecordNotFound:
		user = model.User{
			TelegramID: p.TelegramID,
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			Username:   p.Username,
			Role:       p.Role,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsernames resolves @names (case-insensitive, @ optional). Unknown
// names are returned in missing.
func (r *UserRepository) FindByUsernames(ctx context.Context, names []string) (users []model.User, missing []string, err error) {
	wanted := make(map[string]string, len(names))
	lowered := make([]string, 0, len(names))
	for _, name := range names {
		clean := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "@"))
		if clean == "" {
			continue
		}
		if _, dup := wanted[clean]; dup {
			continue
		}
		wanted[clean] = name
		lowered = append(lowered, clean)
	}
	if len(lowered) == 0 {
		return nil, nil, nil
	}
	if err := r.db.WithContext(ctx).Where("LOWER(username) IN ?", lowered).Find(&users).Error; err != nil {
		return nil, nil, fmt.Errorf("find users: %w", err)
	}
	for _, u := range users {
		delete(wanted, strings.ToLower(u.Username))
	}
	for _, clean := range lowered {
		if original, ok := wanted[clean]; ok {
			missing = append(missing, original)
		}
	}
	return users, missing, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
