package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/chat-relay/internal/models"
)

func (d *Database) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return translate(d.db.WithContext(ctx).Create(user).Error, "user")
}

func (d *Database) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := models.User{}
	if err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (d *Database) FindUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	user := models.User{}
	if err := d.db.WithContext(ctx).Where("handle = ?", handle).First(&user).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (d *Database) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := models.User{}
	if err := d.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (d *Database) UpdateUserProfile(ctx context.Context, id uuid.UUID, handle, name string) (*models.User, error) {
	updates := map[string]any{}
	if handle != "" {
		updates["handle"] = handle
	}
	if name != "" {
		updates["name"] = name
	}
	if len(updates) > 0 {
		res := d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, translate(res.Error, "user")
		}
	}
	return d.GetUser(ctx, id)
}

func (d *Database) UpdateLastSeen(ctx context.Context, id uuid.UUID) error {
	err := d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_seen_at", time.Now().UTC()).Error
	return translate(err, "user")
}
