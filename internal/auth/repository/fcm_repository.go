package repository

import (
	"time"

	authdomain "dailyrush-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FCMTokenRepository stores device tokens for due-task reminder pushes.
// A device re-registering its token moves it to the current account.
type FCMTokenRepository interface {
	SaveToken(userID, token, deviceInfo string) error
	GetTokensByUserID(userID string) ([]authdomain.FCMToken, error)
	DeleteToken(token string) error
	DeleteTokensByUserID(userID string) error
}

type fcmTokenRepository struct {
	db *gorm.DB
}

func NewFCMTokenRepository(db *gorm.DB) FCMTokenRepository {
	return &fcmTokenRepository{db: db}
}

// SaveToken upserts on the token column so repeat registrations from
// the same device never duplicate rows.
func (r *fcmTokenRepository) SaveToken(userID, token, deviceInfo string) error {
	record := &authdomain.FCMToken{
		ID:         uuid.New().String(),
		UserID:     userID,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_info", "updated_at"}),
	}).Create(record).Error
}

func (r *fcmTokenRepository) GetTokensByUserID(userID string) ([]authdomain.FCMToken, error) {
	var tokens []authdomain.FCMToken
	if err := r.db.Where("user_id = ?", userID).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *fcmTokenRepository) DeleteToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&authdomain.FCMToken{}).Error
}

// DeleteTokensByUserID clears every device for an account, used when an
// account is removed.
func (r *fcmTokenRepository) DeleteTokensByUserID(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&authdomain.FCMToken{}).Error
}
