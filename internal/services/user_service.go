package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"referral-ledger/internal/models"
)

type UserService struct {
	DB     *gorm.DB
	Helper *HelperService
}

func NewUserService(db *gorm.DB, helper *HelperService) *UserService {
	return &UserService{DB: db, Helper: helper}
}

type RegisterUserDTO struct {
	Username     string `json:"username" binding:"required"`
	ReferredById *int   `json:"referred_by_id"`
}

// Register creates a user under an optional sponsor. The sponsor link is never changed later.
func (s *UserService) Register(ctx context.Context, data RegisterUserDTO) (*models.User, error) {
	username := strings.TrimSpace(data.Username)
	if username == "" {
		return nil, fmt.Errorf("username required: %w", ErrInvalidState)
	}

	if data.ReferredById != nil {
		if _, err := s.Helper.GetUser(ctx, *data.ReferredById); err != nil {
			return nil, fmt.Errorf("sponsor: %w", err)
		}
	}

	var taken int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&taken).Error; err != nil {
		return nil, err
	}
	if taken > 0 {
		return nil, fmt.Errorf("username %q taken: %w", username, ErrInvalidState)
	}

	user := models.User{
		Username:            username,
		ReferredById:        data.ReferredById,
		WalletBalance:       decimal.Zero,
		TotalInvested:       decimal.Zero,
		TeamVolume:          decimal.Zero,
		TotalTeamCommission: decimal.Zero,
		Rank:                models.RankStarter,
		Status:              models.UserStatusInactive,
	}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	fields := logrus.Fields{"user_id": user.ID}
	if data.ReferredById != nil {
		fields["referred_by_id"] = *data.ReferredById
	}
	logrus.WithFields(fields).Info("User registered")
	return &user, nil
}

func (s *UserService) GetUser(ctx context.Context, userId int) (*models.User, error) {
	return s.Helper.GetUser(ctx, userId)
}

// SetStatus is the operator path for banning or reinstating a user.
func (s *UserService) SetStatus(ctx context.Context, userId int, status models.UserStatus) (*models.User, error) {
	switch status {
	case models.UserStatusActive, models.UserStatusInactive, models.UserStatusBanned:
	default:
		return nil, fmt.Errorf("unknown status %q: %w", status, ErrInvalidState)
	}

	user, err := s.Helper.GetUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userId).UpdateColumn("status", status).Error; err != nil {
		return nil, err
	}
	user.Status = status

	logrus.WithFields(logrus.Fields{"user_id": userId, "status": status}).Info("User status changed")
	return user, nil
}
