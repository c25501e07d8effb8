package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/gradewise/exam-api/internal/models"
)

// NotificationRepository defines data operations for grading notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.GradingNotification) error
	ListByStudent(ctx context.Context, studentID uint, limit int) ([]models.GradingNotification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository instantiates the repository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.GradingNotification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) ListByStudent(ctx context.Context, studentID uint, limit int) ([]models.GradingNotification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var notifications []models.GradingNotification
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}
