package dto

import (
	"time"

	"github.com/gradewise/exam-api/internal/models"
)

// NotificationCreateRequest records a grading notification for a student.
type NotificationCreateRequest struct {
	StudentID uint   `json:"student_id" validate:"required,gt=0"`
	Type      string `json:"type" validate:"required,oneof=result_stored"`
	Title     string `json:"title" validate:"omitempty,max=255"`
	Message   string `json:"message" validate:"required"`
}

// NotificationResponse serializes a grading notification.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	StudentID uint      `json:"student_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a GradingNotification model into a DTO.
func NewNotificationResponse(model models.GradingNotification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		StudentID: model.StudentID,
		Type:      model.Type,
		Title:     model.Title,
		Message:   model.Message,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice of notifications.
func NewNotificationResponseSlice(items []models.GradingNotification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewNotificationResponse(item))
	}
	return responses
}
