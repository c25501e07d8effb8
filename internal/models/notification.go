package models

import "time"

// GradingNotification records a message for a student about their evaluation,
// persisted before any best-effort broker publish.
type GradingNotification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"not null;index" json:"student_id"`
	Type      string    `gorm:"size:32;not null" json:"type"`
	Title     string    `gorm:"size:255" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	// NotificationTypeResultStored signals a new or updated evaluation result.
	NotificationTypeResultStored = "result_stored"
)
