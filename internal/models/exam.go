package models

import "time"

// Exam represents a scheduled examination for a class section.
type Exam struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	SectionID   uint      `gorm:"not null;index" json:"section_id"`
	StartTime   time.Time `gorm:"not null" json:"start_time"`
	EndTime     time.Time `gorm:"not null" json:"end_time"`
	CreatedBy   uint      `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsRunning reports whether the exam window covers the reference time.
func (e Exam) IsRunning(reference time.Time) bool {
	return !reference.Before(e.StartTime) && !reference.After(e.EndTime)
}
