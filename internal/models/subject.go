package models

import "time"

// Subject is an entry in the shared subject catalog. Names are globally
// unique so the same subject resolves to the same identity across exams.
type Subject struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExamSubject links a subject to an exam. The composite unique index keeps
// re-attachment idempotent: a given (exam, subject) pair exists at most once.
type ExamSubject struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ExamID    uint      `gorm:"not null;uniqueIndex:idx_exam_subject" json:"exam_id"`
	SubjectID uint      `gorm:"not null;uniqueIndex:idx_exam_subject" json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`
	Exam      Exam      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Subject   Subject   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
