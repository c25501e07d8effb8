package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// EvidenceFile describes one uploaded answer artefact.
type EvidenceFile struct {
	Path         string `json:"path"`
	PublicID     string `json:"public_id"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
}

// StudentSubmission holds the raw answer evidence a student handed in for one
// subject of one exam. The composite unique index enforces at most one
// submission per (section, exam, subject, student) scope, so a concurrent
// duplicate loses on the constraint instead of slipping past the application
// check.
type StudentSubmission struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	SectionID uint           `gorm:"not null;uniqueIndex:idx_submission_scope" json:"section_id"`
	ExamID    uint           `gorm:"not null;uniqueIndex:idx_submission_scope" json:"exam_id"`
	SubjectID uint           `gorm:"not null;uniqueIndex:idx_submission_scope" json:"subject_id"`
	StudentID uint           `gorm:"not null;uniqueIndex:idx_submission_scope" json:"student_id"`
	Files     datatypes.JSON `gorm:"not null" json:"files"`
	Status    string         `gorm:"size:32;not null" json:"status"`
	Score     *float64       `json:"score"`
	Feedback  string         `gorm:"type:text" json:"feedback"`
	GradedBy  *uint          `json:"graded_by"`
	GradedAt  *time.Time     `json:"graded_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

const (
	// SubmissionStatusSubmitted indicates evidence has been uploaded but not graded.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusGraded indicates the submission has been evaluated.
	SubmissionStatusGraded = "graded"
	// SubmissionStatusReviewed indicates a staff member reviewed the evaluation.
	SubmissionStatusReviewed = "reviewed"
)

// EvidenceFiles decodes the stored evidence list.
func (s StudentSubmission) EvidenceFiles() ([]EvidenceFile, error) {
	if len(s.Files) == 0 {
		return nil, nil
	}
	var files []EvidenceFile
	if err := json.Unmarshal(s.Files, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// SetEvidenceFiles encodes the evidence list into the JSON column.
func (s *StudentSubmission) SetEvidenceFiles(files []EvidenceFile) error {
	encoded, err := json.Marshal(files)
	if err != nil {
		return err
	}
	s.Files = datatypes.JSON(encoded)
	return nil
}
