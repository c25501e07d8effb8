package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/gradewise/exam-api/internal/models"
)

// SubmissionScope narrows submission queries to one natural key.
type SubmissionScope struct {
	SectionID uint
	ExamID    uint
	SubjectID uint
	StudentID uint
}

// SubmissionRepository defines data operations for student submissions.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.StudentSubmission, error)
	GetByScope(ctx context.Context, scope SubmissionScope) (models.StudentSubmission, error)
	// Create inserts the submission; a duplicate scope surfaces as
	// gorm.ErrDuplicatedKey through the driver's error translation.
	Create(ctx context.Context, submission *models.StudentSubmission) error
	ListByStudent(ctx context.Context, studentID uint) ([]models.StudentSubmission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.StudentSubmission, error) {
	var submission models.StudentSubmission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.StudentSubmission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) GetByScope(ctx context.Context, scope SubmissionScope) (models.StudentSubmission, error) {
	var submission models.StudentSubmission
	err := r.db.WithContext(ctx).
		Where("section_id = ?", scope.SectionID).
		Where("exam_id = ?", scope.ExamID).
		Where("subject_id = ?", scope.SubjectID).
		Where("student_id = ?", scope.StudentID).
		First(&submission).Error
	if err != nil {
		return models.StudentSubmission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.StudentSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.StudentSubmission, error) {
	var submissions []models.StudentSubmission
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}
