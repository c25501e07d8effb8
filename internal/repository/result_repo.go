package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gradewise/exam-api/internal/models"
)

// ResultScope narrows result queries to one (exam, section, subject) triple.
type ResultScope struct {
	ExamID    uint
	SectionID uint
	SubjectID uint
}

// ScopeStatistics aggregates stored results for one scope.
type ScopeStatistics struct {
	Count       int64
	Average     float64
	Max         float64
	Min         float64
	MaxPossible float64
}

// ResultRepository defines data operations for evaluation results.
type ResultRepository interface {
	// Upsert writes the result for its natural key in at most two atomic
	// statements: an insert that backs off on the unique constraint, then an
	// update in place when another row already owns the key. There is no
	// read-then-branch window, so concurrent writers for the same key
	// converge on a single row. Reports whether a new row was created.
	Upsert(ctx context.Context, result *models.EvaluationResult) (bool, error)
	GetByID(ctx context.Context, id uint) (models.EvaluationResult, error)
	GetByNaturalKey(ctx context.Context, scope ResultScope, studentID uint) (models.EvaluationResult, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.EvaluationResult, error)
	ListByScope(ctx context.Context, scope ResultScope) ([]models.EvaluationResult, error)
	Delete(ctx context.Context, id uint) (models.EvaluationResult, error)
	Statistics(ctx context.Context, scope ResultScope) (ScopeStatistics, error)
}

type resultRepository struct {
	db *gorm.DB
}

// NewResultRepository instantiates the repository.
func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) Upsert(ctx context.Context, result *models.EvaluationResult) (bool, error) {
	insert := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "exam_id"}, {Name: "section_id"}, {Name: "subject_id"}, {Name: "student_id"},
		},
		DoNothing: true,
	}).Create(result)
	if insert.Error != nil {
		return false, insert.Error
	}

	if insert.RowsAffected > 0 {
		return true, nil
	}

	scope := ResultScope{ExamID: result.ExamID, SectionID: result.SectionID, SubjectID: result.SubjectID}

	update := r.db.WithContext(ctx).Model(&models.EvaluationResult{}).
		Where("exam_id = ?", result.ExamID).
		Where("section_id = ?", result.SectionID).
		Where("subject_id = ?", result.SubjectID).
		Where("student_id = ?", result.StudentID).
		Updates(map[string]interface{}{
			"questions":       result.Questions,
			"total_marks":     result.TotalMarks,
			"max_total_marks": result.MaxTotalMarks,
			"evaluated_by":    result.EvaluatedBy,
		})
	if update.Error != nil {
		return false, update.Error
	}

	stored, err := r.GetByNaturalKey(ctx, scope, result.StudentID)
	if err != nil {
		return false, err
	}
	*result = stored

	return false, nil
}

func (r *resultRepository) GetByID(ctx context.Context, id uint) (models.EvaluationResult, error) {
	var result models.EvaluationResult
	if err := r.db.WithContext(ctx).First(&result, id).Error; err != nil {
		return models.EvaluationResult{}, err
	}
	return result, nil
}

func (r *resultRepository) GetByNaturalKey(ctx context.Context, scope ResultScope, studentID uint) (models.EvaluationResult, error) {
	var result models.EvaluationResult
	err := r.scopeQuery(ctx, scope).
		Where("student_id = ?", studentID).
		First(&result).Error
	if err != nil {
		return models.EvaluationResult{}, err
	}
	return result, nil
}

func (r *resultRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.EvaluationResult, error) {
	var results []models.EvaluationResult
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *resultRepository) ListByScope(ctx context.Context, scope ResultScope) ([]models.EvaluationResult, error) {
	var results []models.EvaluationResult
	if err := r.scopeQuery(ctx, scope).Order("total_marks DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *resultRepository) Delete(ctx context.Context, id uint) (models.EvaluationResult, error) {
	result, err := r.GetByID(ctx, id)
	if err != nil {
		return models.EvaluationResult{}, err
	}

	if err := r.db.WithContext(ctx).Delete(&models.EvaluationResult{}, id).Error; err != nil {
		return models.EvaluationResult{}, err
	}

	return result, nil
}

func (r *resultRepository) Statistics(ctx context.Context, scope ResultScope) (ScopeStatistics, error) {
	var stats ScopeStatistics
	err := r.scopeQuery(ctx, scope).
		Select("COUNT(*) AS count, COALESCE(AVG(total_marks), 0) AS average, COALESCE(MAX(total_marks), 0) AS max, COALESCE(MIN(total_marks), 0) AS min, COALESCE(MAX(max_total_marks), 0) AS max_possible").
		Scan(&stats).Error
	if err != nil {
		return ScopeStatistics{}, err
	}
	return stats, nil
}

func (r *resultRepository) scopeQuery(ctx context.Context, scope ResultScope) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.EvaluationResult{}).
		Where("exam_id = ?", scope.ExamID).
		Where("section_id = ?", scope.SectionID).
		Where("subject_id = ?", scope.SubjectID)
}
