package dto

import (
	"fmt"
	"time"

	"github.com/gradewise/exam-api/internal/models"
)

// QuestionOutcomeRequest is one evaluated question in a result payload.
type QuestionOutcomeRequest struct {
	Number          int     `json:"question_number" validate:"required,gt=0"`
	Text            string  `json:"question_text" validate:"required"`
	StudentAnswer   string  `json:"student_answer"`
	ReferenceAnswer string  `json:"reference_answer"`
	Rubric          string  `json:"rubric"`
	MaxMarks        float64 `json:"max_marks" validate:"gte=0"`
	Marks           float64 `json:"marks" validate:"gte=0"`
	IsCorrect       bool    `json:"is_correct"`
	Feedback        string  `json:"feedback"`
}

// ResultStoreRequest upserts one evaluation result by its natural key.
// Totals above the maximum are accepted; score bounds are the evaluation
// engine's policy, not this layer's.
type ResultStoreRequest struct {
	ExamID        uint                     `json:"exam_id" validate:"required,gt=0"`
	SectionID     uint                     `json:"section_id" validate:"required,gt=0"`
	SubjectID     uint                     `json:"subject_id" validate:"required,gt=0"`
	StudentID     uint                     `json:"student_id" validate:"required,gt=0"`
	Questions     []QuestionOutcomeRequest `json:"questions" validate:"required,min=1,dive"`
	TotalMarks    float64                  `json:"total_marks" validate:"gte=0"`
	MaxTotalMarks float64                  `json:"max_total_marks" validate:"gt=0"`
}

// NaturalKey renders the composite key for per-item failure reporting.
func (r ResultStoreRequest) NaturalKey() string {
	return fmt.Sprintf("exam=%d section=%d subject=%d student=%d", r.ExamID, r.SectionID, r.SubjectID, r.StudentID)
}

// BulkResultRequest stores many results, isolating per-item failures.
type BulkResultRequest struct {
	Results []ResultStoreRequest `json:"results" validate:"required,min=1"`
}

// ResultResponse serializes a stored evaluation result.
type ResultResponse struct {
	ID            uint                     `json:"id"`
	ExamID        uint                     `json:"exam_id"`
	SectionID     uint                     `json:"section_id"`
	SubjectID     uint                     `json:"subject_id"`
	StudentID     uint                     `json:"student_id"`
	EvaluatedBy   *uint                    `json:"evaluated_by"`
	Questions     []models.QuestionOutcome `json:"questions"`
	TotalMarks    float64                  `json:"total_marks"`
	MaxTotalMarks float64                  `json:"max_total_marks"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// FailedResultItem identifies a bulk item that could not be stored.
type FailedResultItem struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// BulkResultResponse reports every item's outcome; both counts are always
// present even when zero.
type BulkResultResponse struct {
	Stored  int                `json:"stored"`
	Errors  int                `json:"errors"`
	Results []ResultResponse   `json:"results"`
	Failed  []FailedResultItem `json:"failed"`
}

// ScopeStatisticsResponse aggregates results for one (exam, section, subject)
// scope. It is only returned when at least one result exists.
type ScopeStatisticsResponse struct {
	Count       int64   `json:"count"`
	Average     float64 `json:"average"`
	Max         float64 `json:"max"`
	Min         float64 `json:"min"`
	MaxPossible float64 `json:"max_possible"`
}

// NewResultResponse converts an EvaluationResult model into a DTO.
func NewResultResponse(model models.EvaluationResult) ResultResponse {
	response := ResultResponse{
		ID:            model.ID,
		ExamID:        model.ExamID,
		SectionID:     model.SectionID,
		SubjectID:     model.SubjectID,
		StudentID:     model.StudentID,
		EvaluatedBy:   model.EvaluatedBy,
		TotalMarks:    model.TotalMarks,
		MaxTotalMarks: model.MaxTotalMarks,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}

	if questions, err := model.QuestionOutcomes(); err == nil {
		response.Questions = questions
	}

	return response
}

// NewResultResponseSlice converts a slice of results.
func NewResultResponseSlice(results []models.EvaluationResult) []ResultResponse {
	responses := make([]ResultResponse, 0, len(results))
	for _, result := range results {
		responses = append(responses, NewResultResponse(result))
	}
	return responses
}
