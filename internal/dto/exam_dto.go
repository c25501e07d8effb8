package dto

import (
	"time"

	"github.com/gradewise/exam-api/internal/models"
)

// ExamCreateRequest creates an exam and attaches its subjects in one call.
type ExamCreateRequest struct {
	Title        string    `json:"title" validate:"required,min=3,max=255"`
	Description  string    `json:"description" validate:"omitempty,max=4096"`
	SectionID    uint      `json:"section_id" validate:"required,gt=0"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	SubjectNames []string  `json:"subject_names" validate:"omitempty,dive,min=1,max=255"`
	SubjectIDs   []uint    `json:"subject_ids" validate:"omitempty,dive,gt=0"`
}

// AttachSubjectsRequest attaches subjects to an existing exam, by catalog
// name (created if absent) or by id (unknown ids are skipped).
type AttachSubjectsRequest struct {
	SubjectNames []string `json:"subject_names" validate:"omitempty,dive,min=1,max=255"`
	SubjectIDs   []uint   `json:"subject_ids" validate:"omitempty,dive,gt=0"`
}

// HasInput reports whether the request names at least one subject.
func (r AttachSubjectsRequest) HasInput() bool {
	return len(r.SubjectNames) > 0 || len(r.SubjectIDs) > 0
}

// SubjectResponse serializes a catalog subject.
type SubjectResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// ExamResponse serializes an exam together with its attached subjects.
type ExamResponse struct {
	ID          uint              `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	SectionID   uint              `json:"section_id"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	CreatedBy   uint              `json:"created_by"`
	Subjects    []SubjectResponse `json:"subjects"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewSubjectResponse converts a Subject model into a DTO.
func NewSubjectResponse(model models.Subject) SubjectResponse {
	return SubjectResponse{ID: model.ID, Name: model.Name}
}

// NewSubjectResponseSlice converts a slice of subjects.
func NewSubjectResponseSlice(subjects []models.Subject) []SubjectResponse {
	responses := make([]SubjectResponse, 0, len(subjects))
	for _, subject := range subjects {
		responses = append(responses, NewSubjectResponse(subject))
	}
	return responses
}

// NewExamResponse converts an Exam model and its subjects into a DTO.
func NewExamResponse(exam models.Exam, subjects []models.Subject) ExamResponse {
	return ExamResponse{
		ID:          exam.ID,
		Title:       exam.Title,
		Description: exam.Description,
		SectionID:   exam.SectionID,
		StartTime:   exam.StartTime,
		EndTime:     exam.EndTime,
		CreatedBy:   exam.CreatedBy,
		Subjects:    NewSubjectResponseSlice(subjects),
		CreatedAt:   exam.CreatedAt,
	}
}
