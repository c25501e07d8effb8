package dto

import (
	"time"

	"github.com/gradewise/exam-api/internal/models"
	"github.com/gradewise/exam-api/pkg/segmenter"
)

// SubmissionScope identifies the context an answer submission belongs to.
type SubmissionScope struct {
	SectionID uint `validate:"required,gt=0"`
	ExamID    uint `validate:"required,gt=0"`
	SubjectID uint `validate:"required,gt=0"`
	StudentID uint `validate:"required,gt=0"`
}

// EvidenceFileResponse serializes one stored evidence artefact.
type EvidenceFileResponse struct {
	Path         string `json:"path"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
}

// SubmissionResponse serializes a student submission.
type SubmissionResponse struct {
	ID        uint                   `json:"id"`
	SectionID uint                   `json:"section_id"`
	ExamID    uint                   `json:"exam_id"`
	SubjectID uint                   `json:"subject_id"`
	StudentID uint                   `json:"student_id"`
	Files     []EvidenceFileResponse `json:"files"`
	Status    string                 `json:"status"`
	Score     *float64               `json:"score"`
	Feedback  string                 `json:"feedback,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// SegmentationResponse reports the outcome of the best-effort segmentation
// call. Success false never blocks the submission itself.
type SegmentationResponse struct {
	Success          bool                     `json:"success"`
	Message          string                   `json:"message,omitempty"`
	Error            string                   `json:"error,omitempty"`
	CroppedQuestions []map[string]interface{} `json:"cropped_questions,omitempty"`
	Summary          map[string]interface{}   `json:"summary,omitempty"`
}

// SubmissionCreateResponse is returned from the submit endpoint.
type SubmissionCreateResponse struct {
	Submission   SubmissionResponse   `json:"submission"`
	Segmentation SegmentationResponse `json:"segmentation"`
}

// SubmissionConflictResponse carries the competing record's identity so the
// caller can view it instead of retrying.
type SubmissionConflictResponse struct {
	ExistingSubmissionID uint `json:"existing_submission_id"`
}

// NewSubmissionResponse converts a StudentSubmission model into a DTO.
func NewSubmissionResponse(model models.StudentSubmission) SubmissionResponse {
	response := SubmissionResponse{
		ID:        model.ID,
		SectionID: model.SectionID,
		ExamID:    model.ExamID,
		SubjectID: model.SubjectID,
		StudentID: model.StudentID,
		Status:    model.Status,
		Score:     model.Score,
		Feedback:  model.Feedback,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}

	files, err := model.EvidenceFiles()
	if err != nil {
		return response
	}
	for _, file := range files {
		response.Files = append(response.Files, EvidenceFileResponse{
			Path:         file.Path,
			OriginalName: file.OriginalName,
			Size:         file.Size,
			ContentType:  file.ContentType,
		})
	}

	return response
}

// NewSegmentationResponse converts a segmenter result into the response form.
func NewSegmentationResponse(result segmenter.Result) SegmentationResponse {
	return SegmentationResponse{
		Success:          result.Success,
		Message:          result.Message,
		CroppedQuestions: result.CroppedQuestions,
		Summary:          result.Summary,
	}
}

// FailedSegmentationResponse marks the segmentation collaborator as degraded.
func FailedSegmentationResponse(err error) SegmentationResponse {
	response := SegmentationResponse{Success: false}
	if err != nil {
		response.Error = err.Error()
	}
	return response
}
