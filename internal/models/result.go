package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// QuestionOutcome is one evaluated question inside a result, using the field
// names emitted by the evaluation engine.
type QuestionOutcome struct {
	Number          int     `json:"question_number"`
	Text            string  `json:"question_text"`
	StudentAnswer   string  `json:"student_answer"`
	ReferenceAnswer string  `json:"reference_answer,omitempty"`
	Rubric          string  `json:"rubric,omitempty"`
	MaxMarks        float64 `json:"max_marks"`
	Marks           float64 `json:"marks"`
	IsCorrect       bool    `json:"is_correct"`
	Feedback        string  `json:"feedback"`
}

// EvaluationResult stores the evaluated outcome for one student on one
// subject of one exam. The composite unique index over the natural key makes
// re-ingestion an update rather than a duplicate insert; that constraint is
// the central correctness property of the ingestion path.
type EvaluationResult struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ExamID        uint           `gorm:"not null;uniqueIndex:idx_result_natural_key" json:"exam_id"`
	SectionID     uint           `gorm:"not null;uniqueIndex:idx_result_natural_key" json:"section_id"`
	SubjectID     uint           `gorm:"not null;uniqueIndex:idx_result_natural_key" json:"subject_id"`
	StudentID     uint           `gorm:"not null;uniqueIndex:idx_result_natural_key;index" json:"student_id"`
	EvaluatedBy   *uint          `json:"evaluated_by"`
	Questions     datatypes.JSON `gorm:"not null" json:"questions"`
	TotalMarks    float64        `gorm:"not null" json:"total_marks"`
	MaxTotalMarks float64        `gorm:"not null" json:"max_total_marks"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsAutomated reports whether the result came from the automated engine
// rather than a named evaluator.
func (r EvaluationResult) IsAutomated() bool {
	return r.EvaluatedBy == nil
}

// QuestionOutcomes decodes the stored per-question outcomes.
func (r EvaluationResult) QuestionOutcomes() ([]QuestionOutcome, error) {
	if len(r.Questions) == 0 {
		return nil, nil
	}
	var questions []QuestionOutcome
	if err := json.Unmarshal(r.Questions, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// SetQuestionOutcomes encodes outcomes into the JSON column.
func (r *EvaluationResult) SetQuestionOutcomes(questions []QuestionOutcome) error {
	encoded, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	r.Questions = datatypes.JSON(encoded)
	return nil
}
