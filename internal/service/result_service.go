package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gradewise/exam-api/internal/dto"
	"github.com/gradewise/exam-api/internal/models"
	"github.com/gradewise/exam-api/internal/observability"
	"github.com/gradewise/exam-api/internal/repository"
)

// ErrResultNotFound indicates the referenced evaluation result is absent.
var ErrResultNotFound = errors.New("result not found")

// GradeNotifier is notified after a result is stored. Failures are the
// notifier's problem; ingestion never depends on it.
type GradeNotifier interface {
	ResultStored(ctx context.Context, result models.EvaluationResult, created bool)
}

// ResultService ingests evaluation results with upsert-by-natural-key
// semantics and serves the read paths over them.
type ResultService interface {
	StoreOne(ctx context.Context, payload dto.ResultStoreRequest, evaluatedBy *uint) (dto.ResultResponse, bool, error)
	StoreBulk(ctx context.Context, payload dto.BulkResultRequest, evaluatedBy *uint) (dto.BulkResultResponse, error)
	GetByID(ctx context.Context, id uint) (dto.ResultResponse, error)
	GetByNaturalKey(ctx context.Context, examID, sectionID, subjectID, studentID uint) (dto.ResultResponse, error)
	ListByStudent(ctx context.Context, studentID uint) ([]dto.ResultResponse, error)
	ListByScope(ctx context.Context, sectionID, examID, subjectID uint) ([]dto.ResultResponse, error)
	Delete(ctx context.Context, id uint) (dto.ResultResponse, error)
}

type resultService struct {
	results   repository.ResultRepository
	exams     repository.ExamRepository
	notifier  GradeNotifier
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewResultService constructs a ResultService instance. The notifier may be
// nil when grading notifications are disabled.
func NewResultService(resultRepo repository.ResultRepository, examRepo repository.ExamRepository, notifier GradeNotifier, validate *validator.Validate, logger zerolog.Logger) ResultService {
	return &resultService{
		results:   resultRepo,
		exams:     examRepo,
		notifier:  notifier,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "result_service").Logger(),
	}
}

func (s *resultService) StoreOne(ctx context.Context, payload dto.ResultStoreRequest, evaluatedBy *uint) (dto.ResultResponse, bool, error) {
	response, created, err := s.store(ctx, payload, evaluatedBy, nil)
	return response, created, err
}

func (s *resultService) StoreBulk(ctx context.Context, payload dto.BulkResultRequest, evaluatedBy *uint) (dto.BulkResultResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BulkResultResponse{}, err
	}

	// Exam existence checks repeat across a grading run over one section;
	// memoise them for the duration of this call only.
	examSeen := make(map[uint]bool)

	response := dto.BulkResultResponse{
		Results: make([]dto.ResultResponse, 0, len(payload.Results)),
		Failed:  make([]dto.FailedResultItem, 0),
	}

	for _, item := range payload.Results {
		stored, _, err := s.store(ctx, item, evaluatedBy, examSeen)
		if err != nil {
			response.Errors++
			response.Failed = append(response.Failed, dto.FailedResultItem{
				Key:   item.NaturalKey(),
				Error: err.Error(),
			})
			continue
		}
		response.Stored++
		response.Results = append(response.Results, stored)
	}

	s.logger.Info().
		Int("stored", response.Stored).
		Int("errors", response.Errors).
		Msg("bulk results processed")

	return response, nil
}

// store validates and upserts one result. examSeen, when non-nil, memoises
// exam existence lookups within a single bulk call.
func (s *resultService) store(ctx context.Context, payload dto.ResultStoreRequest, evaluatedBy *uint, examSeen map[uint]bool) (dto.ResultResponse, bool, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ResultResponse{}, false, err
	}

	exists, known := examSeen[payload.ExamID]
	if !known {
		var err error
		exists, err = s.exams.Exists(ctx, payload.ExamID)
		if err != nil {
			return dto.ResultResponse{}, false, err
		}
		if examSeen != nil {
			examSeen[payload.ExamID] = exists
		}
	}
	if !exists {
		return dto.ResultResponse{}, false, fmt.Errorf("%w: exam %d", ErrExamNotFound, payload.ExamID)
	}

	result := models.EvaluationResult{
		ExamID:        payload.ExamID,
		SectionID:     payload.SectionID,
		SubjectID:     payload.SubjectID,
		StudentID:     payload.StudentID,
		EvaluatedBy:   evaluatedBy,
		TotalMarks:    payload.TotalMarks,
		MaxTotalMarks: payload.MaxTotalMarks,
	}
	if err := result.SetQuestionOutcomes(s.sanitizeQuestions(payload.Questions)); err != nil {
		return dto.ResultResponse{}, false, err
	}

	created, err := s.results.Upsert(ctx, &result)
	if err != nil {
		observability.ResultUpserts().WithLabelValues("failed").Inc()
		return dto.ResultResponse{}, false, err
	}
	observability.ResultUpserts().WithLabelValues(upsertOutcome(created)).Inc()

	if s.notifier != nil {
		s.notifier.ResultStored(ctx, result, created)
	}

	s.logger.Info().
		Uint("result_id", result.ID).
		Uint("student_id", result.StudentID).
		Bool("created", created).
		Msg("result stored")

	return dto.NewResultResponse(result), created, nil
}

func (s *resultService) GetByID(ctx context.Context, id uint) (dto.ResultResponse, error) {
	result, err := s.results.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResultResponse{}, ErrResultNotFound
		}
		return dto.ResultResponse{}, err
	}
	return dto.NewResultResponse(result), nil
}

func (s *resultService) GetByNaturalKey(ctx context.Context, examID, sectionID, subjectID, studentID uint) (dto.ResultResponse, error) {
	scope := repository.ResultScope{ExamID: examID, SectionID: sectionID, SubjectID: subjectID}
	result, err := s.results.GetByNaturalKey(ctx, scope, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResultResponse{}, ErrResultNotFound
		}
		return dto.ResultResponse{}, err
	}
	return dto.NewResultResponse(result), nil
}

func (s *resultService) ListByStudent(ctx context.Context, studentID uint) ([]dto.ResultResponse, error) {
	results, err := s.results.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return dto.NewResultResponseSlice(results), nil
}

func (s *resultService) ListByScope(ctx context.Context, sectionID, examID, subjectID uint) ([]dto.ResultResponse, error) {
	scope := repository.ResultScope{ExamID: examID, SectionID: sectionID, SubjectID: subjectID}
	results, err := s.results.ListByScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	return dto.NewResultResponseSlice(results), nil
}

func (s *resultService) Delete(ctx context.Context, id uint) (dto.ResultResponse, error) {
	result, err := s.results.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResultResponse{}, ErrResultNotFound
		}
		return dto.ResultResponse{}, err
	}

	s.logger.Info().Uint("result_id", id).Msg("result deleted")

	return dto.NewResultResponse(result), nil
}

// sanitizeQuestions strips markup from all free-text fields before storage.
func (s *resultService) sanitizeQuestions(questions []dto.QuestionOutcomeRequest) []models.QuestionOutcome {
	outcomes := make([]models.QuestionOutcome, 0, len(questions))
	for _, q := range questions {
		outcomes = append(outcomes, models.QuestionOutcome{
			Number:          q.Number,
			Text:            s.clean(q.Text),
			StudentAnswer:   s.clean(q.StudentAnswer),
			ReferenceAnswer: s.clean(q.ReferenceAnswer),
			Rubric:          s.clean(q.Rubric),
			MaxMarks:        q.MaxMarks,
			Marks:           q.Marks,
			IsCorrect:       q.IsCorrect,
			Feedback:        s.clean(q.Feedback),
		})
	}
	return outcomes
}

func (s *resultService) clean(text string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(text))
}

func upsertOutcome(created bool) string {
	if created {
		return "created"
	}
	return "updated"
}
