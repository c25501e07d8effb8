package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gradewise/exam-api/internal/dto"
	"github.com/gradewise/exam-api/internal/models"
	"github.com/gradewise/exam-api/internal/repository"
)

// ErrExamNotFound indicates the referenced exam does not exist.
var ErrExamNotFound = errors.New("exam not found")

// ErrNoSubjectsGiven indicates an attach request without any subject input.
var ErrNoSubjectsGiven = errors.New("at least one subject name or id is required")

// SubjectService attaches deduplicated subject sets to exams.
type SubjectService interface {
	CreateExam(ctx context.Context, payload dto.ExamCreateRequest, createdBy uint) (dto.ExamResponse, error)
	AttachSubjects(ctx context.Context, examID uint, payload dto.AttachSubjectsRequest) ([]dto.SubjectResponse, error)
	ListExamSubjects(ctx context.Context, examID uint) ([]dto.SubjectResponse, error)
}

type subjectService struct {
	subjects  repository.SubjectRepository
	exams     repository.ExamRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSubjectService constructs a SubjectService instance.
func NewSubjectService(subjectRepo repository.SubjectRepository, examRepo repository.ExamRepository, validate *validator.Validate, logger zerolog.Logger) SubjectService {
	return &subjectService{
		subjects:  subjectRepo,
		exams:     examRepo,
		validator: validate,
		logger:    logger.With().Str("component", "subject_service").Logger(),
	}
}

func (s *subjectService) CreateExam(ctx context.Context, payload dto.ExamCreateRequest, createdBy uint) (dto.ExamResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}

	exam := models.Exam{
		Title:       payload.Title,
		Description: payload.Description,
		SectionID:   payload.SectionID,
		StartTime:   payload.StartTime,
		EndTime:     payload.EndTime,
		CreatedBy:   createdBy,
	}

	if err := s.exams.Create(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	var subjects []models.Subject
	if len(payload.SubjectNames) > 0 || len(payload.SubjectIDs) > 0 {
		attached, err := s.subjects.AttachToExam(ctx, exam.ID, payload.SubjectNames, payload.SubjectIDs)
		if err != nil {
			return dto.ExamResponse{}, err
		}
		subjects = attached
	}

	s.logger.Info().Uint("exam_id", exam.ID).Int("subjects", len(subjects)).Msg("exam created")

	return dto.NewExamResponse(exam, subjects), nil
}

func (s *subjectService) AttachSubjects(ctx context.Context, examID uint, payload dto.AttachSubjectsRequest) ([]dto.SubjectResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}

	if !payload.HasInput() {
		return nil, ErrNoSubjectsGiven
	}

	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	subjects, err := s.subjects.AttachToExam(ctx, examID, payload.SubjectNames, payload.SubjectIDs)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Uint("exam_id", examID).Int("subjects", len(subjects)).Msg("subjects attached")

	return dto.NewSubjectResponseSlice(subjects), nil
}

func (s *subjectService) ListExamSubjects(ctx context.Context, examID uint) ([]dto.SubjectResponse, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	subjects, err := s.subjects.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	return dto.NewSubjectResponseSlice(subjects), nil
}
