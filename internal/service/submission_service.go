package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gradewise/exam-api/internal/dto"
	"github.com/gradewise/exam-api/internal/models"
	"github.com/gradewise/exam-api/internal/repository"
	"github.com/gradewise/exam-api/pkg/cloudinary"
	"github.com/gradewise/exam-api/pkg/segmenter"
)

var (
	// ErrSubmissionNotFound indicates no submission exists at the scope.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrNoEvidence indicates the submission carried no files.
	ErrNoEvidence = errors.New("at least one evidence file is required")
	// ErrTooManyFiles indicates the evidence count exceeded the limit.
	ErrTooManyFiles = errors.New("too many evidence files")
	// ErrEvidenceTooLarge indicates a file exceeded the per-file size cap.
	ErrEvidenceTooLarge = errors.New("evidence file exceeds maximum allowed size")
	// ErrUnsupportedEvidenceType indicates a non-image evidence file.
	ErrUnsupportedEvidenceType = errors.New("evidence must be an image")
)

// SubmissionExistsError reports a duplicate submission attempt, carrying the
// competing record's identity so the caller can view it instead of retrying.
type SubmissionExistsError struct {
	ExistingID uint
}

func (e *SubmissionExistsError) Error() string {
	return fmt.Sprintf("a submission already exists for this scope (id %d)", e.ExistingID)
}

// EvidenceStore abstracts the durable blob store for answer evidence.
type EvidenceStore interface {
	Upload(ctx context.Context, subfolder, name string, reader io.Reader) (cloudinary.UploadResult, error)
	Destroy(ctx context.Context, publicID string) error
}

// SubmissionService guards answer submissions: one per scope, evidence
// validated and stored before the row is committed, segmentation best-effort.
type SubmissionService interface {
	Submit(ctx context.Context, scope dto.SubmissionScope, files []*multipart.FileHeader) (dto.SubmissionCreateResponse, error)
	GetByScope(ctx context.Context, scope dto.SubmissionScope) (dto.SubmissionResponse, error)
	ListByStudent(ctx context.Context, studentID uint) ([]dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions    repository.SubmissionRepository
	exams          repository.ExamRepository
	store          EvidenceStore
	segmenter      segmenter.Segmenter
	validator      *validator.Validate
	logger         zerolog.Logger
	maxFiles       int
	maxFileSize    int64
	segmentTimeout time.Duration
}

// SubmissionLimits bounds the evidence a single submission may carry.
type SubmissionLimits struct {
	MaxFiles      int
	MaxFileSizeMB int
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(subRepo repository.SubmissionRepository, examRepo repository.ExamRepository, store EvidenceStore, seg segmenter.Segmenter, limits SubmissionLimits, segmentTimeout time.Duration, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = 5
	}
	if limits.MaxFileSizeMB <= 0 {
		limits.MaxFileSizeMB = 10
	}
	if segmentTimeout <= 0 {
		segmentTimeout = 30 * time.Second
	}
	if seg == nil {
		seg = segmenter.Noop{}
	}

	return &submissionService{
		submissions:    subRepo,
		exams:          examRepo,
		store:          store,
		segmenter:      seg,
		validator:      validate,
		logger:         logger.With().Str("component", "submission_service").Logger(),
		maxFiles:       limits.MaxFiles,
		maxFileSize:    int64(limits.MaxFileSizeMB) * 1024 * 1024,
		segmentTimeout: segmentTimeout,
	}
}

func (s *submissionService) Submit(ctx context.Context, scope dto.SubmissionScope, files []*multipart.FileHeader) (dto.SubmissionCreateResponse, error) {
	if err := s.validator.Struct(scope); err != nil {
		return dto.SubmissionCreateResponse{}, err
	}

	if err := s.checkEvidence(files); err != nil {
		return dto.SubmissionCreateResponse{}, err
	}

	if _, err := s.exams.GetByID(ctx, scope.ExamID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionCreateResponse{}, ErrExamNotFound
		}
		return dto.SubmissionCreateResponse{}, err
	}

	// Early duplicate check so the common case fails before any upload. The
	// unique index on the scope still backstops concurrent submitters below.
	if existing, err := s.submissions.GetByScope(ctx, repoScope(scope)); err == nil {
		return dto.SubmissionCreateResponse{}, &SubmissionExistsError{ExistingID: existing.ID}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionCreateResponse{}, err
	}

	contents, err := readEvidence(files, s.maxFileSize)
	if err != nil {
		return dto.SubmissionCreateResponse{}, err
	}

	stored, err := s.uploadEvidence(ctx, scope, files, contents)
	if err != nil {
		return dto.SubmissionCreateResponse{}, err
	}

	segmentation := s.segment(ctx, files, contents)

	submission := models.StudentSubmission{
		SectionID: scope.SectionID,
		ExamID:    scope.ExamID,
		SubjectID: scope.SubjectID,
		StudentID: scope.StudentID,
		Status:    models.SubmissionStatusSubmitted,
	}
	if err := submission.SetEvidenceFiles(stored); err != nil {
		s.cleanup(ctx, stored)
		return dto.SubmissionCreateResponse{}, err
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		s.cleanup(ctx, stored)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with a concurrent submitter for the same scope.
			if existing, lookupErr := s.submissions.GetByScope(ctx, repoScope(scope)); lookupErr == nil {
				return dto.SubmissionCreateResponse{}, &SubmissionExistsError{ExistingID: existing.ID}
			}
			return dto.SubmissionCreateResponse{}, &SubmissionExistsError{}
		}
		return dto.SubmissionCreateResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("student_id", scope.StudentID).
		Int("files", len(stored)).
		Bool("segmented", segmentation.Success).
		Msg("submission recorded")

	return dto.SubmissionCreateResponse{
		Submission:   dto.NewSubmissionResponse(submission),
		Segmentation: segmentation,
	}, nil
}

func (s *submissionService) GetByScope(ctx context.Context, scope dto.SubmissionScope) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(scope); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByScope(ctx, repoScope(scope))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) ListByStudent(ctx context.Context, studentID uint) ([]dto.SubmissionResponse, error) {
	submissions, err := s.submissions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewSubmissionResponse(submission))
	}
	return responses, nil
}

func (s *submissionService) checkEvidence(files []*multipart.FileHeader) error {
	if len(files) == 0 {
		return ErrNoEvidence
	}
	if len(files) > s.maxFiles {
		return ErrTooManyFiles
	}
	for _, file := range files {
		if file.Size > s.maxFileSize {
			return ErrEvidenceTooLarge
		}
	}
	return nil
}

// readEvidence loads each file into memory once; the same bytes feed the
// upload and the segmentation call.
func readEvidence(files []*multipart.FileHeader, maxSize int64) ([][]byte, error) {
	contents := make([][]byte, 0, len(files))
	for _, file := range files {
		handle, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open evidence file: %w", err)
		}

		buf := &bytes.Buffer{}
		_, err = buf.ReadFrom(handle)
		handle.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read evidence file: %w", err)
		}
		if int64(buf.Len()) > maxSize {
			return nil, ErrEvidenceTooLarge
		}

		detected := mimetype.Detect(buf.Bytes())
		if !detected.Is("image/png") && !detected.Is("image/jpeg") {
			return nil, ErrUnsupportedEvidenceType
		}

		contents = append(contents, buf.Bytes())
	}
	return contents, nil
}

func (s *submissionService) uploadEvidence(ctx context.Context, scope dto.SubmissionScope, files []*multipart.FileHeader, contents [][]byte) ([]models.EvidenceFile, error) {
	folder := fmt.Sprintf("sections/%d/exams/%d/subjects/%d/students/%d", scope.SectionID, scope.ExamID, scope.SubjectID, scope.StudentID)

	stored := make([]models.EvidenceFile, 0, len(files))
	for i, file := range files {
		asset, err := s.store.Upload(ctx, folder, file.Filename, bytes.NewReader(contents[i]))
		if err != nil {
			s.cleanup(ctx, stored)
			return nil, fmt.Errorf("failed to store evidence: %w", err)
		}

		stored = append(stored, models.EvidenceFile{
			Path:         asset.URL,
			PublicID:     asset.PublicID,
			OriginalName: file.Filename,
			Size:         int64(len(contents[i])),
			ContentType:  mimetype.Detect(contents[i]).String(),
		})
	}
	return stored, nil
}

// segment calls the segmentation collaborator with a bounded timeout. Any
// failure degrades to a marker in the response; the submission itself is
// never blocked.
func (s *submissionService) segment(ctx context.Context, files []*multipart.FileHeader, contents [][]byte) dto.SegmentationResponse {
	evidence := make([]segmenter.Evidence, 0, len(files))
	for i, file := range files {
		evidence = append(evidence, segmenter.Evidence{
			Name:        file.Filename,
			ContentType: mimetype.Detect(contents[i]).String(),
			Data:        contents[i],
		})
	}

	segmentCtx, cancel := context.WithTimeout(ctx, s.segmentTimeout)
	defer cancel()

	result, err := s.segmenter.Process(segmentCtx, evidence)
	if err != nil {
		s.logger.Warn().Err(err).Msg("segmentation degraded")
		return dto.FailedSegmentationResponse(err)
	}

	return dto.NewSegmentationResponse(result)
}

func (s *submissionService) cleanup(ctx context.Context, stored []models.EvidenceFile) {
	for _, file := range stored {
		if err := s.store.Destroy(ctx, file.PublicID); err != nil {
			s.logger.Warn().Err(err).Str("public_id", file.PublicID).Msg("failed to clean up evidence asset")
		}
	}
}

func repoScope(scope dto.SubmissionScope) repository.SubmissionScope {
	return repository.SubmissionScope{
		SectionID: scope.SectionID,
		ExamID:    scope.ExamID,
		SubjectID: scope.SubjectID,
		StudentID: scope.StudentID,
	}
}
