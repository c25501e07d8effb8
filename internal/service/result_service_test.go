package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gradewise/exam-api/internal/dto"
	"github.com/gradewise/exam-api/internal/models"
	"github.com/gradewise/exam-api/internal/observability"
	"github.com/gradewise/exam-api/internal/repository"
)

type fakeResultRepo struct {
	rows   map[string]models.EvaluationResult
	nextID uint
	err    error
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{rows: make(map[string]models.EvaluationResult), nextID: 1}
}

func resultKey(examID, sectionID, subjectID, studentID uint) string {
	return fmt.Sprintf("%d/%d/%d/%d", examID, sectionID, subjectID, studentID)
}

func (f *fakeResultRepo) Upsert(_ context.Context, result *models.EvaluationResult) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := resultKey(result.ExamID, result.SectionID, result.SubjectID, result.StudentID)
	if existing, ok := f.rows[key]; ok {
		result.ID = existing.ID
		result.CreatedAt = existing.CreatedAt
		f.rows[key] = *result
		return false, nil
	}
	result.ID = f.nextID
	f.nextID++
	f.rows[key] = *result
	return true, nil
}

func (f *fakeResultRepo) GetByID(_ context.Context, id uint) (models.EvaluationResult, error) {
	for _, row := range f.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return models.EvaluationResult{}, gorm.ErrRecordNotFound
}

func (f *fakeResultRepo) GetByNaturalKey(_ context.Context, scope repository.ResultScope, studentID uint) (models.EvaluationResult, error) {
	if row, ok := f.rows[resultKey(scope.ExamID, scope.SectionID, scope.SubjectID, studentID)]; ok {
		return row, nil
	}
	return models.EvaluationResult{}, gorm.ErrRecordNotFound
}

func (f *fakeResultRepo) ListByStudent(_ context.Context, studentID uint) ([]models.EvaluationResult, error) {
	var rows []models.EvaluationResult
	for _, row := range f.rows {
		if row.StudentID == studentID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (f *fakeResultRepo) ListByScope(_ context.Context, scope repository.ResultScope) ([]models.EvaluationResult, error) {
	var rows []models.EvaluationResult
	for _, row := range f.rows {
		if row.ExamID == scope.ExamID && row.SectionID == scope.SectionID && row.SubjectID == scope.SubjectID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (f *fakeResultRepo) Delete(_ context.Context, id uint) (models.EvaluationResult, error) {
	for key, row := range f.rows {
		if row.ID == id {
			delete(f.rows, key)
			return row, nil
		}
	}
	return models.EvaluationResult{}, gorm.ErrRecordNotFound
}

func (f *fakeResultRepo) Statistics(_ context.Context, scope repository.ResultScope) (repository.ScopeStatistics, error) {
	var stats repository.ScopeStatistics
	var sum float64
	for _, row := range f.rows {
		if row.ExamID != scope.ExamID || row.SectionID != scope.SectionID || row.SubjectID != scope.SubjectID {
			continue
		}
		if stats.Count == 0 || row.TotalMarks > stats.Max {
			stats.Max = row.TotalMarks
		}
		if stats.Count == 0 || row.TotalMarks < stats.Min {
			stats.Min = row.TotalMarks
		}
		if row.MaxTotalMarks > stats.MaxPossible {
			stats.MaxPossible = row.MaxTotalMarks
		}
		sum += row.TotalMarks
		stats.Count++
	}
	if stats.Count > 0 {
		stats.Average = sum / float64(stats.Count)
	}
	return stats, nil
}

type fakeExamRepo struct {
	exams map[uint]models.Exam
	calls int
}

func newFakeExamRepo(ids ...uint) *fakeExamRepo {
	repo := &fakeExamRepo{exams: make(map[uint]models.Exam)}
	for _, id := range ids {
		repo.exams[id] = models.Exam{ID: id, Title: "Exam", SectionID: 1}
	}
	return repo
}

func (f *fakeExamRepo) Create(_ context.Context, exam *models.Exam) error {
	exam.ID = uint(len(f.exams) + 1)
	f.exams[exam.ID] = *exam
	return nil
}

func (f *fakeExamRepo) GetByID(_ context.Context, id uint) (models.Exam, error) {
	if exam, ok := f.exams[id]; ok {
		return exam, nil
	}
	return models.Exam{}, gorm.ErrRecordNotFound
}

func (f *fakeExamRepo) Exists(_ context.Context, id uint) (bool, error) {
	f.calls++
	_, ok := f.exams[id]
	return ok, nil
}

type recordingNotifier struct {
	stored  []models.EvaluationResult
	created []bool
}

func (n *recordingNotifier) ResultStored(_ context.Context, result models.EvaluationResult, created bool) {
	n.stored = append(n.stored, result)
	n.created = append(n.created, created)
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func validResultRequest(studentID uint) dto.ResultStoreRequest {
	return dto.ResultStoreRequest{
		ExamID:        1,
		SectionID:     1,
		SubjectID:     1,
		StudentID:     studentID,
		TotalMarks:    80,
		MaxTotalMarks: 100,
		Questions: []dto.QuestionOutcomeRequest{
			{Number: 1, Text: "Explain photosynthesis", StudentAnswer: "Plants convert light", MaxMarks: 10, Marks: 8, IsCorrect: true, Feedback: "good"},
		},
	}
}

func TestStoreOneCreatesThenUpdates(t *testing.T) {
	resultRepo := newFakeResultRepo()
	notifier := &recordingNotifier{}
	svc := NewResultService(resultRepo, newFakeExamRepo(1), notifier, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	stored, created, err := svc.StoreOne(context.Background(), validResultRequest(7), nil)
	require.NoError(t, err)
	require.True(t, created)
	require.Nil(t, stored.EvaluatedBy)

	again := validResultRequest(7)
	again.TotalMarks = 95
	updated, created, err := svc.StoreOne(context.Background(), again, nil)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, stored.ID, updated.ID)
	require.Equal(t, float64(95), updated.TotalMarks)

	require.Len(t, notifier.stored, 2)
	require.Equal(t, []bool{true, false}, notifier.created)
}

func TestStoreOneRecordsEvaluator(t *testing.T) {
	svc := NewResultService(newFakeResultRepo(), newFakeExamRepo(1), nil, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	teacher := uint(12)
	stored, _, err := svc.StoreOne(context.Background(), validResultRequest(7), &teacher)
	require.NoError(t, err)
	require.NotNil(t, stored.EvaluatedBy)
	require.Equal(t, teacher, *stored.EvaluatedBy)
}

func TestStoreOneUnknownExam(t *testing.T) {
	svc := NewResultService(newFakeResultRepo(), newFakeExamRepo(), nil, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	_, _, err := svc.StoreOne(context.Background(), validResultRequest(7), nil)
	require.ErrorIs(t, err, ErrExamNotFound)
}

func TestStoreOneSanitizesFreeText(t *testing.T) {
	resultRepo := newFakeResultRepo()
	svc := NewResultService(resultRepo, newFakeExamRepo(1), nil, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	payload := validResultRequest(7)
	payload.Questions[0].Feedback = `<script>alert("x")</script>well done`
	payload.Questions[0].StudentAnswer = `<b>bold claim</b>`

	stored, _, err := svc.StoreOne(context.Background(), payload, nil)
	require.NoError(t, err)
	require.Equal(t, "well done", stored.Questions[0].Feedback)
	require.Equal(t, "bold claim", stored.Questions[0].StudentAnswer)
}

func TestStoreBulkIsolatesFailures(t *testing.T) {
	resultRepo := newFakeResultRepo()
	svc := NewResultService(resultRepo, newFakeExamRepo(1), nil, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	malformed := validResultRequest(10)
	malformed.Questions = nil

	unknownExam := validResultRequest(11)
	unknownExam.ExamID = 99

	payload := dto.BulkResultRequest{Results: []dto.ResultStoreRequest{
		validResultRequest(7),
		malformed,
		validResultRequest(8),
		unknownExam,
		validResultRequest(9),
	}}

	response, err := svc.StoreBulk(context.Background(), payload, nil)
	require.NoError(t, err)
	require.Equal(t, 3, response.Stored)
	require.Equal(t, 2, response.Errors)
	require.Len(t, response.Results, 3)
	require.Len(t, response.Failed, 2)
	require.Equal(t, "exam=99 section=1 subject=1 student=11", response.Failed[1].Key)
	require.Len(t, resultRepo.rows, 3, "failed items must not block valid ones")
}

func TestStoreBulkMemoisesExamLookups(t *testing.T) {
	examRepo := newFakeExamRepo(1)
	svc := NewResultService(newFakeResultRepo(), examRepo, nil, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	payload := dto.BulkResultRequest{Results: []dto.ResultStoreRequest{
		validResultRequest(7),
		validResultRequest(8),
		validResultRequest(9),
	}}

	_, err := svc.StoreBulk(context.Background(), payload, nil)
	require.NoError(t, err)
	require.Equal(t, 1, examRepo.calls)
}

func TestStoreBulkRejectsEmptyBatch(t *testing.T) {
	svc := NewResultService(newFakeResultRepo(), newFakeExamRepo(1), nil, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	_, err := svc.StoreBulk(context.Background(), dto.BulkResultRequest{}, nil)
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}

func TestGetByIDNotFound(t *testing.T) {
	svc := NewResultService(newFakeResultRepo(), newFakeExamRepo(1), nil, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	_, err := svc.GetByID(context.Background(), 42)
	require.ErrorIs(t, err, ErrResultNotFound)
}

func TestDeleteReturnsRemovedResult(t *testing.T) {
	resultRepo := newFakeResultRepo()
	svc := NewResultService(resultRepo, newFakeExamRepo(1), nil, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	stored, _, err := svc.StoreOne(context.Background(), validResultRequest(7), nil)
	require.NoError(t, err)

	removed, err := svc.Delete(context.Background(), stored.ID)
	require.NoError(t, err)
	require.Equal(t, stored.ID, removed.ID)

	_, err = svc.GetByID(context.Background(), stored.ID)
	require.ErrorIs(t, err, ErrResultNotFound)
}

func TestStoreOneRepositoryFailure(t *testing.T) {
	resultRepo := newFakeResultRepo()
	resultRepo.err = errors.New("connection reset")
	svc := NewResultService(resultRepo, newFakeExamRepo(1), nil, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	_, _, err := svc.StoreOne(context.Background(), validResultRequest(7), nil)
	require.EqualError(t, err, "connection reset")
}

func TestStoreCountsUpsertOutcomes(t *testing.T) {
	upserts := observability.ResultUpserts()
	createdBefore := testutil.ToFloat64(upserts.WithLabelValues("created"))
	updatedBefore := testutil.ToFloat64(upserts.WithLabelValues("updated"))
	failedBefore := testutil.ToFloat64(upserts.WithLabelValues("failed"))

	resultRepo := newFakeResultRepo()
	svc := NewResultService(resultRepo, newFakeExamRepo(1), nil, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	_, _, err := svc.StoreOne(context.Background(), validResultRequest(7), nil)
	require.NoError(t, err)
	_, _, err = svc.StoreOne(context.Background(), validResultRequest(7), nil)
	require.NoError(t, err)

	resultRepo.err = errors.New("connection reset")
	_, _, err = svc.StoreOne(context.Background(), validResultRequest(8), nil)
	require.Error(t, err)

	require.Equal(t, createdBefore+1, testutil.ToFloat64(upserts.WithLabelValues("created")))
	require.Equal(t, updatedBefore+1, testutil.ToFloat64(upserts.WithLabelValues("updated")))
	require.Equal(t, failedBefore+1, testutil.ToFloat64(upserts.WithLabelValues("failed")))
}
