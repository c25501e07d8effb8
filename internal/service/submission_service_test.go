package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gradewise/exam-api/internal/dto"
	"github.com/gradewise/exam-api/internal/models"
	"github.com/gradewise/exam-api/internal/repository"
	"github.com/gradewise/exam-api/pkg/cloudinary"
	"github.com/gradewise/exam-api/pkg/segmenter"
)

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

type fakeSubmissionRepo struct {
	rows      []models.StudentSubmission
	nextID    uint
	createErr error
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{nextID: 1}
}

func (f *fakeSubmissionRepo) GetByID(_ context.Context, id uint) (models.StudentSubmission, error) {
	for _, row := range f.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return models.StudentSubmission{}, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) GetByScope(_ context.Context, scope repository.SubmissionScope) (models.StudentSubmission, error) {
	for _, row := range f.rows {
		if row.SectionID == scope.SectionID && row.ExamID == scope.ExamID && row.SubjectID == scope.SubjectID && row.StudentID == scope.StudentID {
			return row, nil
		}
	}
	return models.StudentSubmission{}, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) Create(_ context.Context, submission *models.StudentSubmission) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, row := range f.rows {
		if row.SectionID == submission.SectionID && row.ExamID == submission.ExamID && row.SubjectID == submission.SubjectID && row.StudentID == submission.StudentID {
			return gorm.ErrDuplicatedKey
		}
	}
	submission.ID = f.nextID
	f.nextID++
	f.rows = append(f.rows, *submission)
	return nil
}

func (f *fakeSubmissionRepo) ListByStudent(_ context.Context, studentID uint) ([]models.StudentSubmission, error) {
	var rows []models.StudentSubmission
	for _, row := range f.rows {
		if row.StudentID == studentID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

type fakeEvidenceStore struct {
	uploads   int
	destroyed []string
	uploadErr error
	failAfter int
}

func (f *fakeEvidenceStore) Upload(_ context.Context, subfolder, name string, _ io.Reader) (cloudinary.UploadResult, error) {
	if f.uploadErr != nil && f.uploads >= f.failAfter {
		return cloudinary.UploadResult{}, f.uploadErr
	}
	f.uploads++
	publicID := subfolder + "/" + name
	return cloudinary.UploadResult{URL: "https://cdn.example.com/" + publicID, PublicID: publicID}, nil
}

func (f *fakeEvidenceStore) Destroy(_ context.Context, publicID string) error {
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

type fakeSegmenter struct {
	result segmenter.Result
	err    error
	calls  int
}

func (f *fakeSegmenter) Process(_ context.Context, _ []segmenter.Evidence) (segmenter.Result, error) {
	f.calls++
	if f.err != nil {
		return segmenter.Result{}, f.err
	}
	return f.result, nil
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"files\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	files := form.File["files"]
	require.Len(t, files, 1)
	return files[0]
}

func testScope() dto.SubmissionScope {
	return dto.SubmissionScope{SectionID: 1, ExamID: 1, SubjectID: 1, StudentID: 4}
}

func newSubmissionServiceForTest(subRepo repository.SubmissionRepository, store EvidenceStore, seg segmenter.Segmenter) SubmissionService {
	return NewSubmissionService(subRepo, newFakeExamRepo(1), store, seg, SubmissionLimits{MaxFiles: 3, MaxFileSizeMB: 1}, time.Second, validator.New(validator.WithRequiredStructEnabled()), testLogger())
}

func TestSubmitStoresEvidenceAndSegments(t *testing.T) {
	subRepo := newFakeSubmissionRepo()
	store := &fakeEvidenceStore{}
	seg := &fakeSegmenter{result: segmenter.Result{
		Success:          true,
		Message:          "Question segmentation completed",
		CroppedQuestions: []map[string]interface{}{{"question_number": float64(1)}},
	}}
	svc := newSubmissionServiceForTest(subRepo, store, seg)

	files := []*multipart.FileHeader{
		buildFileHeader(t, "page1.png", pngBytes),
		buildFileHeader(t, "page2.png", pngBytes),
	}

	response, err := svc.Submit(context.Background(), testScope(), files)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusSubmitted, response.Submission.Status)
	require.Len(t, response.Submission.Files, 2)
	require.True(t, response.Segmentation.Success)
	require.Equal(t, 2, store.uploads)
	require.Equal(t, 1, seg.calls)
}

func TestSubmitSegmentationFailureDoesNotBlock(t *testing.T) {
	subRepo := newFakeSubmissionRepo()
	seg := &fakeSegmenter{err: errors.New("segmentation service unreachable")}
	svc := newSubmissionServiceForTest(subRepo, &fakeEvidenceStore{}, seg)

	response, err := svc.Submit(context.Background(), testScope(), []*multipart.FileHeader{buildFileHeader(t, "page.png", pngBytes)})
	require.NoError(t, err, "segmentation is best-effort")
	require.False(t, response.Segmentation.Success)
	require.Contains(t, response.Segmentation.Error, "unreachable")
	require.NotZero(t, response.Submission.ID)
}

func TestSubmitRejectsSecondSubmission(t *testing.T) {
	subRepo := newFakeSubmissionRepo()
	store := &fakeEvidenceStore{}
	svc := newSubmissionServiceForTest(subRepo, store, &fakeSegmenter{})

	first, err := svc.Submit(context.Background(), testScope(), []*multipart.FileHeader{buildFileHeader(t, "page.png", pngBytes)})
	require.NoError(t, err)

	uploadsBefore := store.uploads
	_, err = svc.Submit(context.Background(), testScope(), []*multipart.FileHeader{buildFileHeader(t, "retry.png", pngBytes)})

	var conflict *SubmissionExistsError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, first.Submission.ID, conflict.ExistingID)
	require.Equal(t, uploadsBefore, store.uploads, "duplicate must be rejected before any upload")
}

func TestSubmitConcurrentDuplicateCleansUpUploads(t *testing.T) {
	subRepo := newFakeSubmissionRepo()
	subRepo.createErr = gorm.ErrDuplicatedKey
	store := &fakeEvidenceStore{}
	svc := newSubmissionServiceForTest(subRepo, store, &fakeSegmenter{})

	_, err := svc.Submit(context.Background(), testScope(), []*multipart.FileHeader{buildFileHeader(t, "page.png", pngBytes)})

	var conflict *SubmissionExistsError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, store.destroyed, 1, "orphaned evidence must be removed")
}

func TestSubmitPartialUploadFailureCleansUp(t *testing.T) {
	subRepo := newFakeSubmissionRepo()
	store := &fakeEvidenceStore{uploadErr: errors.New("cloud unavailable"), failAfter: 1}
	svc := newSubmissionServiceForTest(subRepo, store, &fakeSegmenter{})

	files := []*multipart.FileHeader{
		buildFileHeader(t, "page1.png", pngBytes),
		buildFileHeader(t, "page2.png", pngBytes),
	}

	_, err := svc.Submit(context.Background(), testScope(), files)
	require.Error(t, err)
	require.Len(t, store.destroyed, 1, "successful upload must be rolled back")
	require.Empty(t, subRepo.rows)
}

func TestSubmitRejectsEmptyEvidence(t *testing.T) {
	svc := newSubmissionServiceForTest(newFakeSubmissionRepo(), &fakeEvidenceStore{}, &fakeSegmenter{})

	_, err := svc.Submit(context.Background(), testScope(), nil)
	require.ErrorIs(t, err, ErrNoEvidence)
}

func TestSubmitRejectsTooManyFiles(t *testing.T) {
	svc := newSubmissionServiceForTest(newFakeSubmissionRepo(), &fakeEvidenceStore{}, &fakeSegmenter{})

	files := make([]*multipart.FileHeader, 0, 4)
	for i := 0; i < 4; i++ {
		files = append(files, buildFileHeader(t, "page.png", pngBytes))
	}

	_, err := svc.Submit(context.Background(), testScope(), files)
	require.ErrorIs(t, err, ErrTooManyFiles)
}

func TestSubmitRejectsNonImageEvidence(t *testing.T) {
	svc := newSubmissionServiceForTest(newFakeSubmissionRepo(), &fakeEvidenceStore{}, &fakeSegmenter{})

	_, err := svc.Submit(context.Background(), testScope(), []*multipart.FileHeader{buildFileHeader(t, "notes.txt", []byte("plain text answer"))})
	require.ErrorIs(t, err, ErrUnsupportedEvidenceType)
}

func TestSubmitUnknownExam(t *testing.T) {
	svc := NewSubmissionService(newFakeSubmissionRepo(), newFakeExamRepo(), &fakeEvidenceStore{}, &fakeSegmenter{}, SubmissionLimits{}, time.Second, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	_, err := svc.Submit(context.Background(), testScope(), []*multipart.FileHeader{buildFileHeader(t, "page.png", pngBytes)})
	require.ErrorIs(t, err, ErrExamNotFound)
}

func TestSubmitInvalidScope(t *testing.T) {
	svc := newSubmissionServiceForTest(newFakeSubmissionRepo(), &fakeEvidenceStore{}, &fakeSegmenter{})

	_, err := svc.Submit(context.Background(), dto.SubmissionScope{SectionID: 1}, []*multipart.FileHeader{buildFileHeader(t, "page.png", pngBytes)})
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}

func TestGetByScopeNotFound(t *testing.T) {
	svc := newSubmissionServiceForTest(newFakeSubmissionRepo(), &fakeEvidenceStore{}, &fakeSegmenter{})

	_, err := svc.GetByScope(context.Background(), testScope())
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}
