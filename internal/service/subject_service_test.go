package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/gradewise/exam-api/internal/dto"
	"github.com/gradewise/exam-api/internal/models"
)

type fakeSubjectRepo struct {
	catalog map[string]models.Subject
	links   map[uint]map[uint]struct{}
	nextID  uint
}

func newFakeSubjectRepo() *fakeSubjectRepo {
	return &fakeSubjectRepo{
		catalog: make(map[string]models.Subject),
		links:   make(map[uint]map[uint]struct{}),
		nextID:  1,
	}
}

func (f *fakeSubjectRepo) AttachToExam(_ context.Context, examID uint, names []string, ids []uint) ([]models.Subject, error) {
	if f.links[examID] == nil {
		f.links[examID] = make(map[uint]struct{})
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		subject, ok := f.catalog[name]
		if !ok {
			subject = models.Subject{ID: f.nextID, Name: name}
			f.nextID++
			f.catalog[name] = subject
		}
		f.links[examID][subject.ID] = struct{}{}
	}
	for _, id := range ids {
		for _, subject := range f.catalog {
			if subject.ID == id {
				f.links[examID][id] = struct{}{}
			}
		}
	}
	return f.listByExam(examID), nil
}

func (f *fakeSubjectRepo) ListByExam(_ context.Context, examID uint) ([]models.Subject, error) {
	return f.listByExam(examID), nil
}

func (f *fakeSubjectRepo) GetByIDs(_ context.Context, ids []uint) ([]models.Subject, error) {
	var subjects []models.Subject
	for _, subject := range f.catalog {
		for _, id := range ids {
			if subject.ID == id {
				subjects = append(subjects, subject)
			}
		}
	}
	return subjects, nil
}

func (f *fakeSubjectRepo) listByExam(examID uint) []models.Subject {
	var subjects []models.Subject
	for _, subject := range f.catalog {
		if _, ok := f.links[examID][subject.ID]; ok {
			subjects = append(subjects, subject)
		}
	}
	return subjects
}

func validExamRequest() dto.ExamCreateRequest {
	start := time.Now().Add(time.Hour)
	return dto.ExamCreateRequest{
		Title:     "Midterm Examination",
		SectionID: 1,
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
	}
}

func TestCreateExamWithSubjects(t *testing.T) {
	svc := NewSubjectService(newFakeSubjectRepo(), newFakeExamRepo(), validator.New(validator.WithRequiredStructEnabled()), testLogger())

	payload := validExamRequest()
	payload.SubjectNames = []string{"Mathematics", "Physics"}

	exam, err := svc.CreateExam(context.Background(), payload, 3)
	require.NoError(t, err)
	require.NotZero(t, exam.ID)
	require.Equal(t, uint(3), exam.CreatedBy)
	require.Len(t, exam.Subjects, 2)
}

func TestCreateExamRejectsInvertedWindow(t *testing.T) {
	svc := NewSubjectService(newFakeSubjectRepo(), newFakeExamRepo(), validator.New(validator.WithRequiredStructEnabled()), testLogger())

	payload := validExamRequest()
	payload.EndTime = payload.StartTime.Add(-time.Hour)

	_, err := svc.CreateExam(context.Background(), payload, 3)
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}

func TestAttachSubjectsUnknownExam(t *testing.T) {
	svc := NewSubjectService(newFakeSubjectRepo(), newFakeExamRepo(), validator.New(validator.WithRequiredStructEnabled()), testLogger())

	_, err := svc.AttachSubjects(context.Background(), 99, dto.AttachSubjectsRequest{SubjectNames: []string{"Physics"}})
	require.ErrorIs(t, err, ErrExamNotFound)
}

func TestAttachSubjectsRequiresInput(t *testing.T) {
	svc := NewSubjectService(newFakeSubjectRepo(), newFakeExamRepo(1), validator.New(validator.WithRequiredStructEnabled()), testLogger())

	_, err := svc.AttachSubjects(context.Background(), 1, dto.AttachSubjectsRequest{})
	require.ErrorIs(t, err, ErrNoSubjectsGiven)
}

func TestAttachSubjectsTwiceKeepsOneLink(t *testing.T) {
	repo := newFakeSubjectRepo()
	svc := NewSubjectService(repo, newFakeExamRepo(1), validator.New(validator.WithRequiredStructEnabled()), testLogger())

	first, err := svc.AttachSubjects(context.Background(), 1, dto.AttachSubjectsRequest{SubjectNames: []string{"Chemistry"}})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.AttachSubjects(context.Background(), 1, dto.AttachSubjectsRequest{SubjectNames: []string{"Chemistry"}})
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, first[0].ID, second[0].ID)
}
