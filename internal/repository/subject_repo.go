package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gradewise/exam-api/internal/models"
)

// SubjectRepository defines data operations for the subject catalog and its
// exam links.
type SubjectRepository interface {
	// AttachToExam resolves names (create-if-absent) and ids (unknown ids
	// skipped), de-duplicates the set and links every subject to the exam,
	// all inside one transaction. Re-attachment of an already linked subject
	// is a no-op. Returns the full subject list attached to the exam.
	AttachToExam(ctx context.Context, examID uint, names []string, ids []uint) ([]models.Subject, error)
	ListByExam(ctx context.Context, examID uint) ([]models.Subject, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Subject, error)
}

type subjectRepository struct {
	db *gorm.DB
}

// NewSubjectRepository instantiates the repository.
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

func (r *subjectRepository) AttachToExam(ctx context.Context, examID uint, names []string, ids []uint) ([]models.Subject, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolved := make(map[uint]struct{})

		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			subject, err := findOrCreateSubject(tx, name)
			if err != nil {
				return err
			}
			resolved[subject.ID] = struct{}{}
		}

		if len(ids) > 0 {
			var known []models.Subject
			if err := tx.Where("id IN ?", ids).Find(&known).Error; err != nil {
				return err
			}
			// Unknown ids are skipped on purpose; the caller treats the id
			// list as best-effort.
			for _, subject := range known {
				resolved[subject.ID] = struct{}{}
			}
		}

		for subjectID := range resolved {
			link := models.ExamSubject{ExamID: examID, SubjectID: subjectID}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "exam_id"}, {Name: "subject_id"}},
				DoNothing: true,
			}).Create(&link).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.ListByExam(ctx, examID)
}

func (r *subjectRepository) ListByExam(ctx context.Context, examID uint) ([]models.Subject, error) {
	var subjects []models.Subject
	err := r.db.WithContext(ctx).
		Joins("JOIN exam_subjects ON exam_subjects.subject_id = subjects.id").
		Where("exam_subjects.exam_id = ?", examID).
		Order("subjects.name ASC").
		Find(&subjects).Error
	if err != nil {
		return nil, err
	}
	return subjects, nil
}

func (r *subjectRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var subjects []models.Subject
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&subjects).Error; err != nil {
		return nil, err
	}
	return subjects, nil
}

// findOrCreateSubject upserts on the unique name: the insert backs off to the
// existing row on conflict, so two concurrent callers converge on one
// catalog entry.
func findOrCreateSubject(tx *gorm.DB, name string) (models.Subject, error) {
	subject := models.Subject{Name: name}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&subject).Error; err != nil {
		return models.Subject{}, err
	}

	if subject.ID != 0 {
		return subject, nil
	}

	var existing models.Subject
	if err := tx.Where("name = ?", name).First(&existing).Error; err != nil {
		return models.Subject{}, err
	}
	return existing, nil
}
