package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/gradewise/exam-api/internal/dto"
	"github.com/gradewise/exam-api/internal/repository"
)

// ErrNoResults indicates the scope has no stored results yet. Callers must
// be able to tell "no students evaluated" apart from "everyone scored zero".
var ErrNoResults = errors.New("no results for scope")

// StatisticsService computes aggregates over stored evaluation results.
type StatisticsService interface {
	Statistics(ctx context.Context, examID, sectionID, subjectID uint) (dto.ScopeStatisticsResponse, error)
}

type statisticsService struct {
	results repository.ResultRepository
	logger  zerolog.Logger
}

// NewStatisticsService constructs a StatisticsService instance.
func NewStatisticsService(resultRepo repository.ResultRepository, logger zerolog.Logger) StatisticsService {
	return &statisticsService{
		results: resultRepo,
		logger:  logger.With().Str("component", "statistics_service").Logger(),
	}
}

func (s *statisticsService) Statistics(ctx context.Context, examID, sectionID, subjectID uint) (dto.ScopeStatisticsResponse, error) {
	scope := repository.ResultScope{ExamID: examID, SectionID: sectionID, SubjectID: subjectID}

	stats, err := s.results.Statistics(ctx, scope)
	if err != nil {
		return dto.ScopeStatisticsResponse{}, err
	}

	if stats.Count == 0 {
		return dto.ScopeStatisticsResponse{}, ErrNoResults
	}

	return dto.ScopeStatisticsResponse{
		Count:       stats.Count,
		Average:     stats.Average,
		Max:         stats.Max,
		Min:         stats.Min,
		MaxPossible: stats.MaxPossible,
	}, nil
}
