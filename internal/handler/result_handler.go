package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/gradewise/exam-api/internal/dto"
	"github.com/gradewise/exam-api/internal/service"
	"github.com/gradewise/exam-api/internal/utils"
)

// ResultHandler manages evaluation result endpoints.
type ResultHandler struct {
	results    service.ResultService
	statistics service.StatisticsService
	logger     zerolog.Logger
}

// NewResultHandler builds a result handler instance.
func NewResultHandler(results service.ResultService, statistics service.StatisticsService, logger zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		results:    results,
		statistics: statistics,
		logger:     logger.With().Str("component", "result_handler").Logger(),
	}
}

// Register attaches the flat result routes. writeGuard gates the ingestion
// POSTs and deleteGuard the destructive delete; the read paths stay open to
// any authenticated caller so students can fetch their own results. Pass nil
// to leave a guard out.
func (h *ResultHandler) Register(router fiber.Router, writeGuard, deleteGuard fiber.Handler) {
	router.Post("", guarded(writeGuard, h.storeOne)...)
	router.Post("/bulk", guarded(writeGuard, h.storeBulk)...)
	router.Get("/student/:studentId", h.listByStudent)
	router.Get("/:resultId", h.getByID)
	router.Delete("/:resultId", guarded(deleteGuard, h.delete)...)
}

// RegisterScoped attaches the scope-parameterised read routes under
// /sections/:sectionId/exams/:examId/subjects/:subjectId.
func (h *ResultHandler) RegisterScoped(router fiber.Router) {
	router.Get("/results", h.listByScope)
	router.Get("/results/statistics", h.scopeStatistics)
	router.Get("/results/students/:studentId", h.getByNaturalKey)
}

func (h *ResultHandler) storeOne(c *fiber.Ctx) error {
	var payload dto.ResultStoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, created, err := h.results.StoreOne(c.Context(), payload, evaluatorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	if created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "result stored", fiber.Map{"result": result})
	}
	return utils.SendSuccess(c, "result updated", fiber.Map{"result": result})
}

func (h *ResultHandler) storeBulk(c *fiber.Ctx) error {
	var payload dto.BulkResultRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.results.StoreBulk(c.Context(), payload, evaluatorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "bulk results processed", response)
}

func (h *ResultHandler) getByID(c *fiber.Ctx) error {
	resultID, err := parseUintParam(c, "resultId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.results.GetByID(c.Context(), resultID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "result retrieved", fiber.Map{"result": result})
}

func (h *ResultHandler) listByStudent(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	results, err := h.results.ListByStudent(c.Context(), studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "results retrieved", fiber.Map{"results": results, "count": len(results)})
}

func (h *ResultHandler) listByScope(c *fiber.Ctx) error {
	scope, err := scopeTripleFromParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	results, err := h.results.ListByScope(c.Context(), scope.sectionID, scope.examID, scope.subjectID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "results retrieved", fiber.Map{"results": results, "count": len(results)})
}

func (h *ResultHandler) getByNaturalKey(c *fiber.Ctx) error {
	scope, err := scopeTripleFromParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.results.GetByNaturalKey(c.Context(), scope.examID, scope.sectionID, scope.subjectID, studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "result retrieved", fiber.Map{"result": result})
}

func (h *ResultHandler) scopeStatistics(c *fiber.Ctx) error {
	scope, err := scopeTripleFromParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	stats, err := h.statistics.Statistics(c.Context(), scope.examID, scope.sectionID, scope.subjectID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "statistics computed", stats)
}

func (h *ResultHandler) delete(c *fiber.Ctx) error {
	resultID, err := parseUintParam(c, "resultId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.results.Delete(c.Context(), resultID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "result deleted", fiber.Map{"result": result})
}

func (h *ResultHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrResultNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "result not found")
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrNoResults):
		return utils.SendError(c, fiber.StatusNotFound, "no results for this scope yet")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

type scopeTriple struct {
	sectionID uint
	examID    uint
	subjectID uint
}

func scopeTripleFromParams(c *fiber.Ctx) (scopeTriple, error) {
	sectionID, err := parseUintParam(c, "sectionId")
	if err != nil {
		return scopeTriple{}, err
	}
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return scopeTriple{}, err
	}
	subjectID, err := parseUintParam(c, "subjectId")
	if err != nil {
		return scopeTriple{}, err
	}
	return scopeTriple{sectionID: sectionID, examID: examID, subjectID: subjectID}, nil
}
