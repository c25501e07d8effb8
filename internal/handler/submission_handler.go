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

// SubmissionHandler manages answer submission endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided scope group, which carries
// the sectionId/examId/subjectId path parameters. submitGuard throttles the
// submission POST only; reads are never rate limited.
func (h *SubmissionHandler) Register(router fiber.Router, submitGuard fiber.Handler) {
	router.Post("/students/:studentId/submissions", guarded(submitGuard, h.submit)...)
	router.Get("/students/:studentId/submissions", h.getByScope)
}

// RegisterFlat attaches the cross-scope read routes.
func (h *SubmissionHandler) RegisterFlat(router fiber.Router) {
	router.Get("/student/:studentId", h.listByStudent)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	scope, err := scopeFromParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form is required")
	}

	files := form.File["files"]
	if len(files) == 0 {
		// Older clients send a single field named "file".
		files = form.File["file"]
	}

	response, err := h.service.Submit(c.Context(), scope, files)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission recorded", response)
}

func (h *SubmissionHandler) getByScope(c *fiber.Ctx) error {
	scope, err := scopeFromParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.GetByScope(c.Context(), scope)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) listByStudent(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.service.ListByStudent(c.Context(), studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", fiber.Map{"submissions": submissions, "count": len(submissions)})
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var conflict *service.SubmissionExistsError
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &conflict):
		return utils.SendErrorWithData(c, fiber.StatusConflict, err.Error(), dto.SubmissionConflictResponse{
			ExistingSubmissionID: conflict.ExistingID,
		})
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrNoEvidence):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTooManyFiles), errors.Is(err, service.ErrEvidenceTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrUnsupportedEvidenceType):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
