package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gradewise/exam-api/internal/dto"
)

// guarded prepends guard to the route handler when non-nil.
func guarded(guard fiber.Handler, h fiber.Handler) []fiber.Handler {
	if guard == nil {
		return []fiber.Handler{h}
	}
	return []fiber.Handler{guard, h}
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	if value == "" {
		return 0, errors.New("missing " + key)
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// scopeFromParams reads the four-part submission/result scope out of the
// route parameters.
func scopeFromParams(c *fiber.Ctx) (dto.SubmissionScope, error) {
	sectionID, err := parseUintParam(c, "sectionId")
	if err != nil {
		return dto.SubmissionScope{}, err
	}
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return dto.SubmissionScope{}, err
	}
	subjectID, err := parseUintParam(c, "subjectId")
	if err != nil {
		return dto.SubmissionScope{}, err
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return dto.SubmissionScope{}, err
	}

	return dto.SubmissionScope{
		SectionID: sectionID,
		ExamID:    examID,
		SubjectID: subjectID,
		StudentID: studentID,
	}, nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

// evaluatorFromContext returns the acting staff user, or nil for automated
// ingestion (the grading engine authenticates as a service identity).
func evaluatorFromContext(c *fiber.Ctx) *uint {
	if userRoleFromContext(c) == "service" {
		return nil
	}
	if id := userIDFromContext(c); id != 0 {
		return &id
	}
	return nil
}
