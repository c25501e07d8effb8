package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/gradewise/exam-api/internal/models"
)

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func buildSubmissionRequest(t *testing.T, target string, filenames []string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, filename := range filenames {
		part, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {`form-data; name="files"; filename="` + filename + `"`},
			"Content-Type":        {"image/png"},
		})
		require.NoError(t, err)
		_, err = part.Write(pngBytes)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestSubmissionCreate(t *testing.T) {
	app, db := setupApp(t, "teacher")
	seedExam(t, db)

	req := buildSubmissionRequest(t, "/api/sections/1/exams/1/subjects/1/students/4/submissions", []string{"page1.png", "page2.png"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	submission := data["submission"].(map[string]interface{})
	require.Equal(t, models.SubmissionStatusSubmitted, submission["status"])
	require.Len(t, submission["files"].([]interface{}), 2)

	segmentation := data["segmentation"].(map[string]interface{})
	require.Equal(t, true, segmentation["success"])
}

func TestSubmissionDuplicateConflict(t *testing.T) {
	app, db := setupApp(t, "teacher")
	seedExam(t, db)

	target := "/api/sections/1/exams/1/subjects/1/students/4/submissions"

	resp, err := app.Test(buildSubmissionRequest(t, target, []string{"page1.png"}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	first := decodeBody(t, resp)
	firstID := first["data"].(map[string]interface{})["submission"].(map[string]interface{})["id"]

	resp, err = app.Test(buildSubmissionRequest(t, target, []string{"retry.png"}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	body := decodeBody(t, resp)
	require.Equal(t, false, body["success"])
	data := body["data"].(map[string]interface{})
	require.Equal(t, firstID, data["existing_submission_id"])

	var rows int64
	require.NoError(t, db.Model(&models.StudentSubmission{}).Count(&rows).Error)
	require.Equal(t, int64(1), rows)
}

func TestSubmissionUnknownExam(t *testing.T) {
	app, _ := setupApp(t, "teacher")

	req := buildSubmissionRequest(t, "/api/sections/1/exams/99/subjects/1/students/4/submissions", []string{"page.png"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSubmissionWithoutEvidence(t *testing.T) {
	app, db := setupApp(t, "teacher")
	seedExam(t, db)

	req := buildSubmissionRequest(t, "/api/sections/1/exams/1/subjects/1/students/4/submissions", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionGetByScope(t *testing.T) {
	app, db := setupApp(t, "teacher")
	seedExam(t, db)

	target := "/api/sections/1/exams/1/subjects/1/students/4/submissions"
	resp, err := app.Test(buildSubmissionRequest(t, target, []string{"page.png"}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = performJSON(t, app, http.MethodGet, target, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	require.Equal(t, float64(4), data["student_id"])
}

func TestSubmissionRateLimitSparesReads(t *testing.T) {
	// Allow a single request through, then throttle.
	allowance := 1
	limiter := func(c *fiber.Ctx) error {
		if allowance == 0 {
			return c.Status(fiber.StatusTooManyRequests).SendString("rate limit exceeded")
		}
		allowance--
		return c.Next()
	}

	app, db := setupAppWithSubmitLimit(t, "teacher", limiter)
	seedExam(t, db)

	target := "/api/sections/1/exams/1/subjects/1/students/4/submissions"

	resp, err := app.Test(buildSubmissionRequest(t, target, []string{"page.png"}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// The read path is not behind the limiter.
	resp = performJSON(t, app, http.MethodGet, target, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(buildSubmissionRequest(t, target, []string{"retry.png"}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestSubmissionGetMissingScope(t *testing.T) {
	app, _ := setupApp(t, "teacher")

	resp := performJSON(t, app, http.MethodGet, "/api/sections/1/exams/1/subjects/1/students/4/submissions", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
