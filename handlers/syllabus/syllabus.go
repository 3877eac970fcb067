package syllabus

import (
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/studypath/api/model"
	"github.com/studypath/api/services"
	"github.com/studypath/api/utils/response"
	"github.com/studypath/api/utils/validation"
	"gorm.io/gorm"
)

// maxUploadBytes caps syllabus file uploads at 15 MB
const maxUploadBytes = 15 * 1024 * 1024

// SyllabusHandler handles syllabus-related requests
type SyllabusHandler struct {
	syllabusService *services.SyllabusService
	quizService     *services.QuizService
	validator       *validation.Validator
}

// NewSyllabusHandler creates a new syllabus handler
func NewSyllabusHandler(syllabusService *services.SyllabusService, quizService *services.QuizService) *SyllabusHandler {
	return &SyllabusHandler{
		syllabusService: syllabusService,
		quizService:     quizService,
		validator:       validation.NewValidator(),
	}
}

// uploadRequest is the non-file part of a syllabus upload
type uploadRequest struct {
	UserID            uint   `json:"user_id" form:"user_id" validate:"required"`
	Title             string `json:"title" form:"title" validate:"required,max=255"`
	RawText           string `json:"raw_text" form:"raw_text"`
	PreferredLanguage string `json:"preferred_language" form:"preferred_language" validate:"omitempty,max=50"`
	DailyStudyMinutes int    `json:"daily_study_minutes" form:"daily_study_minutes" validate:"omitempty,gte=15,lte=960"`
}

// Upload handles POST /api/v1/syllabi
// Accepts multipart form data with an optional "file" part, or plain JSON
// with raw_text. Returns 202 with the job ID; processing is asynchronous.
func (h *SyllabusHandler) Upload(c *fiber.Ctx) error {
	var req uploadRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Title = validation.SanitizeString(req.Title)

	if err := h.validator.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"errors":  validation.FormatValidationErrors(err),
		})
	}

	upload := services.UploadRequest{
		UserID:            req.UserID,
		Title:             req.Title,
		RawText:           req.RawText,
		PreferredLanguage: req.PreferredLanguage,
		DailyStudyMinutes: req.DailyStudyMinutes,
	}

	if file, err := c.FormFile("file"); err == nil {
		if file.Size > maxUploadBytes {
			return response.BadRequest(c, "File exceeds the 15 MB upload limit")
		}
		src, err := file.Open()
		if err != nil {
			return response.InternalServerError(c, "Failed to read uploaded file")
		}
		defer src.Close()

		content, err := io.ReadAll(src)
		if err != nil {
			return response.InternalServerError(c, "Failed to read uploaded file")
		}
		upload.FileName = file.Filename
		upload.FileContent = content
	}

	if upload.RawText == "" && len(upload.FileContent) == 0 {
		return response.BadRequest(c, "Provide either raw_text or a file")
	}

	syllabus, jobID, err := h.syllabusService.Upload(c.Context(), upload)
	if err != nil {
		if syllabus != nil {
			// Row created but enqueue failed; maintenance will retry
			return response.Accepted(c, "Syllabus saved, processing will start shortly", fiber.Map{
				"syllabus_id": syllabus.ID,
				"status":      syllabus.Status,
			})
		}
		return response.InternalServerError(c, "Failed to upload syllabus")
	}

	return response.Accepted(c, "Syllabus queued for processing", fiber.Map{
		"syllabus_id": syllabus.ID,
		"job_id":      jobID,
		"status":      syllabus.Status,
	})
}

// GetStatus handles GET /api/v1/syllabi/:id/status
func (h *SyllabusHandler) GetStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid syllabus ID")
	}

	status, err := h.syllabusService.GetStatus(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrSyllabusNotFound) {
			return response.NotFound(c, "Syllabus not found")
		}
		return response.InternalServerError(c, "Failed to fetch syllabus status")
	}

	return response.Success(c, status)
}

// GetPlan handles GET /api/v1/syllabi/:id/plan
// Returns the syllabus with its scheduled topics in study order.
func (h *SyllabusHandler) GetPlan(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid syllabus ID")
	}

	syllabus, err := h.syllabusService.GetPlan(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrSyllabusNotFound) {
			return response.NotFound(c, "Syllabus not found")
		}
		return response.InternalServerError(c, "Failed to fetch study plan")
	}

	return response.Success(c, syllabus)
}

// Reprocess handles POST /api/v1/syllabi/:id/reprocess
// Re-enqueues a failed syllabus; completed stages are not redone.
func (h *SyllabusHandler) Reprocess(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid syllabus ID")
	}

	jobID, err := h.syllabusService.Reprocess(c.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSyllabusNotFound):
			return response.NotFound(c, "Syllabus not found")
		case errors.Is(err, services.ErrSyllabusBusy):
			return response.Conflict(c, "Syllabus is already being processed")
		default:
			return response.BadRequest(c, err.Error())
		}
	}

	return response.Accepted(c, "Syllabus queued for reprocessing", fiber.Map{
		"syllabus_id": id,
		"job_id":      jobID,
	})
}

// GetJobProgress handles GET /api/v1/jobs/:job_id
func (h *SyllabusHandler) GetJobProgress(c *fiber.Ctx) error {
	jobID := c.Params("job_id")
	if jobID == "" {
		return response.BadRequest(c, "Invalid job ID")
	}

	job, err := h.syllabusService.GetJobProgress(c.Context(), jobID)
	if err != nil {
		return response.NotFound(c, "Job not found or expired")
	}

	return response.Success(c, job)
}

// GetQuiz handles GET /api/v1/topics/:topic_id/quiz/:level
// Returns the newest version of the quiz at that level.
func (h *SyllabusHandler) GetQuiz(c *fiber.Ctx) error {
	topicID, err := parseID(c, "topic_id")
	if err != nil {
		return response.BadRequest(c, "Invalid topic ID")
	}

	level, ok := parseLevel(c.Params("level"))
	if !ok {
		return response.BadRequest(c, "Level must be beginner, intermediate or advanced")
	}

	quiz, err := h.syllabusService.GetQuiz(c.Context(), topicID, level)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Quiz not found for this topic and level")
		}
		return response.InternalServerError(c, "Failed to fetch quiz")
	}

	return response.Success(c, quiz)
}

// RegenerateQuiz handles POST /api/v1/topics/:topic_id/quiz/:level/regenerate
// Produces a fresh quiz at the next version; the old quiz stays available.
func (h *SyllabusHandler) RegenerateQuiz(c *fiber.Ctx) error {
	topicID, err := parseID(c, "topic_id")
	if err != nil {
		return response.BadRequest(c, "Invalid topic ID")
	}

	level, ok := parseLevel(c.Params("level"))
	if !ok {
		return response.BadRequest(c, "Level must be beginner, intermediate or advanced")
	}

	quiz, err := h.quizService.Regenerate(c.Context(), topicID, level)
	if err != nil {
		return response.InternalServerError(c, "Failed to regenerate quiz: "+err.Error())
	}

	return response.Created(c, quiz)
}

func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func parseLevel(raw string) (model.QuizLevel, bool) {
	level := model.QuizLevel(raw)
	for _, known := range model.Levels() {
		if level == known {
			return level, true
		}
	}
	return "", false
}
