package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/studypath/api/handlers"
	syllabus_handlers "github.com/studypath/api/handlers/syllabus"
	"github.com/studypath/api/services"
)

// Dependencies carries the services the routes need
type Dependencies struct {
	SyllabusService *services.SyllabusService
	QuizService     *services.QuizService
}

// SetupRoutes registers all HTTP routes
func SetupRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/health", handlers.HandleCheckHealth)

	syllabusHandler := syllabus_handlers.NewSyllabusHandler(deps.SyllabusService, deps.QuizService)

	v1 := app.Group("/api/v1")

	v1.Post("/syllabi", syllabusHandler.Upload)
	v1.Get("/syllabi/:id/status", syllabusHandler.GetStatus)
	v1.Get("/syllabi/:id/plan", syllabusHandler.GetPlan)
	v1.Post("/syllabi/:id/reprocess", syllabusHandler.Reprocess)

	v1.Get("/jobs/:job_id", syllabusHandler.GetJobProgress)

	v1.Get("/topics/:topic_id/quiz/:level", syllabusHandler.GetQuiz)
	v1.Post("/topics/:topic_id/quiz/:level/regenerate", syllabusHandler.RegenerateQuiz)
}
