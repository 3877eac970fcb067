package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/studypath/api/config"
	"github.com/studypath/api/database"
	"github.com/studypath/api/queue"
	"github.com/studypath/api/router"
	"github.com/studypath/api/services"
	"github.com/studypath/api/services/cron"
	"github.com/studypath/api/services/llm"
	"github.com/studypath/api/storage"
	"github.com/studypath/api/utils/cache"
)

// SetupAndRun boots the service. RUN_MODE selects what runs in this process:
// "api" serves HTTP only, "worker" polls the queue only, "all" does both.
func SetupAndRun() error {
	if err := config.LoadENV(); err != nil {
		log.Printf("App: no .env file loaded: %v", err)
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	store, err := database.StartGORM()
	if err != nil {
		print("Check whether Postgres is running or not\n")
		return err
	}
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	db := store.DB()

	redisCache, err := cache.NewRedisCache(getEnv.REDIS_URL)
	if err != nil {
		log.Printf("Warning: Redis unavailable, progress tracking and locks disabled: %v", err)
	}

	spaces, err := storage.NewSpacesClient(storage.SpacesConfig{
		AccessKey: getEnv.SPACES_ACCESS_KEY,
		SecretKey: getEnv.SPACES_SECRET_KEY,
		Bucket:    getEnv.SPACES_BUCKET,
		Region:    getEnv.SPACES_REGION,
		Endpoint:  getEnv.SPACES_ENDPOINT,
	})
	if err != nil {
		return fmt.Errorf("failed to init object storage: %w", err)
	}

	jobQueue, err := queue.NewSQSQueue(queue.SQSConfig{
		QueueURL:          getEnv.SQS_QUEUE_URL,
		Region:            getEnv.SQS_REGION,
		VisibilityTimeout: getEnv.SQS_VISIBILITY_TIMEOUT,
		WaitTime:          getEnv.SQS_WAIT_TIME,
	})
	if err != nil {
		return fmt.Errorf("failed to init job queue: %w", err)
	}

	gateway := llm.NewGateway(buildProviders(getEnv), getEnv.LLM_MAX_RETRIES)

	var progress *services.ProgressTracker
	if redisCache != nil {
		progress = services.NewProgressTracker(redisCache)
	}

	emailService := services.NewEmailService(services.EmailConfig{
		Host:     getEnv.SMTP_HOST,
		Port:     getEnv.SMTP_PORT,
		Username: getEnv.SMTP_USERNAME,
		Password: getEnv.SMTP_PASSWORD,
		From:     getEnv.SMTP_FROM,
	})
	notifications := services.NewNotificationService(db, emailService, getEnv.PUSH_RELAY_URL)

	extractor := services.NewTextExtractor(
		services.NewPDFExtractor(),
		services.NewOCRClient(getEnv.OCR_SERVICE_URL),
	)

	pipeline := services.NewSyllabusPipeline(services.PipelineConfig{
		DB:             db,
		States:         services.NewStateStore(db),
		Gateway:        gateway,
		Extractor:      extractor,
		Storage:        spaces,
		Notifier:       notifications,
		Progress:       progress,
		QuestionCount:  getEnv.QUIZ_QUESTION_COUNT,
		TopicCallDelay: getEnv.TOPIC_CALL_DELAY,
	})

	syllabusService := services.NewSyllabusService(db, spaces, jobQueue, progress)
	quizService := services.NewQuizService(db, gateway, getEnv.QUIZ_QUESTION_COUNT)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cron maintenance runs wherever the worker runs
	var cronManager *cron.CronManager
	if getEnv.RUN_MODE != "api" && os.Getenv("CRON_ENABLED") != "false" && redisCache != nil {
		cronManager = cron.NewCronManager(db, jobQueue, redisCache, notifications)
		if err := cronManager.Start(); err != nil {
			log.Printf("Warning: failed to start cron jobs: %v", err)
		}
	}

	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	workerDone := make(chan struct{})
	if getEnv.RUN_MODE != "api" {
		worker := services.NewWorker(jobQueue, pipeline, progress)
		go func() {
			defer close(workerDone)
			worker.Run(ctx)
		}()
	} else {
		close(workerDone)
	}

	if getEnv.RUN_MODE == "worker" {
		<-ctx.Done()
		<-workerDone
		return nil
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 16 * 1024 * 1024,
	})
	app.Use(logger.New())
	app.Use(recover.New())

	router.SetupRoutes(app, router.Dependencies{
		SyllabusService: syllabusService,
		QuizService:     quizService,
	})

	go func() {
		<-ctx.Done()
		log.Println("App: shutting down HTTP server")
		if err := app.Shutdown(); err != nil {
			log.Printf("App: shutdown error: %v", err)
		}
	}()

	if err := app.Listen(fmt.Sprintf(":%d", getEnv.PORT)); err != nil {
		return err
	}

	<-workerDone
	return nil
}

// buildProviders assembles the provider fallback order: OpenAI first,
// DeepSeek second. Providers without an API key are skipped.
func buildProviders(getEnv *config.EnvironmentVariable) []llm.Provider {
	var providers []llm.Provider
	if getEnv.OPENAI_API_KEY != "" {
		providers = append(providers, llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  getEnv.OPENAI_API_KEY,
			BaseURL: getEnv.OPENAI_BASE_URL,
			Model:   getEnv.OPENAI_MODEL,
		}))
	}
	if getEnv.DEEPSEEK_API_KEY != "" {
		providers = append(providers, llm.NewDeepSeekClient(llm.DeepSeekConfig{
			APIKey: getEnv.DEEPSEEK_API_KEY,
			Model:  getEnv.DEEPSEEK_MODEL,
		}))
	}
	if len(providers) == 0 {
		log.Println("Warning: no LLM provider configured, processing will fail until one is set")
	}
	return providers
}
