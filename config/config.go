package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadENV loads environment variables from .env when GO_ENV is unset or "development"
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnvironmentVariable struct {
	GO_ENV   string
	RUN_MODE string // "api", "worker", or "all"
	PORT     int

	// Database
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string

	// Redis
	REDIS_URL string

	// Spaces (S3-compatible object storage)
	SPACES_ACCESS_KEY string
	SPACES_SECRET_KEY string
	SPACES_BUCKET     string
	SPACES_REGION     string
	SPACES_ENDPOINT   string

	// SQS job queue
	SQS_QUEUE_URL          string
	SQS_REGION             string
	SQS_VISIBILITY_TIMEOUT int // seconds
	SQS_WAIT_TIME          int // long-poll seconds

	// LLM providers
	OPENAI_API_KEY   string
	OPENAI_BASE_URL  string
	OPENAI_MODEL     string
	DEEPSEEK_API_KEY string
	DEEPSEEK_MODEL   string
	LLM_MAX_RETRIES  int

	// OCR sidecar
	OCR_SERVICE_URL string

	// Push relay
	PUSH_RELAY_URL string

	// SMTP
	SMTP_HOST     string
	SMTP_PORT     int
	SMTP_USERNAME string
	SMTP_PASSWORD string
	SMTP_FROM     string

	// Pipeline tuning
	QUIZ_QUESTION_COUNT int
	TOPIC_CALL_DELAY    time.Duration
}

func Get() (*EnvironmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	runMode := os.Getenv("RUN_MODE")
	if runMode == "" {
		runMode = "all"
	}

	envVariables := &EnvironmentVariable{
		GO_ENV:   os.Getenv("GO_ENV"),
		RUN_MODE: runMode,
		PORT:     port,

		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),

		REDIS_URL: os.Getenv("REDIS_URL"),

		SPACES_ACCESS_KEY: os.Getenv("SPACES_ACCESS_KEY"),
		SPACES_SECRET_KEY: os.Getenv("SPACES_SECRET_KEY"),
		SPACES_BUCKET:     os.Getenv("SPACES_BUCKET"),
		SPACES_REGION:     getEnvOrDefault("SPACES_REGION", "nyc3"),
		SPACES_ENDPOINT:   getEnvOrDefault("SPACES_ENDPOINT", "nyc3.digitaloceanspaces.com"),

		SQS_QUEUE_URL:          os.Getenv("SQS_QUEUE_URL"),
		SQS_REGION:             getEnvOrDefault("SQS_REGION", "us-east-1"),
		SQS_VISIBILITY_TIMEOUT: getEnvInt("SQS_VISIBILITY_TIMEOUT", 900),
		SQS_WAIT_TIME:          getEnvInt("SQS_WAIT_TIME", 20),

		OPENAI_API_KEY:   os.Getenv("OPENAI_API_KEY"),
		OPENAI_BASE_URL:  getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com"),
		OPENAI_MODEL:     getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		DEEPSEEK_API_KEY: os.Getenv("DEEPSEEK_API_KEY"),
		DEEPSEEK_MODEL:   getEnvOrDefault("DEEPSEEK_MODEL", "deepseek-chat"),
		LLM_MAX_RETRIES:  getEnvInt("LLM_MAX_RETRIES", 3),

		OCR_SERVICE_URL: getEnvOrDefault("OCR_SERVICE_URL", "http://127.0.0.1:8081"),

		PUSH_RELAY_URL: os.Getenv("PUSH_RELAY_URL"),

		SMTP_HOST:     getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
		SMTP_PORT:     getEnvInt("SMTP_PORT", 587),
		SMTP_USERNAME: os.Getenv("SMTP_USERNAME"),
		SMTP_PASSWORD: os.Getenv("SMTP_PASSWORD"),
		SMTP_FROM:     getEnvOrDefault("SMTP_FROM", "noreply@studypath.app"),

		QUIZ_QUESTION_COUNT: getEnvInt("QUIZ_QUESTION_COUNT", 10),
		TOPIC_CALL_DELAY:    time.Duration(getEnvInt("TOPIC_CALL_DELAY_MS", 1500)) * time.Millisecond,
	}

	return envVariables, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
