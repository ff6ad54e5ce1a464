package app

import (
	"strings"
	"time"

	"github.com/yungbote/curricula-backend/internal/platform/envutil"
)

type Config struct {
	Port         string
	Environment  string
	Version      string
	AllowOrigins []string

	JWTSecretKey    string
	AdminAPIKeyHash string

	// Provider picks the generative backend: "gemini", "openai" or "none".
	Provider               string
	ModelRequestsPerMinute int

	WorkerConcurrency int
	WorkerPoll        time.Duration
	JobRetention      time.Duration

	OCWBaseURL      string
	TemplateDir     string
	SymbolTablePath string
	StandardsPath   string
}

func LoadConfig() Config {
	return Config{
		Port:         envutil.String("PORT", "8080"),
		Environment:  envutil.String("ENVIRONMENT", "development"),
		Version:      envutil.String("SERVICE_VERSION", "dev"),
		AllowOrigins: splitCSV(envutil.String("CORS_ALLOW_ORIGINS", "")),

		JWTSecretKey:    envutil.String("JWT_SECRET_KEY", "defaultsecret"),
		AdminAPIKeyHash: envutil.String("ADMIN_API_KEY_HASH", ""),

		Provider:               envutil.String("TEXTGEN_PROVIDER", "gemini"),
		ModelRequestsPerMinute: envutil.Int("MODEL_REQUESTS_PER_MINUTE", 60),

		WorkerConcurrency: envutil.Int("IMPORT_CONCURRENCY", 2),
		WorkerPoll:        envutil.Duration("IMPORT_POLL_INTERVAL", 2*time.Second),
		JobRetention:      envutil.Duration("JOB_RETENTION", 30*24*time.Hour),

		OCWBaseURL:      envutil.String("OCW_BASE_URL", "https://ocw.mit.edu"),
		TemplateDir:     envutil.String("STRUCTURE_TEMPLATE_DIR", ""),
		SymbolTablePath: envutil.String("SYMBOL_TABLE_PATH", ""),
		StandardsPath:   envutil.String("STANDARDS_PATH", ""),
	}
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
