package conf

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"persona-handler/secret"
)

// Env variables
const (
	EnvProfilePath  = "PROFILE_PATH"
	EnvHistoryPath  = "HISTORY_PATH"
	EnvKnowledgeDir = "KNOWLEDGE_DIR"
	EnvDatabaseURL  = "DATABASE_URL"
	EnvOpsAddr      = "OPS_ADDR"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
	EnvSaveInterval = "SAVE_INTERVAL"
)

// Env is process environment settings
type Env struct {
	ProfilePath  string
	HistoryPath  string
	KnowledgeDir string // empty disables indexing
	DatabaseURL  string // empty keeps memory in process
	OpsAddr      string
	LogLevel     string
	LogFormat    string // text | json
	SaveInterval time.Duration
}

// LoadDotEnv reads .env files if present; existing variables win
func LoadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// ReadEnv fills Env from lookup applying defaults
func ReadEnv(lookup secret.LookupFunc) (Env, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	env := Env{
		ProfilePath:  get(EnvProfilePath, "profile.json"),
		HistoryPath:  get(EnvHistoryPath, "history.pb"),
		KnowledgeDir: get(EnvKnowledgeDir, ""),
		DatabaseURL:  get(EnvDatabaseURL, ""),
		OpsAddr:      get(EnvOpsAddr, ":8080"),
		LogLevel:     get(EnvLogLevel, "info"),
		LogFormat:    get(EnvLogFormat, "text"),
		SaveInterval: time.Minute,
	}

	if raw := get(EnvSaveInterval, ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Env{}, fmt.Errorf("%w: %s=%q", errBadEnv, EnvSaveInterval, raw)
		}
		env.SaveInterval = d
	}
	return env, nil
}
