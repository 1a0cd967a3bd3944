package config

import (
    "log"
    "os"
    "strconv"
    "time"

    "github.com/joho/godotenv"
    "gopkg.in/yaml.v3"
)

// Config holds all environment-driven settings.
type Config struct {
    DBPath        string
    HTTPPort      string
    CallsDir      string
    EnableWatcher bool

    WorkerCount  int
    QueueSize    int
    PollInterval time.Duration
    TaskTimeout  time.Duration

    Extraction ExtractionConfig
}

// ExtractionConfig captures the AI extraction/summarization settings.
type ExtractionConfig struct {
    Enabled     bool
    Model       string
    BaseURL     string
    APIKeyEnv   string
    MaxAttempts int
    RetryDelay  time.Duration
}

type fileConfig struct {
    DBPath   string `yaml:"db_path"`
    HTTPPort string `yaml:"http_port"`
    CallsDir string `yaml:"calls_dir"`
    Model    string `yaml:"llm_model"`
    BaseURL  string `yaml:"llm_base_url"`
}

// Load reads configuration from environment and optional .env / yaml file.
func Load() Config {
    _ = godotenv.Load()

    cfg := Config{
        DBPath:        getenv("DB_PATH", "./carecall.db"),
        HTTPPort:      getenv("PORT", "8080"),
        CallsDir:      getenv("CALLS_DIR", "./calls"),
        EnableWatcher: getenvBool("ENABLE_WATCHER", true),
        WorkerCount:   clampInt(getenvInt("WORKER_COUNT", 4), 1, 64),
        QueueSize:     clampInt(getenvInt("QUEUE_SIZE", 128), 8, 1024),
        PollInterval:  getenvDuration("POLL_INTERVAL", time.Second),
        TaskTimeout:   getenvDuration("TASK_TIMEOUT", 2*time.Minute),
        Extraction: ExtractionConfig{
            Enabled:     getenvBool("EXTRACTION_ENABLED", true),
            Model:       getenv("OPENAI_MODEL", "gpt-4o-mini"),
            BaseURL:     getenv("OPENAI_BASE_URL", "https://api.openai.com"),
            APIKeyEnv:   "OPENAI_API_KEY",
            MaxAttempts: clampInt(getenvInt("EXTRACTION_MAX_ATTEMPTS", 3), 1, 10),
            RetryDelay:  getenvDuration("EXTRACTION_RETRY_DELAY", time.Second),
        },
    }

    if path := os.Getenv("CONFIG_PATH"); path != "" {
        applyFile(&cfg, path)
    }

    log.Printf("config: db=%s port=%s workers=%d model=%s", cfg.DBPath, cfg.HTTPPort, cfg.WorkerCount, cfg.Extraction.Model)
    return cfg
}

func applyFile(cfg *Config, path string) {
    raw, err := os.ReadFile(path)
    if err != nil {
        log.Printf("config file skipped (%s): %v", path, err)
        return
    }
    var fc fileConfig
    if err := yaml.Unmarshal(raw, &fc); err != nil {
        log.Printf("config file invalid (%s): %v", path, err)
        return
    }
    if fc.DBPath != "" {
        cfg.DBPath = fc.DBPath
    }
    if fc.HTTPPort != "" {
        cfg.HTTPPort = fc.HTTPPort
    }
    if fc.CallsDir != "" {
        cfg.CallsDir = fc.CallsDir
    }
    if fc.Model != "" {
        cfg.Extraction.Model = fc.Model
    }
    if fc.BaseURL != "" {
        cfg.Extraction.BaseURL = fc.BaseURL
    }
}

// APIKey resolves the extraction API key from the environment.
func (c ExtractionConfig) APIKey() string {
    return os.Getenv(c.APIKeyEnv)
}

func getenv(key, def string) string {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    return v
}

func getenvInt(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        return def
    }
    return n
}

func getenvBool(key string, def bool) bool {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    b, err := strconv.ParseBool(v)
    if err != nil {
        return def
    }
    return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    d, err := time.ParseDuration(v)
    if err != nil {
        return def
    }
    return d
}

func clampInt(v, lo, hi int) int {
    if v < lo {
        return lo
    }
    if v > hi {
        return hi
    }
    return v
}
