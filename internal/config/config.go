package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Version is the plantrace release, stamped into exported documents.
const Version = "0.3.0"

// Config holds all plantrace configuration.
type Config struct {
	Connector       ConnectorConfig
	Engine          EngineConfig
	Output          OutputConfig
	StorePath       string // SQLite database; empty disables persistence
	HTTPAddr        string // diagnostics listener; empty disables the server
	LogLevel        string
	ShutdownTimeout time.Duration
	ShowVersion     bool
}

// ConnectorConfig holds connector-specific settings.
type ConnectorConfig struct {
	Provider string
	Input    string
	APIKey   string
	Limit    int
	Extra    map[string]string
}

// EngineConfig holds classification and reduction settings.
type EngineConfig struct {
	Format        string // "standard", "origin-first", "legacy"
	SnapshotEvery int
	SnapshotLimit int
	PolicyFile    string
	FilterTask    string
	FilterMode    string // "children", "related"
}

// OutputConfig holds output destination settings.
type OutputConfig struct {
	Format     string // "file", "stdout"
	Dir        string
	Name       string
	Pretty     bool
	Phase      string // "complete", "begin-end"
	ShortNames bool
	WebhookURL string
}

var (
	validFormats     = []string{"standard", "origin-first", "legacy"}
	validOutputs     = []string{"file", "stdout"}
	validPhases      = []string{"complete", "begin-end"}
	validFilterModes = []string{"children", "related"}
)

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Connector: ConnectorConfig{
			Provider: getenv("PLANTRACE_CONNECTOR", "file"),
			Input:    os.Getenv("PLANTRACE_INPUT"),
			APIKey:   os.Getenv("PLANTRACE_API_KEY"),
			Limit:    getenvInt("PLANTRACE_LIMIT", 0),
		},
		Engine: EngineConfig{
			Format:        getenv("PLANTRACE_LOG_FORMAT", "standard"),
			SnapshotEvery: getenvInt("PLANTRACE_SNAPSHOT_EVERY", 0),
			SnapshotLimit: getenvInt("PLANTRACE_SNAPSHOT_LIMIT", 150),
			PolicyFile:    os.Getenv("PLANTRACE_POLICY_FILE"),
			FilterTask:    os.Getenv("PLANTRACE_FILTER_TASK"),
			FilterMode:    getenv("PLANTRACE_FILTER_MODE", "children"),
		},
		Output: OutputConfig{
			Format:     getenv("PLANTRACE_OUTPUT", "file"),
			Dir:        getenv("PLANTRACE_OUTPUT_DIR", "."),
			Name:       getenv("PLANTRACE_OUTPUT_NAME", "trace"),
			Pretty:     getenvBool("PLANTRACE_OUTPUT_PRETTY", false),
			Phase:      getenv("PLANTRACE_PHASE", "complete"),
			ShortNames: getenvBool("PLANTRACE_SHORT_NAMES", false),
			WebhookURL: os.Getenv("PLANTRACE_WEBHOOK_URL"),
		},
		StorePath:       os.Getenv("PLANTRACE_DB_PATH"),
		HTTPAddr:        os.Getenv("PLANTRACE_HTTP_ADDR"),
		LogLevel:        getenv("PLANTRACE_LOG_LEVEL", "info"),
		ShutdownTimeout: getenvDuration("PLANTRACE_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Validate checks the configuration and reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.Connector.Provider == "file" && c.Connector.Input == "" {
		errs = append(errs, errors.New("input path is required for the file connector (PLANTRACE_INPUT or argument)"))
	}
	if c.Connector.Provider == "http" && c.Connector.Input == "" {
		errs = append(errs, errors.New("input URL is required for the http connector (PLANTRACE_INPUT)"))
	}
	if c.Connector.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit must be >= 0, got %d", c.Connector.Limit))
	}
	if !oneOf(c.Engine.Format, validFormats) {
		errs = append(errs, fmt.Errorf("log format must be one of %s, got %q", strings.Join(validFormats, ", "), c.Engine.Format))
	}
	if c.Engine.SnapshotEvery < 0 {
		errs = append(errs, fmt.Errorf("snapshot interval must be >= 0, got %d", c.Engine.SnapshotEvery))
	}
	if c.Engine.SnapshotLimit <= 0 {
		errs = append(errs, fmt.Errorf("snapshot limit must be > 0, got %d", c.Engine.SnapshotLimit))
	}
	if !oneOf(c.Engine.FilterMode, validFilterModes) {
		errs = append(errs, fmt.Errorf("filter mode must be one of %s, got %q", strings.Join(validFilterModes, ", "), c.Engine.FilterMode))
	}
	if c.Engine.PolicyFile != "" {
		if _, err := os.Stat(c.Engine.PolicyFile); err != nil {
			errs = append(errs, fmt.Errorf("policy file: %w", err))
		}
	}
	if !oneOf(c.Output.Format, validOutputs) {
		errs = append(errs, fmt.Errorf("output must be one of %s, got %q", strings.Join(validOutputs, ", "), c.Output.Format))
	}
	if !oneOf(c.Output.Phase, validPhases) {
		errs = append(errs, fmt.Errorf("phase must be one of %s, got %q", strings.Join(validPhases, ", "), c.Output.Phase))
	}
	if c.Output.Name == "" {
		errs = append(errs, errors.New("output name must not be empty"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be > 0, got %v", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}

func oneOf(v string, valid []string) bool {
	for _, s := range valid {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
