package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr         string
	LogLevel     string
	DBPath       string
	ScopeSuffix  string
	BodyMaxBytes int

	// analyzer thresholds
	SlowThresholdMs int
	LargeBodyBytes  int

	// replay
	ReplayTimeoutMs int

	Automation AutomationConfig
}

// AutomationConfig is the automation profile. Defaults mirror the courseware
// deployment the capture tooling was originally pointed at; a YAML profile
// file can override any field for other applications.
type AutomationConfig struct {
	HostSuffix      string `yaml:"host_suffix"`
	BaseURL         string `yaml:"base_url"`
	ResourcePattern string `yaml:"resource_pattern"`
	CompletionPath  string `yaml:"completion_path"`
	ScopeField      string `yaml:"scope_field"`
	CompletionEvent string `yaml:"completion_event"`
	Origin          string `yaml:"origin"`
	DelayMs         int    `yaml:"delay_ms"`
	TimeoutMs       int    `yaml:"timeout_ms"`
}

func FromEnv() Config {
	cfg := Config{
		Addr:            getEnv("ADDR", ":9091"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DBPath:          getEnv("DB_PATH", "data/traffic"),
		ScopeSuffix:     getEnv("SCOPE_SUFFIX", ""),
		BodyMaxBytes:    getEnvInt("BODY_MAX_BYTES", 256<<10),
		SlowThresholdMs: getEnvInt("SLOW_THRESHOLD_MS", 1000),
		LargeBodyBytes:  getEnvInt("LARGE_BODY_BYTES", 512<<10),
		ReplayTimeoutMs: getEnvInt("REPLAY_TIMEOUT_MS", 15000),
		Automation: AutomationConfig{
			HostSuffix:      getEnv("AUTO_HOST_SUFFIX", "zyserver.zybooks.com"),
			BaseURL:         getEnv("AUTO_BASE_URL", "https://zyserver.zybooks.com/v1"),
			ResourcePattern: getEnv("AUTO_RESOURCE_PATTERN", `/content_resource/(\d+)/activity`),
			CompletionPath:  getEnv("AUTO_COMPLETION_PATH", "/content_resource/%s/activity"),
			ScopeField:      getEnv("AUTO_SCOPE_FIELD", "zybook_code"),
			CompletionEvent: getEnv("AUTO_COMPLETION_EVENT", "animation completely watched"),
			Origin:          getEnv("AUTO_ORIGIN", "https://learn.zybooks.com"),
			DelayMs:         getEnvInt("AUTO_DELAY_MS", 1000),
			TimeoutMs:       getEnvInt("AUTO_TIMEOUT_MS", 10000),
		},
	}
	return cfg
}

// LoadProfile overlays an automation profile from a YAML file. Zero-value
// fields in the file keep the current configuration.
func (c *Config) LoadProfile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read automation profile: %w", err)
	}
	var p AutomationConfig
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("parse automation profile: %w", err)
	}
	merge := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	merge(&c.Automation.HostSuffix, p.HostSuffix)
	merge(&c.Automation.BaseURL, p.BaseURL)
	merge(&c.Automation.ResourcePattern, p.ResourcePattern)
	merge(&c.Automation.CompletionPath, p.CompletionPath)
	merge(&c.Automation.ScopeField, p.ScopeField)
	merge(&c.Automation.CompletionEvent, p.CompletionEvent)
	merge(&c.Automation.Origin, p.Origin)
	if p.DelayMs > 0 {
		c.Automation.DelayMs = p.DelayMs
	}
	if p.TimeoutMs > 0 {
		c.Automation.TimeoutMs = p.TimeoutMs
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
