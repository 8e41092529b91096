package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type ServerConfig struct {
	Port     string
	SeedFile string // optional JSONL file used to seed the store
	// Demo stream configuration
	DemoCount    int
	DemoInterval time.Duration
	// WebSocket configuration
	WSEnabled bool
	// Notification configuration
	NtfyEnabled bool
	NtfyServer  string
	NtfyTopic   string
	NtfyToken   string
}

func LoadServerConfig() (*ServerConfig, error) {
	demoIntervalStr := getEnvOrDefault("DEMO_INTERVAL", "1s")
	demoInterval, err := time.ParseDuration(demoIntervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DEMO_INTERVAL: %s", demoIntervalStr)
	}

	demoCount := 5
	if s := os.Getenv("DEMO_COUNT"); s != "" {
		demoCount, err = strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid DEMO_COUNT: %s", s)
		}
	}

	cfg := &ServerConfig{
		Port:         getEnvOrDefault("PORT", "8080"),
		SeedFile:     getEnvOrDefault("SEED_FILE", ""),
		DemoCount:    demoCount,
		DemoInterval: demoInterval,
		WSEnabled:    getEnvOrDefault("WS_ENABLED", "true") == "true",
		NtfyEnabled:  getEnvOrDefault("NTFY_ENABLED", "false") == "true",
		NtfyServer:   getEnvOrDefault("NTFY_SERVER", "https://ntfy.sh"),
		NtfyTopic:    getEnvOrDefault("NTFY_TOPIC", ""),
		NtfyToken:    getEnvOrDefault("NTFY_TOKEN", ""),
	}

	// Validate
	if cfg.DemoCount < 1 {
		return nil, fmt.Errorf("invalid DEMO_COUNT: %d (must be >= 1)", cfg.DemoCount)
	}
	if cfg.DemoInterval <= 0 {
		return nil, fmt.Errorf("invalid DEMO_INTERVAL: %s (must be positive)", cfg.DemoInterval)
	}
	if cfg.NtfyEnabled && cfg.NtfyTopic == "" {
		return nil, fmt.Errorf("NTFY_TOPIC is required when NTFY_ENABLED=true")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
