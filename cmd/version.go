package cmd

import (
	"fmt"

	"github.com/mindmirror/mindmirror/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// runVersion prints version and effective configuration. Sensitive
// values are reported as configured/not set only.
func runVersion() {
	fmt.Printf("mindmirror %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("\nConfiguration: unavailable (%v)\n", err)
		return
	}

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Model: %s\n", cfg.ModelName)
	fmt.Printf("  Temperature: %.2f\n", cfg.Temperature)
	fmt.Printf("  Synthesis threshold: %d chars\n", cfg.MinEvidenceChars)
	fmt.Printf("  Database: %s:%d/%s\n", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDBName)
	fmt.Printf("  Cache backend: %s\n", cfg.CacheBackend)
	if cfg.GeminiAPIKey != "" {
		fmt.Println("  Gemini API key: configured")
	} else {
		fmt.Println("  Gemini API key: not set")
	}
	if cfg.TelegramToken != "" {
		fmt.Println("  Telegram notifications: enabled")
	} else {
		fmt.Println("  Telegram notifications: disabled")
	}
}
