// Package cmd provides the operational CLI.
//
// Commands:
//   - serve: run the engine until interrupted (migrations, pool, cache,
//     dispatcher all wired)
//   - migrate: apply pending database migrations and exit
//   - version: show version and configuration
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mindmirror/mindmirror/internal/log"
)

// Execute is the main entry point for the mindmirror CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.NewWithWriter(os.Stderr, log.Config{Level: level}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "migrate":
		return runMigrate()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("mindmirror - evidence accumulation and characteristic synthesis engine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mindmirror serve      Run the engine until interrupted")
	fmt.Println("  mindmirror migrate    Apply pending database migrations")
	fmt.Println("  mindmirror --version  Show version information")
	fmt.Println("  mindmirror --help     Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  MINDMIRROR_GEMINI_API_KEY  Required for synthesis: Gemini API key")
	fmt.Println("  DATABASE_URL               Optional: overrides postgres settings")
	fmt.Println("  DEBUG                      Optional: enable debug logging")
}
