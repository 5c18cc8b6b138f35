// Package main provides the tailor_agent CLI: the HTTP API, the queue
// workers, and offline tools for the tailoring pipeline stages.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/resume-tailor/internal/config"
	"github.com/jonathan/resume-tailor/internal/logger"
)

var (
	cfgFile string
	// v holds defaults, environment and flag bindings for the commands
	// that need the full service configuration
	v = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "tailor_agent",
	Short: "Resume tailoring service",
	Long: "tailor_agent runs tailoring sessions: it extracts requirements from a job posting, " +
		"ranks a candidate's experience against them, generates tailored resume content and scores it.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML or JSON config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON")

	for key, name := range map[string]string{"log.level": "log-level", "log.json": "log-json"} {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", name, err))
		}
	}
}

// loadConfig reads the service configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
