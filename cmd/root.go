// =============================================================================
// sheet2sql - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (sheet2sql)
//   ├── convertCmd  (sheet2sql convert)
//   ├── generateCmd (sheet2sql generate)
//   ├── validateCmd (sheet2sql validate)
//   └── versionCmd  (sheet2sql version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose, directories)
//   2. Initializing viper (config file, SHEET2SQL_* env vars, flags)
//   3. Setting up logging
//
// =============================================================================

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ginjaninja78/sheet2sql/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// v is the viper instance built by initConfig.
var v *viper.Viper

// initErr holds a configuration error raised during initialization; it is
// reported by the first command that loads the configuration.
var initErr error

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sheet2sql",
	Short: "sheet2sql - Turn spreadsheet and CSV exports into SQL INSERT migrations",
	Long: `sheet2sql converts tabular exports into a literal SQL migration file.

Key Features:
  - Spreadsheet (XLSX) to CSV conversion with a console preview
  - One INSERT statement per row, grouped per table under a banner comment
  - Table specs in YAML: column order, text/numeric rendering, NULL on empty
  - Column transforms and row filters
  - Optional verification of the generated SQL against in-memory SQLite

Example Usage:
  sheet2sql convert                     # Convert every spreadsheet in the input directory
  sheet2sql generate                    # Write the migration file from tables/*.yaml
  sheet2sql generate --verify           # ...after executing it against SQLite
  sheet2sql validate                    # Check table specs without generating`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	cobra.OnInitialize(initConfig)

	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "config.yaml", "Path to the main configuration file")
	f.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	f.String("log-format", "", "Log format: text or json")
	f.String("input-dir", "", "Directory containing source files")
	f.String("output-dir", "", "Directory receiving generated files")
	f.String("tables-dir", "", "Directory containing table spec files")
}

// initConfig builds the viper instance and binds the global flags.
// Viper keys use underscores so they match the SHEET2SQL_ env var suffix.
func initConfig() {
	var err error
	initErr = nil
	v, err = config.NewViper(cfgFile)
	if err != nil {
		initErr = err
		return
	}

	f := rootCmd.PersistentFlags()
	bindFlag := func(viperKey, flagName string) {
		if flag := f.Lookup(flagName); flag != nil && flag.Changed {
			_ = v.BindPFlag(viperKey, flag)
		}
	}
	bindFlag("log_format", "log-format")
	bindFlag("input_dir", "input-dir")
	bindFlag("output_dir", "output-dir")
	bindFlag("tables_dir", "tables-dir")
}

// loadMainConfig decodes the main configuration and builds the logger.
func loadMainConfig() (*config.MainConfig, *slog.Logger, error) {
	if initErr != nil {
		return nil, nil, initErr
	}
	if v == nil {
		initConfig()
		if initErr != nil {
			return nil, nil, initErr
		}
	}

	mainConfig, err := config.LoadMainConfig(v)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load main config: %w", err)
	}

	logger := configureLogger(mainConfig)
	slog.SetDefault(logger)

	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("Configuration loaded", "file", used)
	}

	return mainConfig, logger, nil
}

// =============================================================================
// LOGGING
// =============================================================================

// configureLogger builds the logger: colored text via tint, or JSON.
// Logs go to stderr; command summaries stay on stdout.
func configureLogger(cfg *config.MainConfig) *slog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		})
	}

	return slog.New(handler)
}

func parseLogLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
