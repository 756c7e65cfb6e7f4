// =============================================================================
// sheet2sql - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks the table specs
// without generating anything.
//
// COMMAND USAGE:
//   sheet2sql validate [--check-sources]
//
// CHECKS:
//   - Every table spec parses and satisfies the TableSpec rules
//   - With --check-sources, every source file can be read and has every
//     field the columns reference
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sheet2sql/internal/config"
	"github.com/ginjaninja78/sheet2sql/internal/converter"
	"github.com/ginjaninja78/sheet2sql/internal/validation"
)

// checkSources also opens every source file.
var checkSources bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate table specs without generating SQL",
	Long: `The validate command loads every table spec in the tables directory and
checks it: table name, columns, value kinds, layout, CSV settings, where
filter and transforms. With --check-sources it also reads every source file
and checks that the referenced fields exist.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&checkSources, "check-sources", false, "Also read every source file and check its headers")
}

func runValidate() error {
	mainConfig, logger, err := loadMainConfig()
	if err != nil {
		return err
	}

	tables, err := config.LoadTableConfigs(mainConfig.TablesDir)
	if err != nil {
		return fmt.Errorf("failed to load table specs: %w", err)
	}
	if len(tables) == 0 {
		return fmt.Errorf("no table specs found in %s", mainConfig.TablesDir)
	}

	result := validation.ValidateAll(tables)

	if checkSources && result.IsValid {
		for _, table := range tables {
			spec, err := table.ToSpec()
			if err != nil {
				continue
			}

			path, headers, err := converter.SourceHeaders(table, mainConfig.InputDir)
			if err != nil {
				logger.Debug("Source check failed", "table", table.Name(), "error", err)
				fmt.Printf("  ✗ %s: %v\n", table.Name(), err)
				result.IsValid = false
				result.ErrorCount++
				continue
			}

			headerResult := validation.ValidateHeaders(spec, path, headers)
			result.Errors = append(result.Errors, headerResult.Errors...)
			result.ErrorCount += headerResult.ErrorCount
			if !headerResult.IsValid {
				result.IsValid = false
			}
		}
	}

	fmt.Printf("Validated %d table spec(s)\n", result.TablesValidated)
	fmt.Println(validation.FormatErrors(result.Errors))

	if !result.IsValid {
		return fmt.Errorf("validation failed with %d error(s)", result.ErrorCount)
	}

	fmt.Println("✓ All table specs are valid")
	return nil
}
