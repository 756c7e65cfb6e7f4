// =============================================================================
// sheet2sql - Main Entry Point
// =============================================================================
//
// USAGE:
//   sheet2sql convert       - Convert spreadsheets in the input directory to CSV
//   sheet2sql generate      - Write the SQL INSERT migration from the table specs
//   sheet2sql validate      - Validate table specs without generating
//   sheet2sql version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core logic (parsers, serializer, converter, verifier)
//   - pkg/           : Shared file utilities
//   - tables/        : One YAML table spec per destination table
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/sheet2sql/cmd"
)

func main() {
	cmd.Execute()
}
