package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/faktura-processor/internal/model"
	"github.com/rezonia/faktura-processor/internal/patternstore"
)

var correctionsCmd = &cobra.Command{
	Use:   "corrections",
	Short: "Manage learned-pattern corrections",
}

var correctionsImportCmd = &cobra.Command{
	Use:   "import <corrections.jsonl>",
	Short: "Import line-delimited JSON corrections into the pattern store",
	Long: `Read a line-delimited JSON file of model.Correction records and record
each as a pattern in the bbolt pattern store (--pattern-store). The pattern
store itself remains the single source of truth the pipeline reads from;
this command is the only path by which a corrections file reaches it.`,
	Args: cobra.ExactArgs(1),
	RunE: runCorrectionsImport,
}

func init() {
	rootCmd.AddCommand(correctionsCmd)
	correctionsCmd.AddCommand(correctionsImportCmd)
}

func runCorrectionsImport(cmd *cobra.Command, args []string) error {
	if patternStore == "" {
		return fmt.Errorf("--pattern-store is required")
	}

	store, err := patternstore.Open(patternStore)
	if err != nil {
		return fmt.Errorf("failed to open pattern store: %w", err)
	}
	defer store.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open corrections file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	imported, lineNo := 0, 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}

		var c model.Correction
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			printVerbose("line %d: skipping invalid correction: %v\n", lineNo, err)
			continue
		}

		if err := store.AddCorrection(c); err != nil {
			printVerbose("line %d: failed to record correction: %v\n", lineNo, err)
			continue
		}

		pattern := patternstore.ExtractPattern(c)
		if err := store.SavePattern(pattern); err != nil {
			printVerbose("line %d: failed to save pattern: %v\n", lineNo, err)
			continue
		}

		imported++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read corrections file: %w", err)
	}

	fmt.Printf("Imported %d of %d corrections into %s\n", imported, lineNo, patternStore)
	return nil
}
