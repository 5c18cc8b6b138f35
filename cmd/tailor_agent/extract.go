package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/observability"
	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/types"
	"github.com/jonathan/resume-tailor/internal/vocab"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract requirements from a job posting",
	Long:  "Reads a job posting (plain text or HTML) and prints the required skills, preferred skills, keywords, experience years and education level it asks for.",
	RunE:  runExtract,
}

var (
	extractJobFile         string
	extractJSON            bool
	extractRepeatThreshold int
)

func init() {
	extractCmd.Flags().StringVarP(&extractJobFile, "job", "j", "", "Path to the job posting (required)")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Print the requirement set as JSON")
	extractCmd.Flags().IntVar(&extractRepeatThreshold, "repeat-threshold", parsing.DefaultRepeatThreshold, "Mentions after which an uncued skill counts as required")
	mustMarkRequired(extractCmd, "job")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, _ []string) error {
	text, err := readJobText(extractJobFile)
	if err != nil {
		return err
	}

	var reqs *types.RequirementSet
	if extractRepeatThreshold == parsing.DefaultRepeatThreshold {
		reqs, err = parsing.ExtractRequirements(text)
	} else {
		extractor := parsing.NewExtractor(vocab.Default())
		extractor.RepeatThreshold = extractRepeatThreshold
		reqs, err = extractor.Extract(text)
	}
	if err != nil {
		return fmt.Errorf("failed to extract requirements: %w", err)
	}

	if extractJSON {
		return writeJSON(cmd.OutOrStdout(), reqs)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintRequirements(reqs)
	return nil
}
