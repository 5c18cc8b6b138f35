package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/ats"
	"github.com/jonathan/resume-tailor/internal/observability"
	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/vocab"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score tailored content against a job posting",
	Long:  "Computes the ATS compatibility score of a tailored content JSON file (summary and bullets) against the requirements of a job posting.",
	RunE:  runScore,
}

var (
	scoreJobFile     string
	scoreContentFile string
	scoreJSON        bool
)

func init() {
	scoreCmd.Flags().StringVarP(&scoreJobFile, "job", "j", "", "Path to the job posting (required)")
	scoreCmd.Flags().StringVarP(&scoreContentFile, "content", "c", "", "Path to a tailored content JSON file (required)")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "Print the score as JSON")
	mustMarkRequired(scoreCmd, "job", "content")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	text, err := readJobText(scoreJobFile)
	if err != nil {
		return err
	}
	reqs, err := parsing.NewExtractor(vocab.Default()).Extract(text)
	if err != nil {
		return fmt.Errorf("failed to extract requirements: %w", err)
	}

	content, err := readContent(scoreContentFile)
	if err != nil {
		return err
	}

	meta := ats.Score(reqs, content)
	if scoreJSON {
		return writeJSON(cmd.OutOrStdout(), meta)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintATS(meta)
	return nil
}
