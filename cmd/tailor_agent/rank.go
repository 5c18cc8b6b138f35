package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/observability"
	"github.com/jonathan/resume-tailor/internal/parsing"
	"github.com/jonathan/resume-tailor/internal/ranking"
	"github.com/jonathan/resume-tailor/internal/vocab"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank experience entries against a job posting",
	Long:  "Extracts requirements from a job posting and ranks the entries of an experience file by skill overlap, achievements and recency.",
	RunE:  runRank,
}

var (
	rankJobFile        string
	rankExperienceFile string
	rankTopK           int
	rankJSON           bool
)

func init() {
	rankCmd.Flags().StringVarP(&rankJobFile, "job", "j", "", "Path to the job posting (required)")
	rankCmd.Flags().StringVarP(&rankExperienceFile, "experience", "e", "", "Path to an experience JSON file (required)")
	rankCmd.Flags().IntVarP(&rankTopK, "top-k", "k", 5, "Number of entries to keep")
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "Print the ranking as JSON")
	mustMarkRequired(rankCmd, "job", "experience")

	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, _ []string) error {
	if rankTopK < 1 {
		return fmt.Errorf("--top-k must be at least 1, got %d", rankTopK)
	}

	// 1. Requirements
	text, err := readJobText(rankJobFile)
	if err != nil {
		return err
	}
	reqs, err := parsing.NewExtractor(vocab.Default()).Extract(text)
	if err != nil {
		return fmt.Errorf("failed to extract requirements: %w", err)
	}

	// 2. Experience
	snapshot, err := readExperience(rankExperienceFile)
	if err != nil {
		return err
	}

	// 3. Rank
	ranked := ranking.RankExperience(snapshot, reqs, ranking.Options{TopK: rankTopK, Now: time.Now()})

	if rankJSON {
		return writeJSON(cmd.OutOrStdout(), ranked)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintRankedEntries(ranked)
	return nil
}
