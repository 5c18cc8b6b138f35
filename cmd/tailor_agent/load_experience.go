package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var loadExperienceCmd = &cobra.Command{
	Use:   "load-experience",
	Short: "Store an experience file for an owner",
	Long:  "Validates an experience JSON file and stores it as the owner's experience graph. Sessions created with the owner id snapshot it.",
	RunE:  runLoadExperience,
}

var (
	loadOwner string
	loadFile  string
)

func init() {
	loadExperienceCmd.Flags().StringVar(&loadOwner, "owner", "", "Owner UUID (required)")
	loadExperienceCmd.Flags().StringVarP(&loadFile, "file", "f", "", "Path to an experience JSON file (required)")
	mustMarkRequired(loadExperienceCmd, "owner", "file")

	rootCmd.AddCommand(loadExperienceCmd)
}

func runLoadExperience(cmd *cobra.Command, _ []string) error {
	owner, err := uuid.Parse(loadOwner)
	if err != nil {
		return fmt.Errorf("invalid --owner %q: %w", loadOwner, err)
	}
	snapshot, err := readExperience(loadFile)
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	if err := store.PutExperienceGraph(cmd.Context(), owner, snapshot); err != nil {
		return fmt.Errorf("failed to store experience: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "stored %d entries for %s\n", len(snapshot.Entries), owner)
	return nil
}
