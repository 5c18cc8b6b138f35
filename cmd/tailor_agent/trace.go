package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/resume-tailor/internal/db"
	"github.com/jonathan/resume-tailor/internal/observability"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Print a session's debug trace",
	RunE:  runTrace,
}

var (
	traceSession string
	traceJSON    bool
)

func init() {
	traceCmd.Flags().StringVarP(&traceSession, "session", "s", "", "Session UUID (required)")
	traceCmd.Flags().BoolVar(&traceJSON, "json", false, "Print the trace entries as JSON")
	mustMarkRequired(traceCmd, "session")

	rootCmd.AddCommand(traceCmd)
}

func runTrace(cmd *cobra.Command, _ []string) error {
	id, err := uuid.Parse(traceSession)
	if err != nil {
		return fmt.Errorf("invalid --session %q: %w", traceSession, err)
	}

	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	sess, err := store.GetSession(cmd.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if traceJSON {
		return writeJSON(cmd.OutOrStdout(), sess.Trace)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintTrace(sess)
	return nil
}
