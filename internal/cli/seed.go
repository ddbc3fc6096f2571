package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/opgraph/internal/store"
)

// SeedResult is the output of the seed command.
type SeedResult struct {
	Database string `json:"database"`
	Projects int    `json:"projects"`
	Runs     int    `json:"runs"`
	Files    int    `json:"files"`
}

// Text renders a one-line summary.
func (r SeedResult) Text() string {
	return fmt.Sprintf("Seeded %s: %d project(s), %d run(s), %d file(s)", r.Database, r.Projects, r.Runs, r.Files)
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <data.yaml>",
		Short: "Load a YAML dataset into the database",
		Long: `Load projects, runs, history and files from a YAML dataset into the
SQLite database given by --db, creating it if needed. Seeding the same
dataset twice leaves projects, runs and files unchanged; history rows are
appended.

Example:
  opgraph seed --db ./runs.db runs.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runSeed(cmd *cobra.Command, opts *RootOptions, path string) error {
	f := opts.formatter(cmd)
	log := opts.logger()

	if opts.Database == DefaultDatabase {
		log.Warn("seeding an in-memory database; data is discarded on exit")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return report(f, ErrCodeStore, ExitCommandError, "failed to open database", err, nil)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	ds, err := seedFile(cmd.Context(), st, path)
	if err != nil {
		return reportSetup(f, err)
	}

	result := SeedResult{Database: opts.Database, Projects: len(ds.Projects)}
	for _, p := range ds.Projects {
		result.Runs += len(p.Runs)
		for _, r := range p.Runs {
			result.Files += len(r.Files)
		}
	}
	log.Info("dataset seeded", "path", path, "projects", result.Projects, "runs", result.Runs)
	return f.Success(result)
}
