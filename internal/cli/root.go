// Package cli implements the syncctl command line tool.
//
// Every command operates on one local replica store. Exchange and
// import/export move versions between replicas.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// EnvPassphrase holds the passphrase of a sealed store
const EnvPassphrase = "SYNCCTL_PASSPHRASE"

// DefaultConfigPath is read when --config is not given
const DefaultConfigPath = "syncctl.yaml"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath     string
	DBPath         string
	Format         string // "json" | "text"
	PassphraseFile string
	Build          BuildInfo
	Verbose        bool
}

// BuildInfo is set via ldflags in main
type BuildInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of syncctl.
func NewRootCommand(build BuildInfo) *cobra.Command {
	opts := &RootOptions{Build: build}

	cmd := &cobra.Command{
		Use:   "syncctl",
		Short: "syncctl - offline-first replica sync",
		Long: `Operate a local replica of synchronized records.

Records are edited offline, then exchanged with another replica store or
with a shared SQLite hub. Concurrent edits are merged with the strategy
configured for the record kind.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", DefaultConfigPath, "path to config file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to local replica database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.PassphraseFile, "passphrase-file", "", "file containing the passphrase of a sealed store")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewPendingCommand(opts))
	cmd.AddCommand(NewConflictsCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewExchangeCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
