package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iudanet/synccore/internal/storage"
	"github.com/iudanet/synccore/internal/storage/sqlite"
	"github.com/iudanet/synccore/internal/sync"
)

// NewExchangeCommand creates the exchange command.
func NewExchangeCommand(rootOpts *RootOptions) *cobra.Command {
	var peerPath, hubPath string

	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange versions with another replica store or a hub",
		Long: `Pull every version of the peer, reconcile it locally, then push the
local versions the peer does not have yet.

--peer names another replica database file. --hub names a shared SQLite
hub; without either flag the hub_path of the config file is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if peerPath != "" && hubPath != "" {
				return errors.New("--peer and --hub are mutually exclusive")
			}

			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if peerPath == "" && hubPath == "" {
				hubPath = s.cfg.HubPath
			}
			if peerPath == "" && hubPath == "" {
				return errors.New("nothing to exchange with: use --peer, --hub or hub_path in config")
			}

			ctx := cmd.Context()
			var peer interface {
				storage.RecordStorage
				Close() error
			}
			if peerPath != "" {
				peer, err = rootOpts.openStore(ctx, s.environment, peerPath)
			} else {
				peer, err = sqlite.New(ctx, hubPath)
			}
			if err != nil {
				return fmt.Errorf("failed to open peer: %w", err)
			}
			defer func() {
				if err := peer.Close(); err != nil {
					s.logger.Error("failed to close peer", "error", err)
				}
			}()

			result, err := s.sync.Exchange(ctx, peer)
			if err != nil {
				return fmt.Errorf("exchange failed: %w", err)
			}
			return s.out.render(resultTemplate, newResultView(result))
		},
	}

	cmd.Flags().StringVar(&peerPath, "peer", "", "path to another replica database")
	cmd.Flags().StringVar(&hubPath, "hub", "", "path to a SQLite hub")

	return cmd
}

// NewConflictsCommand creates the conflicts command.
func NewConflictsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List conflicts waiting for manual resolution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			conflicts, err := s.store.ListConflicts(cmd.Context())
			if err != nil {
				return err
			}
			views := make([]conflictView, 0, len(conflicts))
			for _, c := range conflicts {
				views = append(views, newConflictView(c))
			}
			return s.out.render(conflictListTemplate, views)
		},
	}
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <sync-id> <version|all>",
		Short: "Resolve a conflict with one version or a merge of all",
		Long: `Resolve an open conflict. The version index is the one printed by
'syncctl conflicts'; 'all' merges every version field by field.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pick, err := parsePick(args[1])
			if err != nil {
				return err
			}

			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.sync.ResolveConflict(cmd.Context(), args[0], pick)
			if err != nil {
				return fmt.Errorf("failed to resolve conflict: %w", err)
			}
			return s.out.render(recordTemplate, newRecordView(rec))
		},
	}
}

func parsePick(arg string) (int, error) {
	if arg == "all" {
		return sync.MergeAll, nil
	}
	pick, err := strconv.Atoi(arg)
	if err != nil || pick < 0 {
		return 0, fmt.Errorf("invalid version %q: expected an index or 'all'", arg)
	}
	return pick, nil
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string
	var pendingOnly bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write records to a bundle file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			var w io.Writer = s.io
			if output != "-" {
				f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
				if err != nil {
					return fmt.Errorf("failed to create bundle file: %w", err)
				}
				defer f.Close()
				w = f
			}

			bundle, err := s.sync.Export(cmd.Context(), w, pendingOnly)
			if err != nil {
				return err
			}
			if output != "-" {
				s.logger.Info("Bundle written", "path", output, "records", len(bundle.Records))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "bundle file ('-' for stdout)")
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "export only records not yet exchanged")

	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <bundle-file|->",
		Short: "Reconcile the records of a bundle file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			r := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open bundle file: %w", err)
				}
				defer f.Close()
				r = f
			}

			result, err := s.sync.Import(cmd.Context(), r)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			return s.out.render(resultTemplate, newResultView(result))
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show replica status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			st, err := s.sync.Status(cmd.Context())
			if err != nil {
				return err
			}

			view := statusView{
				ReplicaID: st.ReplicaID,
				DBPath:    s.cfg.DBPath,
				Records:   st.Records,
				Deleted:   st.Deleted,
				Pending:   st.Pending,
				Conflicts: st.Conflicts,
				Sealed:    s.store.Sealed(),
			}
			if !st.LastSyncAt.IsZero() {
				view.LastSyncAt = &st.LastSyncAt
			}
			return s.out.render(statusTemplate, view)
		},
	}
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &formatter{format: rootOpts.Format, io: iocliStreams(cmd)}
			return f.render(versionTemplate, rootOpts.Build)
		},
	}
}
