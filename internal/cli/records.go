package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/synccore/internal/data"
)

// initView is printed after init
type initView struct {
	ReplicaID string `json:"replica_id"`
	DBPath    string `json:"db_path"`
	Sealed    bool   `json:"sealed"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var replicaID string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the local replica",
		Long: `Create the local replica database and assign its identity.

The identity is taken from --replica-id, then from the config file,
and is generated when neither is set. An initialized replica keeps
its identity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := rootOpts.loadEnvironment(cmd)
			if err != nil {
				return err
			}
			if replicaID == "" {
				replicaID = env.cfg.ReplicaID
			}

			store, err := rootOpts.openStore(cmd.Context(), env, env.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open database %s: %w", env.cfg.DBPath, err)
			}
			defer func() {
				if err := store.Close(); err != nil {
					env.logger.Error("failed to close database", "error", err)
				}
			}()

			id, err := data.InitReplica(cmd.Context(), store, replicaID)
			if err != nil {
				return err
			}
			if replicaID != "" && id != replicaID {
				env.logger.Warn("Replica already initialized with another id", "replica_id", id, "requested", replicaID)
			}

			return env.out.render(initTemplate, initView{ReplicaID: id, DBPath: env.cfg.DBPath, Sealed: store.Sealed()})
		},
	}

	cmd.Flags().StringVar(&replicaID, "replica-id", "", "replica identity (default: config value or random)")

	return cmd
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	var syncID string

	cmd := &cobra.Command{
		Use:   "put <kind> name=value... | put --id <sync-id> name=value...",
		Short: "Create a record or edit its fields",
		Long: `Create a record of the given kind, or edit an existing one with --id.

Values are inferred (null, true/false, numbers, RFC 3339 times, text)
unless prefixed with a kind: number:, text:, bool:, timestamp:, bytes:
(base64).`,
		Example: `  syncctl put product name=tea price=12.5 active=true
  syncctl put --id 6f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f price=number:13 code=text:0042`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			if syncID != "" {
				changes, err := parseAssignments(args)
				if err != nil {
					return err
				}
				rec, err := s.data.Update(ctx, syncID, changes)
				if err != nil {
					return fmt.Errorf("failed to update record: %w", err)
				}
				return s.out.render(recordTemplate, newRecordView(rec))
			}

			changes, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			rec, err := s.data.Create(ctx, args[0], changes)
			if err != nil {
				return fmt.Errorf("failed to create record: %w", err)
			}
			return s.out.render(recordTemplate, newRecordView(rec))
		},
	}

	cmd.Flags().StringVar(&syncID, "id", "", "edit the record with this sync id")

	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <sync-id>",
		Short: "Show a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.data.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return s.out.render(recordTemplate, newRecordView(rec))
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [kind]",
		Short: "List live records, optionally of one kind",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			kind := ""
			if len(args) == 1 {
				kind = args[0]
			}
			records, err := s.data.List(cmd.Context(), kind)
			if err != nil {
				return err
			}
			return s.out.render(recordListTemplate, newRecordViews(records))
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <sync-id>",
		Short: "Mark a record deleted",
		Long: `Mark a record deleted. Deletion is an ordinary field write and is
exchanged like any other edit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.data.Delete(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to delete record: %w", err)
			}
			return s.out.render(recordTemplate, newRecordView(rec))
		},
	}
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List records with changes not yet exchanged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.store.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			return s.out.render(recordListTemplate, newRecordViews(records))
		},
	}
}
