package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/synnaxlabs/synnax-sub025/pkg/buildinfo"
	"github.com/synnaxlabs/synnax-sub025/pkg/config"
	"github.com/synnaxlabs/synnax-sub025/pkg/instrument"
	"github.com/synnaxlabs/synnax-sub025/pkg/logutil"
	"github.com/synnaxlabs/synnax-sub025/pkg/store"
	"github.com/synnaxlabs/synnax-sub025/pkg/store/sqlstore"
	"github.com/synnaxlabs/synnax-sub025/pkg/store/storedefs"
)

// Shared state of all commands, set up by the persistent pre-run hook.
type app struct {
	configPath string
	logPath    string
	debug      bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "aether",
		Short: "Component tree workers",
		Long: `Aether keeps a tree of components on a worker in sync with the updates a
presentation side sends, and renders the components on a fixed frame loop
whose quality adapts to the time each draw takes.`,
		Version:       buildinfo.Value.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path of the configuration file")
	root.PersistentFlags().StringVar(&a.logPath, "log", "", "file to write logs to (overrides log.file)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "log debug messages (overrides log.debug)")

	root.AddCommand(
		newServeCmd(a),
		newStdioCmd(a),
		newTopCmd(a),
		newSnapshotCmd(a),
		newBenchCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logPath != "" {
		cfg.Log.File = a.logPath
	}
	if a.debug {
		cfg.Log.Debug = true
	}
	a.cfg = cfg
	return logutil.SetOutputFile(cfg.Log.File)
}

// Opens the configured store. The returned closer is never nil.
func (a *app) openStore() (storedefs.Store, io.Closer, error) {
	switch a.cfg.Store.Backend {
	case config.BackendBolt:
		st, err := store.NewStore(a.cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", a.cfg.Store.Path, err)
		}
		return st, st, nil
	case config.BackendSQLite:
		db, err := sqlstore.Open(a.cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	default:
		return nil, nopCloser{}, nil
	}
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:               "version",
		Short:             "Print build information",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			if asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), buildinfo.Value.JSON())
			} else {
				fmt.Fprint(cmd.OutOrStdout(), buildinfo.Value)
			}
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (a *app) instrumentation(name string) *instrument.Instrumentation {
	instr := instrument.New(name)
	instr.Debug = a.cfg.Log.Debug
	return &instr
}
