package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/synnaxlabs/synnax-sub025/pkg/store/storedefs"
	"github.com/synnaxlabs/synnax-sub025/pkg/treeviz"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect the stored snapshots of sessions",
	}
	// Runs f with the configured store, which must exist.
	withStore := func(f func(cmd *cobra.Command, st storedefs.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			st, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closer.Close()
			if st == nil {
				return fmt.Errorf("no store configured")
			}
			return f(cmd, st, args)
		}
	}

	var output string
	svg := &cobra.Command{
		Use:   "svg <session>",
		Short: "Draw the tree of a snapshot as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, st storedefs.Store, args []string) error {
			snap, err := st.Snapshot(args[0])
			if err != nil {
				return err
			}
			data, err := treeviz.SVG(snap.Nodes, snap.Levels)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(output, data, 0644)
		}),
	}
	svg.Flags().StringVarP(&output, "output", "o", "", "file to write to (default standard output)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored snapshots",
			Args:  cobra.NoArgs,
			RunE: withStore(func(cmd *cobra.Command, st storedefs.Store, _ []string) error {
				infos, err := st.Snapshots()
				if err != nil {
					return err
				}
				printSnapshots(cmd.OutOrStdout(), infos)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "show <session>",
			Short: "Print a snapshot as YAML",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(cmd *cobra.Command, st storedefs.Store, args []string) error {
				snap, err := st.Snapshot(args[0])
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(snap)
			}),
		},
		&cobra.Command{
			Use:   "rm <session>...",
			Short: "Delete snapshots",
			Args:  cobra.MinimumNArgs(1),
			RunE: withStore(func(cmd *cobra.Command, st storedefs.Store, args []string) error {
				for _, id := range args {
					if err := st.DelSnapshot(id); err != nil {
						return err
					}
				}
				return nil
			}),
		},
		svg,
	)
	return cmd
}

var headerColor = color.New(color.Bold, color.FgCyan)

func printSnapshots(w io.Writer, infos []storedefs.SnapshotInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, headerColor.Sprint("SESSION")+"\t"+headerColor.Sprint("TIME")+"\t"+headerColor.Sprint("NODES"))
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", info.Session, info.Time.Local().Format(time.DateTime), info.Nodes)
	}
	tw.Flush()
}
