package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/intentflow/internal/cli"
	"github.com/aretw0/intentflow/internal/presentation/graph"
	"github.com/aretw0/intentflow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and manage workspace state",
	Long:  `Show, list, watch, reset and remove the persisted lifecycle state of workspaces.`,
}

var stateShowCmd = &cobra.Command{
	Use:   "show [workspace]",
	Short: "Show the state of a workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		st, err := rt.Open(cmd.Context(), firstArg(args))
		if err != nil {
			return err
		}
		snap := st.Snapshot()
		out := cmd.OutOrStdout()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal state: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		rendered, err := tui.RenderState(st.Key(), snap, !cli.IsTerminal(out))
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
		return nil
	},
}

var stateLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		names, err := rt.Manager.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list workspaces: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "No workspaces found.")
			return nil
		}
		fmt.Fprintln(out, "Workspaces:")
		for _, name := range names {
			fmt.Fprintln(out, "- "+name)
		}
		return nil
	},
}

var stateRmCmd = &cobra.Command{
	Use:   "rm <workspace>...",
	Short: "Remove one or more workspaces",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		out := cmd.OutOrStdout()
		failed := 0
		for _, name := range args {
			if err := rt.Manager.Delete(cmd.Context(), name); err != nil {
				fmt.Fprintf(out, "Error removing '%s': %v\n", name, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "Removed workspace '%s'\n", name)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d workspaces not removed", failed, len(args))
		}
		return nil
	},
}

var stateResetCmd = &cobra.Command{
	Use:   "reset [workspace]",
	Short: "Reset a workspace to its initial state",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		st, err := rt.Open(cmd.Context(), firstArg(args))
		if err != nil {
			return err
		}
		if err := st.Reset(cmd.Context()); err != nil {
			return err
		}
		cli.PrintSystemMessage(cmd.OutOrStdout(), "Workspace '%s' reset (epoch %d).", st.Key(), st.Epoch())
		return nil
	},
}

var stateWatchCmd = &cobra.Command{
	Use:   "watch [workspace]",
	Short: "Stream the changes of a workspace",
	Long:  `Follows the workspace through the configured replication transport and prints every change until interrupted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		st, err := rt.Open(sc, firstArg(args))
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return cli.WatchState(sc, st, cmd.OutOrStdout(), asJSON)
	},
}

var stateGraphCmd = &cobra.Command{
	Use:   "graph [workspace]",
	Short: "Export the lifecycle as a Mermaid diagram",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		st, err := rt.Open(cmd.Context(), firstArg(args))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(st.Snapshot()))
		return nil
	},
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd, stateLsCmd, stateRmCmd, stateResetCmd, stateWatchCmd, stateGraphCmd)

	stateShowCmd.Flags().Bool("json", false, "Print the raw snapshot as JSON")
	stateWatchCmd.Flags().Bool("json", false, "Print each change as a JSON line")
}
