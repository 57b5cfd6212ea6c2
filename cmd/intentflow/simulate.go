package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/intentflow"
	"github.com/aretw0/intentflow/internal/cli"
	"github.com/aretw0/intentflow/internal/presentation/tui"
	"github.com/aretw0/intentflow/pkg/simulate"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <intent text>",
	Short: "Run an intent through a simulated auction and execution",
	Long: `Parses the intent locally, runs a solver auction over the demo roster,
authorizes the winner, executes every step and records the execution proof.
Other replicas following the workspace see every stage as it happens.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if cmd.Flags().Changed("strategy") {
			rt.Config.Simulate.Strategy, _ = cmd.Flags().GetString("strategy")
		}
		if cmd.Flags().Changed("delay") {
			rt.Config.Simulate.Delay, _ = cmd.Flags().GetDuration("delay")
		}

		out := cmd.OutOrStdout()
		interactive := cli.IsTerminal(out)
		if interactive {
			tui.PrintBanner(out, intentflow.Version)
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		st, err := rt.Open(sc, "")
		if err != nil {
			return err
		}
		if fresh, _ := cmd.Flags().GetBool("fresh"); fresh {
			if err := st.Reset(sc); err != nil {
				return err
			}
		}

		pipeline, err := rt.Pipeline(st, simulate.WithStageHook(func(s simulate.Stage) {
			cli.PrintSystemMessage(out, "%s", s)
		}))
		if err != nil {
			return err
		}
		if err := pipeline.Run(sc, strings.Join(args, " ")); err != nil {
			return fmt.Errorf("simulation stopped: %w", err)
		}

		rendered, err := tui.RenderState(st.Key(), st.Snapshot(), !interactive)
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().String("strategy", "highest_apy", "Auction strategy: highest_apy, lowest_gas or balanced")
	simulateCmd.Flags().Duration("delay", simulate.DefaultDelay, "Pause between simulated events")
	simulateCmd.Flags().Bool("fresh", true, "Reset the workspace before running")
}
