package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/intentflow/internal/cli"
	"github.com/aretw0/intentflow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit <intent text>",
	Short: "Submit an intent to the solver backend",
	Long: `Sends the intent to the configured solver backend and records the
commitment, the parsed intent and the auction outcome in the workspace.
With --authorize or --execute the backend is driven further and every step is
mirrored locally.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if cmd.Flags().Changed("solver-url") {
			rt.Config.Solver.BaseURL, _ = cmd.Flags().GetString("solver-url")
		}
		opts := cli.RemoteOptions{User: rt.Config.Simulate.User}
		opts.Authorize, _ = cmd.Flags().GetBool("authorize")
		opts.Execute, _ = cmd.Flags().GetBool("execute")
		opts.Signature, _ = cmd.Flags().GetString("signature")
		if cmd.Flags().Changed("user") {
			opts.User, _ = cmd.Flags().GetString("user")
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		st, err := rt.Open(sc, "")
		if err != nil {
			return err
		}
		if err := st.Reset(sc); err != nil {
			return err
		}
		if err := cli.SubmitRemote(sc, rt.SolverClient(), st, strings.Join(args, " "), opts); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		rendered, err := tui.RenderState(st.Key(), st.Snapshot(), !cli.IsTerminal(out))
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().String("solver-url", "", "Solver backend base URL (overrides the configured one)")
	submitCmd.Flags().String("user", "", "Submitting user address")
	submitCmd.Flags().String("signature", "", "Authorization signature sent to the backend")
	submitCmd.Flags().Bool("authorize", false, "Authorize the auction winner")
	submitCmd.Flags().Bool("execute", false, "Authorize and execute the winning plan")
}
