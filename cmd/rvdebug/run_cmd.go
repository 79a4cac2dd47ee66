package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/rvdebug/debugger"
)

var runCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Assemble a program and run it to completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		defer ws.close()

		if err := ws.session.Run(ctx); err != nil {
			return err
		}

		st := ws.session.State()
		text := debugger.Output(st)
		switch st.Status() {
		case debugger.StatusAsmErr:
			fmt.Fprintln(cmd.ErrOrStderr(), red(text))
			return exitError(1)
		case debugger.StatusError:
			fmt.Fprint(cmd.OutOrStdout(), text)
			return exitError(1)
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}
