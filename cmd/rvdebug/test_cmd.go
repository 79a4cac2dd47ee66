package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wippyai/rvdebug/debugger"
	"github.com/wippyai/rvdebug/errors"
)

var testCmd = &cobra.Command{
	Use:   "test FILE",
	Short: "Run a program against the fixture test cases",
	Long: `Appends the fixture prefix and each case input to the program, runs every
case to completion and compares the trimmed output with the expected one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ws, err := openWorkspace(ctx, args[0])
		if err != nil {
			return err
		}
		defer ws.close()

		set := ws.session.Fixtures()
		if set == nil {
			return errors.NotInitialized(errors.PhaseConfig, "fixtures (set --fixtures)")
		}
		if show, _ := cmd.Flags().GetBool("assignment"); show && set.Assignment != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", set.Assignment)
		}

		if err := ws.session.RunTestSuite(ctx); err != nil {
			return err
		}
		if st, ok := ws.session.State().(debugger.AsmErr); ok {
			fmt.Fprintln(cmd.ErrOrStderr(), red(st.Output))
			return exitError(1)
		}

		table := ws.session.Suite()
		if passed := writeReport(cmd.OutOrStdout(), table); passed != len(table) {
			return exitError(1)
		}
		return nil
	},
}

func init() {
	testCmd.Flags().Bool("assignment", false, "print the assignment text first")
}

// writeReport prints one row per case and a summary, and returns the
// number of passed cases.
func writeReport(w io.Writer, table []debugger.CaseResult) int {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tRESULT\tINPUT\tEXPECTED\tACTUAL")
	passed := 0
	for i, r := range table {
		var result string
		switch r.Outcome() {
		case debugger.OutcomePassed:
			passed++
			result = green("PASS")
		case debugger.OutcomeCrashed:
			result = red("CRASH")
		default:
			result = yellow("FAIL")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, result, quote(r.Input), quote(r.Expected), quote(r.Actual))
	}
	_ = tw.Flush()

	summary := fmt.Sprintf("%d/%d passed", passed, len(table))
	if passed == len(table) {
		summary = green(summary)
	} else {
		summary = red(summary)
	}
	fmt.Fprintln(w, bold(summary))
	return passed
}

// quote shows short single-line values bare and everything else quoted.
func quote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	if strings.ContainsAny(s, "\n\t\"") {
		return strconv.Quote(s)
	}
	return s
}
