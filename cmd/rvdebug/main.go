package main

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wippyai/rvdebug/runtime"
)

var rootCmd = &cobra.Command{
	Use:   "rvdebug",
	Short: "Assemble, run, test and debug RV32IM assembly programs",
	Long: `rvdebug assembles RISC-V (RV32IM) assembly and drives it one instruction
at a time, either on the built-in emulator or on an engine .wasm module.
The calling-convention checker reports callee-saved register, stack pointer
and return address violations as they happen.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return processGlobalFlags()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default ./rvdebug.yaml)")
	pf.String("engine", engineBuiltin, `execution engine: "builtin" or the path of an engine .wasm module`)
	pf.String("fixtures", "", "test fixture directory or base URL")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.Bool("no-color", false, "disable colored output")
	pf.Int("limit", runtime.DefaultInstructionLimit, "instruction limit of one run")

	for _, name := range []string{"engine", "fixtures", "log-level", "no-color", "limit"} {
		if err := viper.BindPFlag(name, pf.Lookup(name)); err != nil {
			fatal(err)
		}
	}

	rootCmd.AddCommand(runCmd, testCmd, debugCmd, replCmd)
}

func initConfig() {
	if file, _ := rootCmd.PersistentFlags().GetString("config"); file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName("rvdebug")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("rvdebug")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			fatal(err)
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	syncLogger()

	var exit exitError
	switch {
	case stderrors.As(err, &exit):
		os.Exit(int(exit))
	case err != nil:
		fatal(err)
	}
}
