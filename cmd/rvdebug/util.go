package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/rvdebug/debugger"
	"github.com/wippyai/rvdebug/emulator"
	"github.com/wippyai/rvdebug/engine"
	"github.com/wippyai/rvdebug/errors"
	"github.com/wippyai/rvdebug/fixture"
	"github.com/wippyai/rvdebug/runtime"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

var log = zap.NewNop()

// exitError ends the process with the given status without printing.
type exitError int

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

func fatal(msg any) {
	var s string
	switch msg := msg.(type) {
	case string:
		s = msg
	case error:
		s = msg.Error()
	default:
		s = fmt.Sprintf("%v", msg)
	}
	fmt.Fprintf(os.Stderr, "%s\n", red(s))
	os.Exit(1)
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Reads global flags from Viper and adjusts the environment accordingly.
func processGlobalFlags() error {
	if viper.GetBool("no-color") {
		color.NoColor = true
	}
	l, err := newLogger(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	log = l
	engine.SetLogger(l.Named("engine"))
	emulator.SetLogger(l.Named("emulator"))
	runtime.SetLogger(l.Named("runtime"))
	debugger.SetLogger(l.Named("debugger"))
	fixture.SetLogger(l.Named("fixture"))
	return nil
}

// newLogger logs to stderr, with the console encoder when stderr is a
// terminal and JSON otherwise.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log-level").
			Value(level).
			Cause(err).
			Build()
	}
	cfg := zap.NewProductionConfig()
	if term.IsTerminal(int(os.Stderr.Fd())) {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func syncLogger() {
	_ = log.Sync()
}
