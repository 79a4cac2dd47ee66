package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wippyai/rvdebug/debugger"
	"github.com/wippyai/rvdebug/emulator"
	"github.com/wippyai/rvdebug/engine"
	"github.com/wippyai/rvdebug/errors"
	"github.com/wippyai/rvdebug/fixture"
	"github.com/wippyai/rvdebug/runtime"
)

const engineBuiltin = "builtin"

// workspace is a loaded program with its session.
type workspace struct {
	path    string
	source  *debugger.StaticSource
	session *debugger.Session
	close   func()
}

// openWorkspace reads the program at path, loads the configured engine and,
// when configured, the test fixtures.
func openWorkspace(ctx context.Context, path string) (*workspace, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	adapter, closeEngine, err := newAdapter(ctx)
	if err != nil {
		return nil, err
	}
	if err := adapter.LoadModule(ctx); err != nil {
		closeEngine()
		return nil, err
	}

	src := debugger.NewStaticSource(string(text))
	sess := debugger.NewSession(adapter, src)
	log.Debug("session opened", zap.String("session", sess.ID()), zap.String("path", path))

	if viper.GetString("fixtures") != "" {
		set, err := loadFixtures(ctx)
		if err != nil {
			closeEngine()
			return nil, err
		}
		sess.SetFixtures(set)
	}

	return &workspace{path: path, source: src, session: sess, close: closeEngine}, nil
}

func newAdapter(ctx context.Context) (*runtime.Adapter, func(), error) {
	cfg := &runtime.Config{InstructionLimit: viper.GetInt("limit")}

	name := viper.GetString("engine")
	if name == "" || name == engineBuiltin {
		a := runtime.New(emulator.New(nil), cfg)
		return a, func() { _ = a.Close(ctx) }, nil
	}

	wasm, err := os.ReadFile(name)
	if err != nil {
		return nil, nil, errors.InitFailure("read engine module "+name, err)
	}
	eng, err := engine.NewWazeroEngine(ctx, wasm)
	if err != nil {
		return nil, nil, err
	}
	a := runtime.New(eng, cfg)
	return a, func() {
		_ = a.Close(ctx)
		_ = eng.Close(ctx)
	}, nil
}

// loadFixtures fetches the suite from a directory or an http(s) base URL.
func loadFixtures(ctx context.Context) (*fixture.Set, error) {
	loc := viper.GetString("fixtures")
	var f fixture.Fetcher
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		f = fixture.HTTPFetcher{BaseURL: loc}
	} else {
		f = fixture.DirFetcher{FS: os.DirFS(loc)}
	}
	return fixture.Load(ctx, f)
}
