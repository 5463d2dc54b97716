// Package cli provides the command-line interface for snippet-ui.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/config"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/device"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/logger"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/snippet"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"serial"},
		Usage:   "ADB serial of the device, also shown in error messages",
		EnvVars: []string{"SNIPPET_UI_DEVICE", "ANDROID_SERIAL"},
	},
	&cli.StringFlag{
		Name:    "address",
		Aliases: []string{"a"},
		Usage:   "Snippet server address (host:port)",
		EnvVars: []string{"SNIPPET_UI_ADDRESS"},
	},
	&cli.StringFlag{
		Name:    "package",
		Aliases: []string{"p"},
		Usage:   "Launch this snippet package over adb instead of dialing --address",
		EnvVars: []string{"SNIPPET_UI_PACKAGE"},
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to snippet.yaml (default: look in the current directory)",
		EnvVars: []string{"SNIPPET_UI_CONFIG"},
	},
	&cli.DurationFlag{
		Name:    "connect-timeout",
		Value:   10 * time.Second,
		Usage:   "Keep retrying the snippet connection for this long",
		EnvVars: []string{"SNIPPET_UI_CONNECT_TIMEOUT"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Log every remote call to stderr",
		EnvVars: []string{"SNIPPET_UI_VERBOSE"},
	},
}

// Commands lists every subcommand.
var Commands = []*cli.Command{
	existsCommand,
	infoCommand,
	clickCommand,
	setTextCommand,
	waitCommand,
	scrollCommand,
	runCommand,
	flowCommand,
	validateCommand,
	mcpCommand,
}

// Execute runs the CLI.
func Execute() {
	app := NewApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "snippet-ui",
		Usage:   "Drive Android UI elements through a UiAutomator snippet",
		Version: Version,
		Description: `snippet-ui talks to a UiAutomator snippet server on a device and
performs lookups, clicks, gestures and waits against selectors.

Examples:
  snippet-ui exists --text Settings
  snippet-ui click --res com.example:id/ok --wait 5s
  snippet-ui scroll --clazz android.widget.ScrollView --direction down --until-text About
  snippet-ui run login.js
  snippet-ui flow flows/ --output reports`,
		Flags:    GlobalFlags,
		Commands: Commands,
		After: func(*cli.Context) error {
			logger.Close()
			return nil
		},
	}
}

// connectFunc opens a Remote for cfg, retrying for up to maxWait. Replaced
// in tests.
var connectFunc = func(ctx context.Context, cfg config.Config, maxWait time.Duration) (uiautomator.Remote, io.Closer, error) {
	var launched *device.Snippet
	if cfg.SnippetPackage != "" {
		adb, err := device.New(ctx, cfg.Device)
		if err != nil {
			return nil, nil, err
		}
		info := adb.Info(ctx)
		logger.Info("launching %s on %s (%s %s, sdk %s)", cfg.SnippetPackage, info.Serial, info.Brand, info.Model, info.SDK)
		if launched, err = adb.LaunchSnippet(ctx, cfg.SnippetPackage, 0); err != nil {
			return nil, nil, err
		}
		cfg.Address = launched.Address()
	}

	client, err := snippet.DialRetry(ctx, cfg.Address, maxWait)
	if err != nil {
		if launched != nil {
			launched.Close()
		}
		return nil, nil, err
	}
	client.SetTimeout(cfg.RPCTimeout())
	if launched == nil {
		return client, client, nil
	}
	return client, closers{client, launched}, nil
}

// closers closes each member in order and returns the first error.
type closers []io.Closer

func (cs closers) Close() error {
	var first error
	for _, c := range cs {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// loadConfig merges the config file with global flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}

	if v := c.String("device"); v != "" {
		cfg.Device = v
	}
	if v := c.String("address"); v != "" {
		cfg.Address = v
	}
	if v := c.String("package"); v != "" {
		cfg.SnippetPackage = v
	}
	return cfg.Defaults(), nil
}

func setupLogging(c *cli.Context, cfg config.Config) {
	if c.Bool("verbose") {
		logger.SetOutput(c.App.ErrWriter)
		logger.SetLevel(logger.LevelDebug)
		return
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err == nil {
		if err := logger.Init(cfg.LogFile); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "Warning: %v\n", err)
		}
	}
}

// withDevice connects, runs fn, and closes the connection.
func withDevice(c *cli.Context, fn func(ctx context.Context, dev *uiautomator.Device) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	setupLogging(c, cfg)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	maxWait := c.Duration("connect-timeout")
	remote, closer, err := connectFunc(ctx, cfg, maxWait)
	if err != nil {
		if cfg.SnippetPackage != "" {
			return fmt.Errorf("connect to snippet %s: %w", cfg.SnippetPackage, err)
		}
		return fmt.Errorf("connect to snippet at %s: %w", cfg.Address, err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Info("connected to snippet at %s (device %q)", cfg.Address, cfg.Device)

	return fn(ctx, uiautomator.NewDevice(remote, cfg.Options()))
}
