package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/jsengine"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/logger"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

var existsCommand = &cli.Command{
	Name:  "exists",
	Usage: "Report whether an element matches the selector",
	Description: `Prints true or false and the number of matches.

Examples:
  snippet-ui exists --text Settings
  snippet-ui exists --res com.example:id/list --with scrollable=true`,
	Flags:  append(selectorFlags(), &cli.BoolFlag{Name: "assert", Usage: "Fail when nothing matches"}),
	Action: runExists,
}

var infoCommand = &cli.Command{
	Name:   "info",
	Usage:  "Print the property snapshot of the first match as JSON",
	Flags:  selectorFlags(),
	Action: runInfo,
}

var clickCommand = &cli.Command{
	Name:  "click",
	Usage: "Click the first match",
	Description: `Examples:
  snippet-ui click --text OK
  snippet-ui click --text OK --wait 5s
  snippet-ui click --res com.example:id/item --long`,
	Flags: append(selectorFlags(),
		&cli.DurationFlag{Name: "wait", Usage: "Wait up to this long for the element first"},
		&cli.DurationFlag{Name: "hold", Usage: "Hold the click for this long"},
		&cli.BoolFlag{Name: "long", Usage: "Long click"},
	),
	Action: runClick,
}

var setTextCommand = &cli.Command{
	Name:      "set-text",
	Usage:     "Replace the text of an editable field",
	ArgsUsage: "<value>",
	Flags:     selectorFlags(),
	Action:    runSetText,
}

var waitCommand = &cli.Command{
	Name:  "wait",
	Usage: "Wait for an element to appear or disappear",
	Flags: append(selectorFlags(),
		&cli.DurationFlag{Name: "timeout", Usage: "How long to wait (default from config)"},
		&cli.BoolFlag{Name: "gone", Usage: "Wait for the element to disappear"},
		&cli.StringFlag{Name: "message", Usage: "Message attached to the failure"},
	),
	Action: runWait,
}

var scrollCommand = &cli.Command{
	Name:  "scroll",
	Usage: "Scroll a scrollable element",
	Description: `Without --percent or --until-text the element is scrolled to its end.

Examples:
  snippet-ui scroll --clazz android.widget.ScrollView --direction down --percent 50
  snippet-ui scroll --with scrollable=true --direction down --until-text About --click`,
	Flags: append(selectorFlags(),
		&cli.StringFlag{Name: "direction", Value: "down", Usage: "down, up, left or right"},
		&cli.IntFlag{Name: "percent", Usage: "Distance as a percentage of the element"},
		&cli.IntFlag{Name: "speed", Usage: "Speed in pixels per second"},
		&cli.IntFlag{Name: "margin", Usage: "Margin in pixels"},
		&cli.IntFlag{Name: "margin-percent", Usage: "Margin as a percentage of the element"},
		&cli.StringFlag{Name: "until-text", Usage: "Scroll until this text is visible"},
		&cli.BoolFlag{Name: "click", Usage: "Click the --until-text element once found"},
	),
	Action: runScroll,
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run a JavaScript automation script",
	ArgsUsage: "<script.js>",
	Description: `Scripts get a ui({...}) global returning element handles:

  const ok = ui({text: 'OK'});
  if (ok.waitExists(5000)) { ok.click(); }
  ui({scrollable: true}).scroll('down', {until: {text: 'About'}});

RUN_ID holds a unique id for the run. With --watch the script is run again
every time the file is saved.`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "env", Aliases: []string{"e"}, Usage: "Script variable as NAME=value (repeatable)"},
		&cli.BoolFlag{Name: "watch", Usage: "Re-run the script when it changes"},
	},
	Action: runScript,
}

func runExists(c *cli.Context) error {
	sel, err := selectorFromFlags(c)
	if err != nil {
		return err
	}
	return withDevice(c, func(ctx context.Context, dev *uiautomator.Device) error {
		obj := dev.UI(sel)
		if c.Bool("assert") {
			if err := obj.AssertExists(ctx, ""); err != nil {
				return err
			}
		}
		n, err := obj.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%v (%d matches)\n", n > 0, n)
		return nil
	})
}

func runInfo(c *cli.Context) error {
	sel, err := selectorFromFlags(c)
	if err != nil {
		return err
	}
	return withDevice(c, func(ctx context.Context, dev *uiautomator.Device) error {
		info, err := dev.UI(sel).Info(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	})
}

func runClick(c *cli.Context) error {
	sel, err := selectorFromFlags(c)
	if err != nil {
		return err
	}
	return withDevice(c, func(ctx context.Context, dev *uiautomator.Device) error {
		obj := dev.UI(sel)
		if wait := c.Duration("wait"); wait > 0 {
			if err := obj.Wait().AssertExists(ctx, "", wait); err != nil {
				return err
			}
		}

		var ok bool
		var err error
		switch {
		case c.Bool("long"):
			ok, err = obj.LongClick(ctx)
		case c.Duration("hold") > 0:
			ok, err = obj.Click(ctx, uiautomator.WithDuration(c.Duration("hold")))
		default:
			ok, err = obj.Click(ctx)
		}
		if err != nil {
			return err
		}
		return report(c, ok, "click %s", sel)
	})
}

func runSetText(c *cli.Context) error {
	sel, err := selectorFromFlags(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return fmt.Errorf("set-text requires exactly one value argument")
	}
	return withDevice(c, func(ctx context.Context, dev *uiautomator.Device) error {
		ok, err := dev.UI(sel).SetText(ctx, c.Args().First())
		if err != nil {
			return err
		}
		return report(c, ok, "set text on %s", sel)
	})
}

func runWait(c *cli.Context) error {
	sel, err := selectorFromFlags(c)
	if err != nil {
		return err
	}
	return withDevice(c, func(ctx context.Context, dev *uiautomator.Device) error {
		w := dev.UI(sel).Wait()
		if c.Bool("gone") {
			if err := w.AssertGone(ctx, c.String("message"), c.Duration("timeout")); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "gone: %s\n", sel)
			return nil
		}
		if err := w.AssertExists(ctx, c.String("message"), c.Duration("timeout")); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "found: %s\n", sel)
		return nil
	})
}

func runScroll(c *cli.Context) error {
	sel, err := selectorFromFlags(c)
	if err != nil {
		return err
	}
	dir := uiautomator.Direction(strings.ToUpper(c.String("direction")))

	return withDevice(c, func(ctx context.Context, dev *uiautomator.Device) error {
		g := dev.UI(sel).Scroll()
		if c.IsSet("margin") {
			g = g.Margin(c.Int("margin"))
		}
		if c.IsSet("margin-percent") {
			g = g.MarginPercent(c.Int("margin-percent"))
		}

		var opts []uiautomator.GestureOption
		if c.IsSet("percent") {
			opts = append(opts, uiautomator.Percent(c.Int("percent")))
		}
		if c.IsSet("speed") {
			opts = append(opts, uiautomator.Speed(c.Int("speed")))
		}

		var ok bool
		var err error
		target := c.String("until-text")
		switch {
		case target != "" && c.Bool("click"):
			ok, err = g.Click(ctx, dir, uiautomator.By().Text(target))
		case target != "":
			ok, err = g.Toward(ctx, dir, append(opts, uiautomator.Until(uiautomator.By().Text(target)))...)
		default:
			ok, err = g.Toward(ctx, dir, opts...)
		}
		if err != nil {
			return err
		}
		return report(c, ok, "scroll %s on %s", strings.ToLower(string(dir)), sel)
	})
}

func runScript(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("run requires a script path")
	}
	path := c.Args().First()
	vars, err := parseEnv(c.StringSlice("env"))
	if err != nil {
		return err
	}

	return withDevice(c, func(ctx context.Context, dev *uiautomator.Device) error {
		if !c.Bool("watch") {
			return runScriptOnce(ctx, c, dev, path, vars)
		}
		return watchScript(ctx, path, func() {
			if err := runScriptOnce(ctx, c, dev, path, vars); err != nil {
				fmt.Fprintf(c.App.ErrWriter, "Error: %v\n", err)
			}
		})
	})
}

// runScriptOnce runs path in a fresh engine and prints its output object.
func runScriptOnce(ctx context.Context, c *cli.Context, dev *uiautomator.Device, path string, vars map[string]string) error {
	runID := uuid.New().String()
	logger.Info("run %s: %s", runID, path)

	engine := jsengine.New(dev)
	engine.SetContext(ctx)
	engine.SetStdout(c.App.Writer)
	engine.SetVariable("RUN_ID", runID)
	for name, value := range vars {
		engine.SetVariable(name, value)
	}

	start := time.Now()
	if err := engine.RunFile(path); err != nil {
		logger.Error("run %s failed after %v: %v", runID, time.Since(start), err)
		return err
	}
	logger.Info("run %s passed in %v", runID, time.Since(start))

	if out := engine.GetOutput(); len(out) > 0 {
		return json.NewEncoder(c.App.Writer).Encode(out)
	}
	return nil
}

func parseEnv(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --env %q: expected NAME=value", kv)
		}
		vars[name] = value
	}
	return vars, nil
}

// report prints the outcome and turns a false acknowledgment into an error.
func report(c *cli.Context, ok bool, format string, args ...interface{}) error {
	what := fmt.Sprintf(format, args...)
	if !ok {
		return fmt.Errorf("%s: device reported failure", what)
	}
	fmt.Fprintf(c.App.Writer, "ok: %s\n", what)
	return nil
}
