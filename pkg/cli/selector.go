package cli

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
	"github.com/urfave/cli/v2"
)

// selectorFlags select the target element.
func selectorFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "text", Usage: "Exact text"},
		&cli.StringFlag{Name: "text-contains", Usage: "Text substring"},
		&cli.StringFlag{Name: "desc", Usage: "Exact content description"},
		&cli.StringFlag{Name: "res", Usage: "Resource id (com.example:id/name)"},
		&cli.StringFlag{Name: "clazz", Usage: "Class name"},
		&cli.StringFlag{Name: "pkg", Usage: "Application package"},
		&cli.StringSliceFlag{Name: "with", Usage: "Extra criterion as name=value (repeatable)"},
	}
}

// selectorFromFlags builds a selector in the order flags are declared.
func selectorFromFlags(c *cli.Context) (uiautomator.Selector, error) {
	sel := uiautomator.By()
	if v := c.String("text"); v != "" {
		sel = sel.Text(v)
	}
	if v := c.String("text-contains"); v != "" {
		sel = sel.TextContains(v)
	}
	if v := c.String("desc"); v != "" {
		sel = sel.Desc(v)
	}
	if v := c.String("res"); v != "" {
		sel = sel.Res(v)
	}
	if v := c.String("clazz"); v != "" {
		sel = sel.Clazz(v)
	}
	if v := c.String("pkg"); v != "" {
		sel = sel.Pkg(v)
	}
	for _, kv := range c.StringSlice("with") {
		name, value, err := parseCriterion(kv)
		if err != nil {
			return uiautomator.Selector{}, err
		}
		sel = sel.With(name, value)
	}
	if sel.IsZero() {
		return uiautomator.Selector{}, fmt.Errorf("at least one selector flag is required (--text, --res, --desc, --clazz, ...)")
	}
	return sel, sel.Err()
}

// parseCriterion splits name=value, reading true/false as booleans.
func parseCriterion(kv string) (string, interface{}, error) {
	name, value, ok := strings.Cut(kv, "=")
	if !ok {
		return "", nil, fmt.Errorf("invalid criterion %q: expected name=value", kv)
	}
	if name == "" {
		return "", nil, fmt.Errorf("invalid criterion %q: empty name", kv)
	}
	switch value {
	case "true":
		return name, true, nil
	case "false":
		return name, false, nil
	}
	return name, value, nil
}
