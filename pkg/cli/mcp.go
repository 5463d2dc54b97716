package cli

import (
	"context"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/mcpserver"
	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
	"github.com/urfave/cli/v2"
)

// serveMCP runs the tool server. Replaced in tests.
var serveMCP = func(s *mcpserver.Server, transport string, port int) error {
	return s.Serve(transport, port)
}

var mcpCommand = &cli.Command{
	Name:  "mcp",
	Usage: "Serve UI operations as Model Context Protocol tools",
	Description: `Exposes exists, info, click, set_text, wait, scroll, swipe and fling as
MCP tools backed by the snippet connection.

Examples:
  snippet-ui mcp
  snippet-ui mcp --transport streamable-http --port 8808`,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "transport", Value: "stdio", Usage: "stdio or streamable-http"},
		&cli.IntFlag{Name: "port", Value: 8808, Usage: "Port for streamable-http"},
	},
	Action: func(c *cli.Context) error {
		return withDevice(c, func(_ context.Context, dev *uiautomator.Device) error {
			return serveMCP(mcpserver.New(dev, Version), c.String("transport"), c.Int("port"))
		})
	},
}
