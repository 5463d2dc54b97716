// Package mcpserver exposes UI object operations as Model Context Protocol
// tools, so an agent can drive a device through a snippet connection.
package mcpserver

import (
	"fmt"
	"sync"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/uiautomator"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with the device it drives. Tool calls are
// serialized; the snippet connection handles one request at a time.
type Server struct {
	device *uiautomator.Device
	mu     sync.Mutex
	mcp    *mcpserver.MCPServer
}

// New creates a server with every tool registered.
func New(device *uiautomator.Device, version string) *Server {
	s := &Server{
		device: device,
		mcp:    mcpserver.NewMCPServer("snippet-ui", version),
	}
	s.registerTools()
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *mcpserver.MCPServer {
	return s.mcp
}

// Serve runs the server on the named transport.
func (s *Server) Serve(transport string, port int) error {
	switch transport {
	case "stdio":
		return mcpserver.ServeStdio(s.mcp)
	case "streamable-http":
		return mcpserver.NewStreamableHTTPServer(s.mcp).Start(fmt.Sprintf(":%d", port))
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", transport)
	}
}

// selectorOptions are shared by every element tool.
func selectorOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("text", mcp.Description("Exact text")),
		mcp.WithString("text-contains", mcp.Description("Text substring")),
		mcp.WithString("desc", mcp.Description("Exact content description")),
		mcp.WithString("res", mcp.Description("Resource id, e.g. com.example:id/ok")),
		mcp.WithString("clazz", mcp.Description("Class name, e.g. android.widget.Button")),
		mcp.WithString("pkg", mcp.Description("Application package")),
		mcp.WithBoolean("scrollable", mcp.Description("Only scrollable elements")),
		mcp.WithNumber("index", mcp.Description("Position among siblings")),
	}
}

func tool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	all := append([]mcp.ToolOption{mcp.WithDescription(description)}, selectorOptions()...)
	return mcp.NewTool(name, append(all, opts...)...)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(
		tool("exists", "Report whether an element matches the selector and how many do"),
		s.handleExists,
	)

	s.mcp.AddTool(
		tool("info", "Read the property snapshot of the first matching element: text, class, bounds and state flags"),
		s.handleInfo,
	)

	s.mcp.AddTool(
		tool("click", "Click the first matching element",
			mcp.WithBoolean("long", mcp.Description("Long click")),
			mcp.WithNumber("hold", mcp.Description("Hold the click for this many ms")),
			mcp.WithNumber("wait", mcp.Description("Wait up to this many ms for the element first")),
		),
		s.handleClick,
	)

	s.mcp.AddTool(
		tool("set_text", "Replace the text of an editable field",
			mcp.WithString("value", mcp.Description("New text"), mcp.Required()),
		),
		s.handleSetText,
	)

	s.mcp.AddTool(
		tool("wait", "Wait for an element to appear or disappear",
			mcp.WithBoolean("gone", mcp.Description("Wait until nothing matches")),
			mcp.WithNumber("timeout", mcp.Description("Max ms to wait (default from config)")),
			mcp.WithString("message", mcp.Description("Message attached to a timeout")),
		),
		s.handleWait,
	)

	s.mcp.AddTool(runFlowTool(), s.handleRunFlow)

	for _, kind := range []uiautomator.GestureKind{uiautomator.KindScroll, uiautomator.KindSwipe, uiautomator.KindFling} {
		opts := []mcp.ToolOption{
			mcp.WithString("direction", mcp.Description("down, up, left or right"), mcp.Required(),
				mcp.Enum("down", "up", "left", "right")),
			mcp.WithNumber("speed", mcp.Description("Pixels per second")),
			mcp.WithNumber("margin", mcp.Description("Edge margin in pixels")),
			mcp.WithNumber("margin-percent", mcp.Description("Edge margin as a percentage of the element")),
		}
		if kind != uiautomator.KindFling {
			opts = append(opts, mcp.WithNumber("percent", mcp.Description("Distance as a percentage of the element")))
		}
		if kind == uiautomator.KindScroll {
			opts = append(opts, mcp.WithString("until-text", mcp.Description("Scroll until an element with this text is visible")))
		}
		s.mcp.AddTool(
			tool(string(kind), fmt.Sprintf("Perform a %s gesture on the first matching element", kind), opts...),
			s.gestureHandler(kind),
		)
	}
}
