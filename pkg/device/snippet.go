package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/logger"
)

// SnippetRunner is the instrumentation runner every Mobly snippet APK ships.
const SnippetRunner = "com.google.android.mobly.snippet.SnippetRunner"

// DefaultLaunchTimeout bounds how long the snippet may take to start serving.
const DefaultLaunchTimeout = 30 * time.Second

var (
	startLine   = regexp.MustCompile(`^SNIPPET START, PROTOCOL (\d+) (\d+)$`)
	servingLine = regexp.MustCompile(`^SNIPPET SERVING, PORT (\d+)$`)
)

// Snippet is a running snippet server reachable on a forwarded local port.
type Snippet struct {
	Package    string
	DevicePort int
	LocalPort  int

	device *AndroidDevice
	stop   func() error
}

// Address returns the local host:port the snippet is forwarded to.
func (s *Snippet) Address() string {
	return fmt.Sprintf("127.0.0.1:%d", s.LocalPort)
}

// Close stops the instrumentation and removes the port forward.
func (s *Snippet) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.device.Shell(ctx, instrumentCmd("stop", s.Package)); err != nil {
		logger.Warn("stop snippet %s: %v", s.Package, err)
	}
	if s.stop != nil {
		_ = s.stop()
	}
	return s.device.RemoveForward(ctx, s.LocalPort)
}

func instrumentCmd(action, pkg string) string {
	return fmt.Sprintf("am instrument --user 0 -w -e action %s %s/%s", action, pkg, SnippetRunner)
}

// LaunchSnippet starts the snippet in pkg and forwards its server port. A
// timeout of zero uses DefaultLaunchTimeout.
func (d *AndroidDevice) LaunchSnippet(ctx context.Context, pkg string, timeout time.Duration) (*Snippet, error) {
	if pkg == "" {
		return nil, fmt.Errorf("snippet package is required")
	}
	if timeout <= 0 {
		timeout = DefaultLaunchTimeout
	}

	out, stop, err := d.start(ctx, "shell", instrumentCmd("start", pkg))
	if err != nil {
		return nil, fmt.Errorf("launch snippet %s: %w", pkg, err)
	}

	type served struct {
		port int
		err  error
	}
	done := make(chan served, 1)
	go func() {
		port, err := readServingPort(out)
		done <- served{port, err}
	}()

	var port int
	select {
	case res := <-done:
		port, err = res.port, res.err
	case <-time.After(timeout):
		err = fmt.Errorf("snippet did not start serving within %v", timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		_ = stop()
		return nil, fmt.Errorf("launch snippet %s: %w", pkg, err)
	}

	local, err := d.Forward(ctx, port)
	if err != nil {
		_ = stop()
		return nil, fmt.Errorf("forward snippet port %d: %w", port, err)
	}
	logger.Info("snippet %s serving on device port %d, forwarded to %d", pkg, port, local)

	return &Snippet{
		Package:    pkg,
		DevicePort: port,
		LocalPort:  local,
		device:     d,
		stop:       stop,
	}, nil
}

// readServingPort consumes instrumentation output up to the serving line.
// Output ending before that line is returned in the error, since it carries
// the instrumentation failure.
func readServingPort(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	var seen []string
	started := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if m := startLine.FindStringSubmatch(line); m != nil {
			if m[1] != "1" {
				return 0, fmt.Errorf("unsupported snippet protocol %s.%s", m[1], m[2])
			}
			started = true
			continue
		}
		if m := servingLine.FindStringSubmatch(line); m != nil {
			if !started {
				return 0, fmt.Errorf("snippet served before announcing its protocol")
			}
			return strconv.Atoi(m[1])
		}
		seen = append(seen, line)
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	if len(seen) == 0 {
		return 0, fmt.Errorf("instrumentation exited without output")
	}
	return 0, fmt.Errorf("instrumentation exited: %s", strings.Join(seen, "; "))
}
