// Package device manages Android devices via ADB: serial detection, port
// forwarding, and launching the UiAutomator snippet server.
package device

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/logger"
)

// AndroidDevice manages an Android device connection via ADB.
type AndroidDevice struct {
	serial  string
	adbPath string

	// run executes adb to completion; start spawns a long-running adb
	// process and returns its stdout. Replaced in tests.
	run   func(ctx context.Context, args ...string) (string, error)
	start func(ctx context.Context, args ...string) (io.ReadCloser, func() error, error)
}

// DeviceInfo contains basic device information.
type DeviceInfo struct {
	Serial     string
	Model      string
	SDK        string
	Brand      string
	IsEmulator bool
}

// New creates an AndroidDevice for the given serial.
// If serial is empty, it auto-detects the connected device.
func New(ctx context.Context, serial string) (*AndroidDevice, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}
	d := &AndroidDevice{serial: serial, adbPath: adbPath}
	d.run = d.execADB
	d.start = d.spawnADB

	if serial == "" {
		out, err := d.run(ctx, "devices")
		if err != nil {
			return nil, err
		}
		if d.serial, err = parseDevices(out); err != nil {
			return nil, fmt.Errorf("no device specified and auto-detect failed: %w", err)
		}
	}

	if err := d.waitForDevice(ctx, 5*time.Second); err != nil {
		return nil, fmt.Errorf("device not found: %w", err)
	}
	return d, nil
}

// parseDevices returns the first serial in `adb devices` output whose state
// is "device".
func parseDevices(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 && parts[1] == "device" {
			return parts[0], nil
		}
	}
	return "", fmt.Errorf("no connected devices found")
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

// Shell executes a shell command on the device.
func (d *AndroidDevice) Shell(ctx context.Context, cmd string) (string, error) {
	return d.run(ctx, "shell", cmd)
}

// Forward forwards a free local TCP port to remotePort on the device and
// returns the local port.
func (d *AndroidDevice) Forward(ctx context.Context, remotePort int) (int, error) {
	out, err := d.run(ctx, "forward", "tcp:0", fmt.Sprintf("tcp:%d", remotePort))
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("unexpected adb forward output %q", strings.TrimSpace(out))
	}
	return port, nil
}

// RemoveForward removes a port forward.
func (d *AndroidDevice) RemoveForward(ctx context.Context, localPort int) error {
	_, err := d.run(ctx, "forward", "--remove", fmt.Sprintf("tcp:%d", localPort))
	return err
}

// Info returns device information.
func (d *AndroidDevice) Info(ctx context.Context) DeviceInfo {
	info := DeviceInfo{Serial: d.serial}
	prop := func(name string) string {
		out, err := d.Shell(ctx, "getprop "+name)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(out)
	}
	info.Model = prop("ro.product.model")
	info.SDK = prop("ro.build.version.sdk")
	info.Brand = prop("ro.product.brand")
	info.IsEmulator = prop("ro.kernel.qemu") == "1"
	return info
}

func (d *AndroidDevice) adbArgs(args []string) []string {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	return append(cmdArgs, args...)
}

// execADB executes an ADB command.
func (d *AndroidDevice) execADB(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, d.adbPath, d.adbArgs(args)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return "", fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(errMsg))
	}
	return stdout.String(), nil
}

// spawnADB starts an ADB command and leaves it running. The returned stop
// func kills the process and reaps it.
func (d *AndroidDevice) spawnADB(ctx context.Context, args ...string) (io.ReadCloser, func() error, error) {
	cmd := exec.CommandContext(ctx, d.adbPath, d.adbArgs(args)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
	}
	stop := func() error {
		if cmd.ProcessState == nil {
			_ = cmd.Process.Kill()
		}
		err := cmd.Wait()
		logger.Debug("adb %s exited: %v", strings.Join(args, " "), err)
		return nil
	}
	return stdout, stop, nil
}

// waitForDevice waits for the device to be available.
func (d *AndroidDevice) waitForDevice(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		out, err := d.run(ctx, "get-state")
		if err == nil && strings.TrimSpace(out) == "device" {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for device %s", d.serial)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// findADB locates the ADB binary.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if home := os.Getenv(env); home != "" {
			path := filepath.Join(home, "platform-tools", "adb")
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("adb not found in PATH or ANDROID_HOME; ensure Android SDK is installed")
}
