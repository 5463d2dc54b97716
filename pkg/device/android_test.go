package device

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeADB records adb invocations and answers from a table of prefixes.
type fakeADB struct {
	mu      sync.Mutex
	calls   []string
	answers map[string]string
	fail    map[string]error

	output  string // stdout of the spawned instrumentation
	block   bool   // keep the spawned process silent until stopped
	stopped bool
}

func (f *fakeADB) device(serial string) *AndroidDevice {
	return &AndroidDevice{serial: serial, adbPath: "adb", run: f.run, start: f.start}
}

func (f *fakeADB) run(_ context.Context, args ...string) (string, error) {
	cmd := strings.Join(args, " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
	for prefix, err := range f.fail {
		if strings.HasPrefix(cmd, prefix) {
			return "", err
		}
	}
	for prefix, out := range f.answers {
		if strings.HasPrefix(cmd, prefix) {
			return out, nil
		}
	}
	return "", nil
}

func (f *fakeADB) start(_ context.Context, args ...string) (io.ReadCloser, func() error, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "spawn "+strings.Join(args, " "))
	f.mu.Unlock()

	r, w := io.Pipe()
	go func() {
		io.WriteString(w, f.output)
		if !f.block {
			w.Close()
		}
	}()
	stop := func() error {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()
		w.Close()
		return nil
	}
	return r, stop, nil
}

func (f *fakeADB) called(cmd string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == cmd {
			return true
		}
	}
	return false
}

func TestParseDevices(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    string
		wantErr bool
	}{
		{"single", "List of devices attached\nemulator-5554\tdevice\n", "emulator-5554", false},
		{"skips offline", "List of devices attached\nR58M\toffline\n0123\tdevice\n", "0123", false},
		{"daemon noise", "* daemon started successfully\nList of devices attached\nabc\tdevice\n", "abc", false},
		{"unauthorized only", "List of devices attached\nR58M\tunauthorized\n", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDevices(tt.out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseDevices = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdbArgsIncludeSerial(t *testing.T) {
	d := &AndroidDevice{serial: "emulator-5554"}
	got := strings.Join(d.adbArgs([]string{"shell", "ls"}), " ")
	if got != "-s emulator-5554 shell ls" {
		t.Errorf("adbArgs = %q", got)
	}
	d.serial = ""
	if got := strings.Join(d.adbArgs([]string{"devices"}), " "); got != "devices" {
		t.Errorf("adbArgs without serial = %q", got)
	}
}

func TestForward(t *testing.T) {
	f := &fakeADB{answers: map[string]string{"forward tcp:0 tcp:6790": "41235\n"}}
	port, err := f.device("s").Forward(context.Background(), 6790)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 41235 {
		t.Errorf("port = %d", port)
	}

	f.answers["forward tcp:0 tcp:1"] = "error: cannot bind"
	if _, err := f.device("s").Forward(context.Background(), 1); err == nil {
		t.Error("expected error for non-numeric output")
	}
}

func TestInfo(t *testing.T) {
	f := &fakeADB{answers: map[string]string{
		"shell getprop ro.product.model":     "Pixel 7\n",
		"shell getprop ro.build.version.sdk": "34\n",
		"shell getprop ro.product.brand":     "google\n",
		"shell getprop ro.kernel.qemu":       "1\n",
	}}
	info := f.device("emulator-5554").Info(context.Background())
	want := DeviceInfo{Serial: "emulator-5554", Model: "Pixel 7", SDK: "34", Brand: "google", IsEmulator: true}
	if info != want {
		t.Errorf("Info = %+v, want %+v", info, want)
	}
}

func TestWaitForDeviceCancelled(t *testing.T) {
	f := &fakeADB{answers: map[string]string{"get-state": "offline"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.device("s").waitForDevice(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestReadServingPort(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    int
		wantErr string
	}{
		{"serving", "SNIPPET START, PROTOCOL 1 0\nSNIPPET SERVING, PORT 6790\n", 6790, ""},
		{"noise first", "WARNING: linker\nSNIPPET START, PROTOCOL 1 0\r\n\nSNIPPET SERVING, PORT 1234\n", 1234, ""},
		{"crash", "INSTRUMENTATION_RESULT: shortMsg=Process crashed.\nINSTRUMENTATION_CODE: 0\n", 0, "shortMsg=Process crashed.; INSTRUMENTATION_CODE: 0"},
		{"no output", "", 0, "without output"},
		{"protocol", "SNIPPET START, PROTOCOL 2 0\n", 0, "unsupported snippet protocol 2.0"},
		{"out of order", "SNIPPET SERVING, PORT 1\n", 0, "before announcing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readServingPort(strings.NewReader(tt.out))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("port = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLaunchSnippet(t *testing.T) {
	f := &fakeADB{
		output:  "SNIPPET START, PROTOCOL 1 0\nSNIPPET SERVING, PORT 6790\n",
		block:   true,
		answers: map[string]string{"forward tcp:0 tcp:6790": "41000\n"},
	}
	d := f.device("emulator-5554")

	s, err := d.LaunchSnippet(context.Background(), "com.example.snippet", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Address() != "127.0.0.1:41000" || s.DevicePort != 6790 {
		t.Errorf("unexpected snippet %+v", s)
	}
	if !f.called("spawn shell am instrument --user 0 -w -e action start com.example.snippet/" + SnippetRunner) {
		t.Errorf("instrumentation not started, calls %v", f.calls)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !f.called("shell am instrument --user 0 -w -e action stop com.example.snippet/" + SnippetRunner) {
		t.Error("expected stop action")
	}
	if !f.called("forward --remove tcp:41000") {
		t.Error("expected the forward to be removed")
	}
	if !f.stopped {
		t.Error("expected the instrumentation process to be stopped")
	}
}

func TestLaunchSnippetFailures(t *testing.T) {
	if _, err := (&fakeADB{}).device("s").LaunchSnippet(context.Background(), "", 0); err == nil {
		t.Error("expected error without a package")
	}

	crash := &fakeADB{output: "INSTRUMENTATION_FAILED: com.example.snippet/" + SnippetRunner + "\n"}
	_, err := crash.device("s").LaunchSnippet(context.Background(), "com.example.snippet", time.Second)
	if err == nil || !strings.Contains(err.Error(), "INSTRUMENTATION_FAILED") {
		t.Errorf("expected instrumentation failure, got %v", err)
	}
	if !crash.stopped {
		t.Error("failed launch should stop the process")
	}

	silent := &fakeADB{block: true}
	_, err = silent.device("s").LaunchSnippet(context.Background(), "com.example.snippet", 20*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "did not start serving") {
		t.Errorf("expected timeout, got %v", err)
	}

	noForward := &fakeADB{
		output: "SNIPPET START, PROTOCOL 1 0\nSNIPPET SERVING, PORT 6790\n",
		block:  true,
		fail:   map[string]error{"forward": errors.New("adb forward failed")},
	}
	_, err = noForward.device("s").LaunchSnippet(context.Background(), "com.example.snippet", time.Second)
	if err == nil || !strings.Contains(err.Error(), "forward snippet port 6790") {
		t.Errorf("expected forward error, got %v", err)
	}
}
