package uiautomator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devicelab-dev/snippet-uiautomator/pkg/core"
)

func TestWaitExistsTimesOut(t *testing.T) {
	obj := newTestDevice(NewFakeRemote(0, nil)).UI(By().Text("Never"))
	timeout := 60 * time.Millisecond

	start := time.Now()
	if obj.Wait().Exists(context.Background(), timeout) {
		t.Fatal("Exists() should be false")
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Errorf("returned after %v, before the %v timeout", elapsed, timeout)
	}
}

func TestWaitAssertExistsTimesOut(t *testing.T) {
	obj := newTestDevice(NewFakeRemote(0, nil)).UI(By().Text("Never"))
	timeout := 60 * time.Millisecond

	start := time.Now()
	err := obj.Wait().AssertExists(context.Background(), "login screen", timeout)
	if elapsed := time.Since(start); elapsed < timeout {
		t.Errorf("returned after %v, before the %v timeout", elapsed, timeout)
	}

	var se *core.SearchError
	if !errors.As(err, &se) {
		t.Fatalf("expected SearchError, got %v", err)
	}
	if se.Timeout != timeout {
		t.Errorf("Timeout = %v, want %v", se.Timeout, timeout)
	}
	if !errors.Is(err, core.ErrNotFound) {
		t.Error("expected ErrNotFound")
	}
	for _, want := range []string{"login screen", "Selector{'text': 'Never'}", "60 ms"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should contain %q", err, want)
		}
	}
}

func TestWaitExistsAppears(t *testing.T) {
	var checks int32
	remote := &FakeRemote{
		CountFunc: func(Selector) (int, error) {
			if atomic.AddInt32(&checks, 1) >= 3 {
				return 1, nil
			}
			return 0, nil
		},
	}
	obj := newTestDevice(remote).UI(By().Text("Later"))

	if !obj.Wait().Exists(context.Background(), time.Second) {
		t.Fatal("Exists() should be true once the element appears")
	}
	if n := atomic.LoadInt32(&checks); n != 3 {
		t.Errorf("expected 3 checks, got %d", n)
	}
}

func TestWaitGoneReturnsEarly(t *testing.T) {
	var checks int32
	remote := &FakeRemote{
		CountFunc: func(Selector) (int, error) {
			if atomic.AddInt32(&checks, 1) >= 2 {
				return 0, nil
			}
			return 1, nil
		},
	}
	obj := newTestDevice(remote).UI(By().Text("Spinner"))
	timeout := 5 * time.Second

	start := time.Now()
	if !obj.Wait().Gone(context.Background(), timeout) {
		t.Fatal("Gone() should be true")
	}
	if elapsed := time.Since(start); elapsed >= timeout {
		t.Errorf("Gone() took %v, should return well before %v", elapsed, timeout)
	}
}

func TestWaitAssertGoneStillPresent(t *testing.T) {
	obj := newTestDevice(NewFakeRemote(1, sampleInfo)).UI(By().Text("Spinner"))

	err := obj.Wait().AssertGone(context.Background(), "", 30*time.Millisecond)
	var se *core.SearchError
	if !errors.As(err, &se) {
		t.Fatalf("expected SearchError, got %v", err)
	}
	if !se.StillPresent || !strings.Contains(err.Error(), "Still found") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestWaitFinalCheckAtDeadline(t *testing.T) {
	var checks int32
	remote := &FakeRemote{
		CountFunc: func(Selector) (int, error) {
			atomic.AddInt32(&checks, 1)
			return 0, nil
		},
	}
	dev := NewDevice(remote, Options{PollInterval: time.Hour})

	obj := dev.UI(By().Text("x"))
	if obj.Wait().Exists(context.Background(), 20*time.Millisecond) {
		t.Fatal("Exists() should be false")
	}
	if n := atomic.LoadInt32(&checks); n != 2 {
		t.Errorf("expected an initial and a final check, got %d", n)
	}
}

func TestWaitChainsTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	remote := &FakeRemote{
		CountFunc: func(Selector) (int, error) { return 0, boom },
	}
	obj := newTestDevice(remote).UI(By().Text("x"))

	if obj.Wait().Exists(context.Background(), 20*time.Millisecond) {
		t.Fatal("Exists() should be false on transport errors")
	}
	err := obj.Wait().AssertExists(context.Background(), "", 20*time.Millisecond)
	if !core.IsSearchError(err) || !errors.Is(err, boom) {
		t.Errorf("expected SearchError wrapping the transport error, got %v", err)
	}
}

func TestWaitCancelled(t *testing.T) {
	obj := newTestDevice(NewFakeRemote(0, nil)).UI(By().Text("x"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := obj.Wait().AssertExists(ctx, "", time.Minute)
	if time.Since(start) > time.Second {
		t.Error("cancelled wait should return promptly")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestWaitClick(t *testing.T) {
	remote := NewFakeRemote(1, sampleInfo)
	obj := newTestDevice(remote).UI(By().Text("OK"))

	ok, err := obj.Wait().Click(context.Background(), 50*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("got %v, %v; want true, nil", ok, err)
	}
	if remote.LastCall().Op != OpClickObj {
		t.Errorf("expected click, got %s", remote.LastCall().Op)
	}

	missing := newTestDevice(NewFakeRemote(0, nil)).UI(By().Text("OK"))
	if _, err := missing.Wait().Click(context.Background(), 20*time.Millisecond); !core.IsSearchError(err) {
		t.Errorf("expected SearchError, got %v", err)
	}
}
