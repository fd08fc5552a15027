package main

import (
	"context"
	"testing"
	"time"

	"github.com/breeze-rmm/cablerouter/internal/audio"
	"github.com/breeze-rmm/cablerouter/internal/audio/mock"
)

var pcm48k = audio.NewPCMFormat(48000, 2, 16)

func runWithTimeout(t *testing.T, ctx context.Context, sub audio.Subsystem) int {
	t.Helper()
	done := make(chan int, 1)
	go func() { done <- runRouter(ctx, sub) }()
	select {
	case code := <-done:
		return code
	case <-time.After(10 * time.Second):
		t.Fatal("runRouter did not return")
		return -1
	}
}

func TestRunExitsOneWithoutCable(t *testing.T) {
	speakers := &mock.Device{Name: "Speakers (Realtek Audio)", Client: &mock.Client{Mix: pcm48k}}
	sub := mock.NewSubsystem(speakers, speakers)

	if code := runWithTimeout(t, context.Background(), sub); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if speakers.Client.StartCalls != 0 {
		t.Error("no stream may start without a cable")
	}
	if !sub.Balanced() {
		t.Error("subsystem not uninitialized")
	}
}

func TestRunExitsZeroWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	capture := mock.NewCaptureService(pcm48k, mock.Packets(480, 512)...)
	capture.OnExhausted = cancel
	render := mock.NewRenderService(pcm48k)

	speakers := &mock.Device{Name: "Speakers (Realtek Audio)", Client: &mock.Client{Mix: pcm48k, Capture: capture}}
	cable := &mock.Device{Name: "CABLE Input (VB-Audio Virtual Cable)", Client: &mock.Client{Render: render}}
	sub := mock.NewSubsystem(speakers, speakers, cable)

	if code := runWithTimeout(t, ctx, sub); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if got := len(render.Written()); got != 2 {
		t.Fatalf("routed %d packets, want 2", got)
	}
	if !sub.Balanced() {
		t.Error("subsystem not uninitialized")
	}
	for _, d := range []*mock.Device{speakers, cable} {
		if n := d.Outstanding(); n != 0 {
			t.Errorf("%s outstanding = %d", d.Name, n)
		}
	}
}

func TestRunExitsOneOnFatalStage(t *testing.T) {
	cable := &mock.Device{
		Name:   "CABLE Input (VB-Audio Virtual Cable)",
		Client: &mock.Client{Accepts: mock.RejectAll(audio.StatusUnsupportedFormat)},
	}
	speakers := &mock.Device{Name: "Speakers", Client: &mock.Client{Mix: pcm48k}}
	sub := mock.NewSubsystem(speakers, speakers, cable)

	if code := runWithTimeout(t, context.Background(), sub); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if len(cable.Client.InitCalls) != 0 {
		t.Error("no stream may be initialized without a common format")
	}
}
