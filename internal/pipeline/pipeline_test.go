package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/breeze-rmm/cablerouter/internal/audio"
	"github.com/breeze-rmm/cablerouter/internal/audio/mock"
	"github.com/breeze-rmm/cablerouter/internal/health"
	"github.com/breeze-rmm/cablerouter/internal/logging"
	"github.com/breeze-rmm/cablerouter/internal/router"
)

var pcm48k = audio.NewPCMFormat(48000, 2, 16)

type scenario struct {
	sub      *mock.Subsystem
	speakers *mock.Device
	cable    *mock.Device
	capture  *mock.CaptureService
	render   *mock.RenderService
	monitor  *health.Monitor
	ctx      context.Context
}

// newScenario builds a machine with a default speaker endpoint mixing at
// mix, a headset, and a virtual cable that accepts formats per accepts. The
// run context is cancelled once the capture script is exhausted.
func newScenario(t *testing.T, mix audio.Format, accepts func(audio.Format) error, script ...mock.Step) *scenario {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := &scenario{
		capture: &mock.CaptureService{Script: script, OnExhausted: cancel},
		render:  &mock.RenderService{},
		monitor: health.NewMonitor(),
		ctx:     ctx,
	}
	s.speakers = &mock.Device{
		IDValue: "{0.0.0.00000000}.{speakers}",
		Name:    "Speakers (Realtek(R) Audio)",
		Client:  &mock.Client{Mix: mix, Capture: s.capture},
	}
	headset := &mock.Device{
		IDValue: "{0.0.0.00000000}.{headset}",
		Name:    "Headset Earphone (USB Audio)",
		Client:  &mock.Client{},
	}
	s.cable = &mock.Device{
		IDValue: "{0.0.0.00000000}.{cable}",
		Name:    "CABLE Input (VB-Audio Virtual Cable)",
		Client:  &mock.Client{Accepts: accepts, Render: s.render},
	}
	s.sub = mock.NewSubsystem(s.speakers, s.speakers, headset, s.cable)
	return s
}

func (s *scenario) run(t *testing.T) error {
	t.Helper()
	p := New(s.sub,
		WithHealth(s.monitor),
		WithRouterOptions(router.WithWait(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })),
	)

	done := make(chan error, 1)
	go func() { done <- p.Run(s.ctx) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not return")
		return nil
	}
}

// assertReleased checks that every handle the pipeline acquired was
// released and the subsystem was torn down.
func (s *scenario) assertReleased(t *testing.T) {
	t.Helper()
	if !s.sub.Balanced() {
		t.Error("subsystem initialized without matching uninitialize")
	}
	if n := s.sub.Enumerator.Outstanding(); n != 0 {
		t.Errorf("enumerator outstanding references = %d", n)
	}
	for _, d := range s.sub.Enumerator.Endpoints[audio.Render] {
		if n := d.Outstanding(); n != 0 {
			t.Errorf("%s outstanding references = %d", d.Name, n)
		}
		if d.Client != nil {
			if n := d.Client.Outstanding(); n != 0 {
				t.Errorf("%s client outstanding references = %d", d.Name, n)
			}
			if d.Client.Running() {
				t.Errorf("%s client still running", d.Name)
			}
		}
	}
}

func TestEndToEndNativeFormat(t *testing.T) {
	s := newScenario(t, pcm48k, nil, mock.Packets(480, 0, 512)...)

	if err := s.run(t); err != nil {
		t.Fatalf("Run: %v", err)
	}

	src, dst := s.speakers.Client, s.cable.Client
	if len(src.SupportCalls) != 0 {
		t.Error("the source client is never asked about formats")
	}
	if len(dst.SupportCalls) != 1 || dst.SupportCalls[0] != pcm48k {
		t.Fatalf("format checks = %v, want only the native format", dst.SupportCalls)
	}
	if src.InitCalls[0].Format != pcm48k || dst.InitCalls[0].Format != pcm48k {
		t.Fatal("both sessions must use the native format")
	}
	if src.StartCalls != 1 || dst.StartCalls != 1 {
		t.Fatalf("start calls: src=%d dst=%d", src.StartCalls, dst.StartCalls)
	}

	written := s.render.Written()
	if len(written) != 2 || len(written[0]) != 1920 || len(written[1]) != 2048 {
		t.Fatalf("render writes = %d packets", len(written))
	}
	s.assertReleased(t)
	if s.capture.ServiceReleases() != 1 || s.render.ServiceReleases() != 1 {
		t.Error("buffer services must be released once")
	}
}

func TestRunIDTagsEveryStage(t *testing.T) {
	var buf bytes.Buffer
	logging.Init("json", "debug", &buf)
	t.Cleanup(func() { logging.Init("text", "info", nil) })

	s := newScenario(t, pcm48k, mock.RejectAllExcept(audio.FallbackFormat()), mock.Packets(441)...)
	if err := s.run(t); err != nil {
		t.Fatalf("Run: %v", err)
	}

	runIDs := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		component, _ := rec[logging.KeyComponent].(string)
		switch component {
		case "pipeline", "negotiate", "session", "router":
		default:
			continue
		}
		id, _ := rec[logging.KeyRunID].(string)
		if id == "" {
			t.Fatalf("%s line without run ID: %s", component, line)
		}
		runIDs[component] = id
	}

	if len(runIDs) != 4 {
		t.Fatalf("expected lines from all four stages, got %v", runIDs)
	}
	for component, id := range runIDs {
		if id != runIDs["pipeline"] {
			t.Errorf("%s run ID %q differs from pipeline %q", component, id, runIDs["pipeline"])
		}
	}
}

func TestEndToEndFallbackFormat(t *testing.T) {
	fallback := audio.FallbackFormat()
	s := newScenario(t, pcm48k, mock.RejectAllExcept(fallback), mock.Packets(441)...)

	if err := s.run(t); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dst := s.cable.Client
	if len(dst.SupportCalls) != 2 {
		t.Fatalf("format checks = %d, want native then fallback", len(dst.SupportCalls))
	}
	if dst.SupportCalls[1].BlockAlign != 4 || dst.SupportCalls[1].AvgBytesPerSec != 176400 {
		t.Fatalf("fallback = %v", dst.SupportCalls[1])
	}
	for name, c := range map[string]*mock.Client{"capture": s.speakers.Client, "render": dst} {
		if len(c.InitCalls) != 1 || c.InitCalls[0].Format != fallback {
			t.Errorf("%s session not initialized with the fallback", name)
		}
	}

	written := s.render.Written()
	if len(written) != 1 || len(written[0]) != 441*4 {
		t.Fatalf("render writes = %v", len(written))
	}
	s.assertReleased(t)
}

func TestNoVirtualCable(t *testing.T) {
	s := newScenario(t, pcm48k, nil)
	s.cable.Name = "Digital Output (S/PDIF)"

	err := s.run(t)
	if !errors.Is(err, ErrCableNotFound) {
		t.Fatalf("Run = %v, want ErrCableNotFound", err)
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageFindCable {
		t.Fatalf("Run = %v, want find cable stage", err)
	}

	if n := s.sub.Enumerator.Outstanding(); n != 0 {
		t.Fatalf("enumerator not released, outstanding = %d", n)
	}
	for _, d := range s.sub.Enumerator.Endpoints[audio.Render] {
		if d.ActivateCalls != 0 {
			t.Errorf("%s activated although no cable was found", d.Name)
		}
		if len(d.Client.InitCalls) != 0 {
			t.Errorf("%s reached session initialization", d.Name)
		}
	}
	s.assertReleased(t)

	if c, _ := s.monitor.Get(health.ComponentPipeline); c.Status != health.Unhealthy {
		t.Errorf("pipeline health = %q, want unhealthy", c.Status)
	}
}

func TestSetupFailuresReleaseEverything(t *testing.T) {
	tests := []struct {
		name   string
		breakF func(s *scenario)
		stage  Stage
		status audio.Status
	}{
		{"subsystem", func(s *scenario) { s.sub.InitializeError = audio.StatusChangedMode }, StageSubsystem, audio.StatusChangedMode},
		{"enumerator", func(s *scenario) { s.sub.EnumeratorError = audio.StatusClassNotReg }, StageEnumerator, audio.StatusClassNotReg},
		{"default device", func(s *scenario) { s.sub.Enumerator.DefaultError = audio.StatusNotFound }, StageDefaultDevice, audio.StatusNotFound},
		{"enumeration", func(s *scenario) { s.sub.Enumerator.EnumError = audio.StatusServiceNotRunning }, StageFindCable, audio.StatusServiceNotRunning},
		{"activate source", func(s *scenario) { s.speakers.ActivateError = audio.StatusAccessDenied }, StageActivateSource, audio.StatusAccessDenied},
		{"activate cable", func(s *scenario) { s.cable.ActivateError = audio.StatusDeviceInvalidated }, StageActivateCable, audio.StatusDeviceInvalidated},
		{"mix format", func(s *scenario) { s.speakers.Client.MixError = audio.StatusOutOfMemory }, StageNegotiate, audio.StatusOutOfMemory},
		{"fallback rejected", func(s *scenario) { s.cable.Client.Accepts = mock.RejectAll(audio.StatusUnsupportedFormat) }, StageNegotiate, audio.StatusUnsupportedFormat},
		{"capture init", func(s *scenario) { s.speakers.Client.InitializeError = audio.StatusWrongEndpointType }, StageOpenSession, audio.StatusWrongEndpointType},
		{"render init", func(s *scenario) { s.cable.Client.InitializeError = audio.StatusDeviceInUse }, StageOpenSession, audio.StatusDeviceInUse},
		{"render start", func(s *scenario) { s.cable.Client.StartError = audio.StatusNotInitialized }, StageStartSession, audio.StatusNotInitialized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScenario(t, pcm48k, nil, mock.Packets(480)...)
			tt.breakF(s)

			err := s.run(t)
			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("Run = %v, want *StageError", err)
			}
			if se.Stage != tt.stage {
				t.Fatalf("stage = %q, want %q", se.Stage, tt.stage)
			}
			if got, ok := audio.StatusOf(err); !ok || got != tt.status {
				t.Fatalf("status = %v, want %v", got, tt.status)
			}
			if len(s.render.Acquired) != 0 {
				t.Fatal("no audio may be routed after a setup failure")
			}
			s.assertReleased(t)
		})
	}
}

func TestHealthyWhileRouting(t *testing.T) {
	s := newScenario(t, pcm48k, nil, mock.Packets(480)...)
	if err := s.run(t); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c, _ := s.monitor.Get(health.ComponentPipeline); c.Status != health.Healthy {
		t.Errorf("pipeline health = %q, want healthy", c.Status)
	}
	if c, _ := s.monitor.Get(health.ComponentStream); c.Status != health.Healthy {
		t.Errorf("stream health = %q, want healthy", c.Status)
	}
}
