// Package router moves captured loopback packets into the render stream.
//
// The loop polls the capture service for pending packets. While packets are
// pending it drains them one by one in capture order: acquire the capture
// buffer, acquire a render buffer of the same frame count, copy
// frames*BlockAlign bytes verbatim, then release both. A failure at any step
// abandons the current pass; every buffer acquired during the pass is still
// released exactly once. Between passes the loop waits a fixed idle interval.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/breeze-rmm/cablerouter/internal/audio"
	"github.com/breeze-rmm/cablerouter/internal/health"
	"github.com/breeze-rmm/cablerouter/internal/logging"
	"github.com/breeze-rmm/cablerouter/internal/metrics"
)

// DefaultIdleInterval is the wait between polls when nothing is pending.
const DefaultIdleInterval = 10 * time.Millisecond

// Operation names used in logs, metrics and health messages.
const (
	OpNextPacketSize = "next packet size"
	OpCaptureGet     = "capture get buffer"
	OpRenderGet      = "render get buffer"
	OpCaptureRelease = "capture release buffer"
	OpRenderRelease  = "render release buffer"
	OpCopy           = "copy"
)

// errShortBuffer is reported when a buffer is smaller than the packet.
var errShortBuffer = errors.New("buffer shorter than packet")

// StepError is a transient failure at one step of a drain pass.
type StepError struct {
	Op  string
	Err error
}

func (e *StepError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }

// WaitFunc suspends the loop for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Router copies packets from a capture service to a render service.
type Router struct {
	capture audio.CaptureService
	render  audio.RenderService
	format  audio.Format

	idle    time.Duration
	wait    WaitFunc
	metrics *metrics.Metrics
	stream  *health.StreamTracker
	log     *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithIdleInterval sets the wait between polls. Non-positive values are
// ignored.
func WithIdleInterval(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.idle = d
		}
	}
}

// WithWait replaces the idle wait. Tests use it to observe or skip waits.
func WithWait(w WaitFunc) Option {
	return func(r *Router) { r.wait = w }
}

// WithMetrics records activity into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithHealth reports pass outcomes to t.
func WithHealth(t *health.StreamTracker) Option {
	return func(r *Router) { r.stream = t }
}

// New returns a Router for the given services sharing format f.
func New(capture audio.CaptureService, render audio.RenderService, f audio.Format, opts ...Option) *Router {
	r := &Router{
		capture: capture,
		render:  render,
		format:  f,
		idle:    DefaultIdleInterval,
		wait:    sleep,
		log:     logging.L("router"),
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.Discard()
	}
	if r.stream == nil {
		r.stream = health.NewMonitor().Stream(health.ComponentStream)
	}
	return r
}

// Run polls and drains until ctx is cancelled. Transient buffer errors are
// logged and never end the loop. Run returns nil on cancellation. Log lines
// carry the attributes of the logger stored in ctx.
func (r *Router) Run(ctx context.Context) error {
	r.log = logging.Ctx(ctx, "router")
	r.log.Info("routing started", "format", r.format.String(), "idleInterval", r.idle)
	defer r.log.Info("routing stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		moved, err := r.Drain(ctx)
		if err != nil {
			var se *StepError
			op := OpCopy
			if errors.As(err, &se) {
				op = se.Op
			}
			r.log.Warn("drain pass abandoned", logging.KeyOp, op, "packets", moved, logging.Err(err))
			r.metrics.RecordTransient(ctx, op, err)
			r.stream.Failure(op, err)
		} else if moved > 0 {
			r.stream.Success()
		}

		if err := r.wait(ctx, r.idle); err != nil {
			return nil
		}
	}
}

// Drain performs one pass: it moves packets while the capture service
// reports pending data and returns how many were moved. It stops at the
// first failure.
func (r *Router) Drain(ctx context.Context) (int, error) {
	start := time.Now()
	moved := 0
	defer func() { r.metrics.RecordDrain(ctx, moved, time.Since(start)) }()

	for {
		pending, err := r.capture.NextPacketSize()
		if err != nil {
			return moved, &StepError{Op: OpNextPacketSize, Err: err}
		}
		if pending == 0 {
			if moved == 0 {
				r.metrics.RecordIdle(ctx)
			}
			return moved, nil
		}

		if err := r.forward(ctx); err != nil {
			return moved, err
		}
		moved++
	}
}

// forward moves exactly one packet. Once acquired, the capture buffer is
// released before the render buffer, and both are released on every path.
func (r *Router) forward(ctx context.Context) error {
	pkt, err := r.capture.GetBuffer()
	if err != nil {
		return &StepError{Op: OpCaptureGet, Err: err}
	}

	dst, err := r.render.GetBuffer(pkt.Frames)
	if err != nil {
		return errors.Join(&StepError{Op: OpRenderGet, Err: err}, r.releaseCapture(pkt.Frames))
	}

	n := r.format.FrameBytes(pkt.Frames)
	written := pkt.Frames
	var stepErr error
	switch {
	case len(dst) < n:
		stepErr = &StepError{Op: OpRenderGet, Err: fmt.Errorf("%w: render has %d bytes, packet needs %d", errShortBuffer, len(dst), n)}
		written = 0
	case len(pkt.Data) < n:
		stepErr = &StepError{Op: OpCaptureGet, Err: fmt.Errorf("%w: capture has %d bytes, packet needs %d", errShortBuffer, len(pkt.Data), n)}
		written = 0
	default:
		copy(dst[:n], pkt.Data[:n])
	}

	// Capture data is no longer referenced after the copy.
	stepErr = errors.Join(stepErr, r.releaseCapture(pkt.Frames))
	if err := r.render.ReleaseBuffer(written, 0); err != nil {
		stepErr = errors.Join(stepErr, &StepError{Op: OpRenderRelease, Err: err})
	}
	if stepErr != nil {
		return stepErr
	}

	if pkt.Flags != 0 {
		r.log.Debug("captured packet flagged", logging.KeyFrames, pkt.Frames, "flags", uint32(pkt.Flags))
	}
	r.metrics.RecordPacket(ctx, pkt.Frames, n, pkt.Flags)
	return nil
}

func (r *Router) releaseCapture(frames uint32) error {
	if err := r.capture.ReleaseBuffer(frames); err != nil {
		return &StepError{Op: OpCaptureRelease, Err: err}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
