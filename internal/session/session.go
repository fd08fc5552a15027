// Package session owns the loopback capture stream and the render stream
// that share one negotiated format.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/breeze-rmm/cablerouter/internal/audio"
	"github.com/breeze-rmm/cablerouter/internal/logging"
)

// BufferDuration is the requested buffer length for both streams.
const BufferDuration = audio.ReferenceTimePerSecond

// Pair is an initialized capture and render stream. Start them together with
// Start and tear them down with Close.
type Pair struct {
	Format  audio.Format
	Capture audio.CaptureService
	Render  audio.RenderService

	src, dst audio.Client
	log      *slog.Logger
	started  bool
	closed   bool
}

// Open initializes src for shared-mode loopback capture and dst for
// shared-mode rendering, both in format f, and obtains their buffer services.
// Nothing is started. On error every service obtained so far is released.
// Open does not take ownership of the clients.
func Open(ctx context.Context, src, dst audio.Client, f audio.Format) (*Pair, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	if err := src.Initialize(audio.ShareModeShared, audio.StreamFlagLoopback, BufferDuration, f); err != nil {
		return nil, fmt.Errorf("initialize capture stream: %w", err)
	}
	if err := dst.Initialize(audio.ShareModeShared, 0, BufferDuration, f); err != nil {
		return nil, fmt.Errorf("initialize render stream: %w", err)
	}

	capture, err := src.CaptureService()
	if err != nil {
		return nil, fmt.Errorf("get capture service: %w", err)
	}
	render, err := dst.RenderService()
	if err != nil {
		capture.Release()
		return nil, fmt.Errorf("get render service: %w", err)
	}

	log := logging.Ctx(ctx, "session")
	log.Debug("streams initialized", "format", f.String())
	return &Pair{Format: f, Capture: capture, Render: render, src: src, dst: dst, log: log}, nil
}

// Start starts capture then render. If render fails to start, capture is
// stopped again so the pair is never left half running.
func (p *Pair) Start() error {
	if p.started {
		return nil
	}
	if err := p.src.Start(); err != nil {
		return fmt.Errorf("start capture stream: %w", err)
	}
	if err := p.dst.Start(); err != nil {
		if stopErr := p.src.Stop(); stopErr != nil {
			p.log.Warn("stop capture after failed render start", logging.Err(stopErr))
		}
		return fmt.Errorf("start render stream: %w", err)
	}
	p.started = true
	return nil
}

// Started reports whether both streams are running.
func (p *Pair) Started() bool {
	return p.started
}

// Close stops a started pair and releases both services. It is safe to call
// more than once; only the first call has effect.
func (p *Pair) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.started {
		if err := p.src.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop capture stream: %w", err))
		}
		if err := p.dst.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop render stream: %w", err))
		}
		p.started = false
	}
	p.Render.Release()
	p.Capture.Release()
	return errors.Join(errs...)
}
